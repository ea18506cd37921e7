// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tombee/dispatchd/internal/handoff"
	"github.com/tombee/dispatchd/internal/question"
	"github.com/tombee/dispatchd/internal/state"
	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
)

// fakeDispatcherTracker stands in for the tracker binary across the
// dispatcher test suite. It serves "show" from a seeded JSON file per
// issue ID and logs every call so tests can assert on what was asked.
func fakeDispatcherTracker(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tracker script requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tracker")
	script := `#!/bin/sh
SEED="$PWD/.seed"
cat >/dev/null

{
  printf 'CALL'
  for a in "$@"; do printf '\037%s' "$a"; done
  printf '\n'
} >> "$PWD/.calls.log"

case "$1" in
  show)
    f="$SEED/$2.json"
    if [ -f "$f" ]; then cat "$f"; else echo "not found" >&2; exit 1; fi
    echo
    ;;
  create)
    n=$(( $(cat "$PWD/.seq" 2>/dev/null || echo 0) + 1 ))
    echo "$n" > "$PWD/.seq"
    printf '{"id":"ISSUE-%s"}\n' "$n"
    ;;
  list)
    echo '[]'
    ;;
  update|close|comment|dep)
    exit 0
    ;;
  *)
    echo "unknown subcommand: $1" >&2
    exit 2
    ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func readDispatcherCalls(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ".calls.log"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var calls []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\037")
		calls = append(calls, strings.Join(fields[1:], " "))
	}
	return calls
}

func seedDispatcherShow(t *testing.T, dir, id, json string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".seed"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seed", id+".json"), []byte(json), 0644))
}

// fakeNotifier records every message it was asked to deliver.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

// testHarness wires a Dispatcher against a fake tracker and an otherwise
// minimal set of collaborators, enough to exercise drainResults'
// routing without a real worktree, runner, or CI provider.
type testHarness struct {
	dispatcher *Dispatcher
	dir        string
	notifier   *fakeNotifier
	store      *state.Store
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()
	client := tracker.NewClient(fakeDispatcherTracker(t), 5*time.Second)
	svc := workflow.NewService(client)
	router := handoff.NewRouter(svc)
	mediator := question.NewMediator(client, svc)
	store := state.NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, store.Load())
	notifier := &fakeNotifier{}

	d := New(Config{MaxDispatchAttempts: 3}, Deps{
		Workflow: svc,
		Router:   router,
		Mediator: mediator,
		Store:    store,
		Notifier: notifier,
	})
	d.shutdownCtx, d.shutdownCancel = context.WithCancel(context.Background())

	return &testHarness{dispatcher: d, dir: dir, notifier: notifier, store: store}
}
