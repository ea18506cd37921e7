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

package handoff

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
)

// fakeRouterTracker is a smaller relative of the spy used by the workflow
// package's own tests: it logs every call and serves "show" from a seed
// file so Router tests can assert on the tracker operations a route
// produced without depending on workflow's unexported test helpers.
func fakeRouterTracker(t *testing.T) string {
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
    if [ -f "$f" ]; then cat "$f"; else printf '{"id":"%s","labels":[],"status":"open"}' "$2"; fi
    echo
    ;;
  create)
    echo '{"id":"ISSUE-NEXT"}'
    ;;
  update|close|comment)
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

func readRouterCalls(t *testing.T, dir string) []string {
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
		require.NotEmpty(t, fields)
		calls = append(calls, strings.Join(fields[1:], " "))
	}
	return calls
}

func newTestRouter(t *testing.T) (*Router, string) {
	t.Helper()
	dir := t.TempDir()
	client := tracker.NewClient(fakeRouterTracker(t), 5*time.Second)
	return NewRouter(workflow.NewService(client)), dir
}

func seedRouterShow(t *testing.T, dir, id, json string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".seed"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seed", id+".json"), []byte(json), 0644))
}

func TestRouter_RouteHandoff_Done(t *testing.T) {
	r, dir := newTestRouter(t)
	seedRouterShow(t, dir, "EPIC-1", `{"id":"EPIC-1","labels":["whs:workflow","source:ISSUE-5"],"status":"open"}`)

	err := r.RouteHandoff(context.Background(), dir, "EPIC-1", "STEP-1", Handoff{NextAgent: SentinelDone, Context: "shipped"})
	require.NoError(t, err)

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 4)
	assert.Contains(t, calls[0], "close STEP-1")
	assert.Contains(t, calls[1], "show EPIC-1")
	assert.Contains(t, calls[2], "close EPIC-1")
	assert.Contains(t, calls[3], "close ISSUE-5")
}

func TestRouter_RouteHandoff_Blocked(t *testing.T) {
	r, dir := newTestRouter(t)
	seedRouterShow(t, dir, "EPIC-1", `{"id":"EPIC-1","labels":["whs:workflow"],"status":"open"}`)

	err := r.RouteHandoff(context.Background(), dir, "EPIC-1", "STEP-1", Handoff{NextAgent: SentinelBlocked, Context: "need a human"})
	require.NoError(t, err)

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 4)
	assert.Contains(t, calls[0], "close STEP-1")
	assert.Contains(t, calls[1], "show EPIC-1")
	assert.Contains(t, calls[2], "update EPIC-1")
	assert.Contains(t, calls[2], "blocked:human")
	assert.Contains(t, calls[3], "comment EPIC-1")
}

func TestRouter_RouteHandoff_NextRole(t *testing.T) {
	r, dir := newTestRouter(t)
	pr := 7
	h := Handoff{NextAgent: "quality_review", Context: "please review", PRNumber: &pr, CIStatus: CIPending}

	require.NoError(t, r.RouteHandoff(context.Background(), dir, "EPIC-1", "STEP-1", h))

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "close STEP-1")
	assert.Contains(t, calls[1], "create")
	assert.Contains(t, calls[1], "agent:quality_review")
	assert.Contains(t, calls[1], "pr:7")
	assert.Contains(t, calls[1], "ci:pending")
}

func TestRouter_RouteAuthError(t *testing.T) {
	r, dir := newTestRouter(t)
	seedRouterShow(t, dir, "EPIC-1", `{"id":"EPIC-1","labels":["whs:workflow"],"status":"open"}`)

	require.NoError(t, r.RouteAuthError(context.Background(), dir, "EPIC-1", "invalid api key"))

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0], "show EPIC-1")
	assert.Contains(t, calls[1], "update EPIC-1")
	assert.Contains(t, calls[1], "errored:auth")
	assert.Contains(t, calls[2], "comment EPIC-1")
}

func TestRouter_RoutePendingQuestion(t *testing.T) {
	r, dir := newTestRouter(t)
	require.NoError(t, r.RoutePendingQuestion(context.Background(), dir, "STEP-1"))

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "update STEP-1")
	assert.Contains(t, calls[0], "--status open")
}

func TestRouter_RouteParseFailure_TripsBreaker(t *testing.T) {
	r, dir := newTestRouter(t)
	seedRouterShow(t, dir, "STEP-1", `{"id":"STEP-1","labels":["whs:step","dispatch-attempts:3"],"status":"open"}`)

	ok, err := r.RouteParseFailure(context.Background(), dir, "STEP-1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	calls := readRouterCalls(t, dir)
	require.Len(t, calls, 1, "only the show call, no update once the breaker trips")
}
