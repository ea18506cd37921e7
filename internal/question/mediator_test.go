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

package question

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

// fakeQuestionTracker logs every call to ".calls.log" and serves "show"
// responses from ".seed/<id>.json", mirroring the spy scripts used by the
// workflow and handoff packages' own tests.
func fakeQuestionTracker(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tracker script requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tracker")
	script := `#!/bin/sh
SEED="$PWD/.seed"
stdin_content=$(cat)
esc_stdin=$(printf '%s' "$stdin_content" | tr '\n' '\036')

{
  printf 'CALL'
  for a in "$@"; do printf '\037%s' "$a"; done
  printf '\037STDIN=%s\n' "$esc_stdin"
} >> "$PWD/.calls.log"

case "$1" in
  create)
    n=$(( $(cat "$PWD/.seq" 2>/dev/null || echo 0) + 1 ))
    echo "$n" > "$PWD/.seq"
    printf '{"id":"QUESTION-%s"}\n' "$n"
    ;;
  show)
    id="$2"
    f="$SEED/$id.json"
    if [ -f "$f" ]; then cat "$f"; else printf '{"id":"%s","labels":[],"status":"open","description":"{}"}' "$id"; fi
    echo
    ;;
  list)
    f="$SEED/list.json"
    if [ -f "$f" ]; then cat "$f"; else echo '[]'; fi
    ;;
  update|close|dep)
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

type callRecord struct {
	Args  []string
	Stdin string
}

func readCalls(t *testing.T, dir string) []callRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ".calls.log"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var calls []callRecord
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\037")
		require.True(t, len(fields) >= 2)
		stdinField := fields[len(fields)-1]
		require.True(t, strings.HasPrefix(stdinField, "STDIN="))
		stdin := strings.ReplaceAll(strings.TrimPrefix(stdinField, "STDIN="), "\036", "\n")
		calls = append(calls, callRecord{Args: fields[1 : len(fields)-1], Stdin: stdin})
	}
	return calls
}

func seedShow(t *testing.T, dir, id, json string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".seed"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seed", id+".json"), []byte(json), 0644))
}

func seedList(t *testing.T, dir, json string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".seed"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seed", "list.json"), []byte(json), 0644))
}

func newTestMediator(t *testing.T) (*Mediator, string) {
	t.Helper()
	dir := t.TempDir()
	client := tracker.NewClient(fakeQuestionTracker(t), 5*time.Second)
	return NewMediator(client, workflow.NewService(client)), dir
}

func TestMediator_RaiseQuestion(t *testing.T) {
	m, dir := newTestMediator(t)
	seedShow(t, dir, "STEP-1", `{"id":"STEP-1","labels":["whs:step"],"status":"in_progress"}`)

	payload := Payload{
		Context:   "should this use a pointer or a value receiver?",
		Questions: []Item{{Question: "pointer or value?", Options: []Option{{Label: "pointer"}, {Label: "value"}}}},
	}
	resume := workflow.ResumeInfo{SessionID: "sess-1", WorktreePath: "/wt/step-1"}

	questionID, err := m.RaiseQuestion(context.Background(), dir, "EPIC-1", "STEP-1", payload, resume)
	require.NoError(t, err)
	assert.Equal(t, "QUESTION-1", questionID)

	calls := readCalls(t, dir)
	require.Len(t, calls, 4)

	assert.Equal(t, "create", calls[0].Args[0])
	assert.Contains(t, calls[0].Args, "--parent")
	assert.Contains(t, calls[0].Args, "EPIC-1")
	assert.Contains(t, calls[0].Args, "--label")
	assert.Contains(t, calls[0].Args, "whs:question")
	assert.Contains(t, calls[0].Stdin, "pointer or value?")

	assert.Equal(t, []string{"dep", "add", "STEP-1", "QUESTION-1"}, calls[1].Args)

	assert.Equal(t, []string{"show", "STEP-1", "--json"}, calls[2].Args)
	assert.Equal(t, "update", calls[3].Args[0])
	assert.Contains(t, strings.Join(calls[3].Args, " "), "whs:resume:")
}

func TestMediator_AnswerQuestion(t *testing.T) {
	m, dir := newTestMediator(t)
	require.NoError(t, m.AnswerQuestion(context.Background(), dir, "QUESTION-1", "use a pointer receiver"))

	calls := readCalls(t, dir)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"close", "QUESTION-1", "--reason-stdin"}, calls[0].Args)
	assert.Equal(t, "use a pointer receiver", calls[0].Stdin)
}

func TestMediator_GetQuestion(t *testing.T) {
	m, dir := newTestMediator(t)
	seedShow(t, dir, "QUESTION-1", `{"id":"QUESTION-1","labels":["whs:question"],"status":"open","description":"{\"context\":\"pick one\",\"questions\":[{\"question\":\"a or b\",\"multiSelect\":false}]}"}`)

	rec, err := m.GetQuestion(context.Background(), dir, "QUESTION-1")
	require.NoError(t, err)
	assert.Equal(t, "QUESTION-1", rec.ID)
	assert.Equal(t, "pick one", rec.Payload.Context)
	require.Len(t, rec.Payload.Questions, 1)
	assert.Equal(t, "a or b", rec.Payload.Questions[0].Question)
}

func TestMediator_ListOpen(t *testing.T) {
	m, dir := newTestMediator(t)
	seedList(t, dir, `[{"id":"QUESTION-1","labels":["whs:question"],"status":"open","description":"{\"context\":\"pick one\"}"}]`)

	recs, err := m.ListOpen(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "QUESTION-1", recs[0].ID)
	assert.Equal(t, "pick one", recs[0].Payload.Context)
}
