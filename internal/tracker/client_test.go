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

package tracker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTracker writes a small shell script that stands in for the real
// tracker binary: it echoes fixed JSON for the subcommands exercised by
// these tests and exits non-zero for "show missing".
func fakeTracker(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tracker script requires a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tracker")
	script := `#!/bin/sh
case "$1" in
  list-ready)
    echo '[{"id":"ISSUE-1","title":"Fix the thing","priority":1,"type":"task","status":"open","labels":["agent:implementation"]}]'
    ;;
  list)
    echo '[{"id":"ISSUE-1","title":"Fix the thing","priority":1,"type":"task","status":"open","labels":[]},{"id":"ISSUE-2","title":"Second","priority":2,"type":"bug","status":"closed","labels":[]}]'
    ;;
  show)
    if [ "$2" = "MISSING" ]; then
      echo "no such issue" >&2
      exit 1
    fi
    echo '{"id":"'"$2"'","title":"Fix the thing","priority":1,"type":"task","status":"open","labels":[]}'
    ;;
  create)
    cat >/dev/null
    echo '{"id":"ISSUE-99"}'
    ;;
  update)
    exit 0
    ;;
  close)
    cat >/dev/null
    exit 0
    ;;
  comment)
    cat >/dev/null
    exit 0
    ;;
  dep)
    exit 0
    ;;
  init)
    exit 0
    ;;
  is-initialized)
    exit 0
    ;;
  config)
    if [ "$2" = "get" ]; then
      echo "value-for-$3"
    fi
    exit 0
    ;;
  daemon)
    if [ "$2" = "status" ]; then
      echo "running"
    fi
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

func TestClient_ListReady(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	issues, err := c.ListReady(context.Background(), t.TempDir(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "ISSUE-1", issues[0].ID)
	assert.True(t, issues[0].HasLabel("agent:implementation"))
}

func TestClient_List(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	issues, err := c.List(context.Background(), t.TempDir(), ListFilter{Status: StatusOpen})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestClient_Show(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	issue, err := c.Show(context.Background(), t.TempDir(), "ISSUE-7")
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-7", issue.ID)
}

func TestClient_ShowNotFound(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	_, err := c.Show(context.Background(), t.TempDir(), "MISSING")
	assert.Error(t, err)
}

func TestClient_Create(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	id, err := c.Create(context.Background(), t.TempDir(), CreateInput{
		Title:       "New issue",
		Description: "body",
		Type:        TypeTask,
		Priority:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-99", id)
}

func TestClient_UpdateCloseComment(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	ctx := context.Background()
	dir := t.TempDir()

	status := StatusInProgress
	require.NoError(t, c.Update(ctx, dir, "ISSUE-1", UpdateInput{Status: &status}))
	require.NoError(t, c.Close(ctx, dir, "ISSUE-1", "done"))
	require.NoError(t, c.Comment(ctx, dir, "ISSUE-1", "a longer comment body"))
}

func TestClient_Deps(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, c.AddDep(ctx, dir, "ISSUE-2", "ISSUE-1"))
	require.NoError(t, c.RemoveDep(ctx, dir, "ISSUE-2", "ISSUE-1"))
}

func TestClient_InitAndIsInitialized(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, c.Init(ctx, dir, InitOptions{Stealth: true, Prefix: "WID"}))
	ok, err := c.IsInitialized(ctx, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_Config(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, c.ConfigSet(ctx, dir, "theme", "dark"))
	val, err := c.ConfigGet(ctx, dir, "theme")
	require.NoError(t, err)
	assert.Equal(t, "value-for-theme", val)
}

func TestClient_Daemon(t *testing.T) {
	c := NewClient(fakeTracker(t), 5*time.Second)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, c.DaemonStart(ctx, dir))
	status, err := c.DaemonStatus(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "running", status)
	require.NoError(t, c.DaemonStop(ctx, dir))
}

func TestClient_TimeoutProducesErrTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slow-tracker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 2\n"), 0755))

	c := NewClient(path, 50*time.Millisecond)
	_, err := c.List(context.Background(), t.TempDir(), ListFilter{})
	assert.ErrorIs(t, err, ErrTimeout)
}
