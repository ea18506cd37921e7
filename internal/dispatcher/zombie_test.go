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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/state"
	"github.com/tombee/dispatchd/internal/tracker"
)

func TestZombieSweep_DropsEntryForClosedStep(t *testing.T) {
	dir := t.TempDir()
	seedDispatcherShow(t, dir, "STEP-1", `{"id":"STEP-1","labels":["whs:step"],"status":"closed"}`)

	store := state.NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, store.Load())
	require.NoError(t, store.Put("STEP-1", state.ActiveEntry{WorkflowStepID: "STEP-1"}))

	d := New(Config{Projects: []dconfig.ProjectConfig{{Name: "acme", Path: dir}}}, Deps{
		Tracker: tracker.NewClient(fakeDispatcherTracker(t), 5*time.Second),
		Store:   store,
	})

	d.zombieSweep(context.Background())

	_, ok := store.Get("STEP-1")
	assert.False(t, ok, "a closed step's active-work entry should be dropped")
}

func TestZombieSweep_KeepsEntryForInProgressStep(t *testing.T) {
	dir := t.TempDir()
	seedDispatcherShow(t, dir, "STEP-1", `{"id":"STEP-1","labels":["whs:step"],"status":"in_progress"}`)

	store := state.NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, store.Load())
	require.NoError(t, store.Put("STEP-1", state.ActiveEntry{WorkflowStepID: "STEP-1"}))

	d := New(Config{Projects: []dconfig.ProjectConfig{{Name: "acme", Path: dir}}}, Deps{
		Tracker: tracker.NewClient(fakeDispatcherTracker(t), 5*time.Second),
		Store:   store,
	})

	d.zombieSweep(context.Background())

	_, ok := store.Get("STEP-1")
	assert.True(t, ok, "an in-progress step's active-work entry should survive")
}
