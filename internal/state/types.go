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

// Package state persists the dispatcher's Active Work map to a versioned
// file and guards against a second dispatcher process starting against the
// same configuration directory.
package state

import "time"

// CurrentVersion is the schema version written by this build. A state file
// carrying any other version is discarded, never migrated.
const CurrentVersion = 2

// WorkItem is the minimal snapshot of the source issue a run was dispatched
// for, enough to rebuild a prompt or report status without re-querying the
// tracker.
type WorkItem struct {
	SourceID string `json:"sourceId"`
	Title    string `json:"title"`
	Project  string `json:"project"`
}

// ActiveEntry is one in-flight run tracked by the dispatcher.
type ActiveEntry struct {
	WorkItem       WorkItem  `json:"workItem"`
	WorkflowEpicID string    `json:"workflowEpicId"`
	WorkflowStepID string    `json:"workflowStepId"`
	SessionID      string    `json:"sessionId"`
	WorktreePath   string    `json:"worktreePath"`
	StartedAt      time.Time `json:"startedAt"`
	Agent          string    `json:"agent"`
	CostSoFar      float64   `json:"costSoFar"`
}

// State is the full persisted snapshot: every in-flight run keyed by source
// issue ID, plus the paused flag.
type State struct {
	Version    int                    `json:"version"`
	ActiveWork map[string]ActiveEntry `json:"activeWork"`
	Paused     bool                   `json:"paused"`
	LastSaved  time.Time              `json:"lastSaved"`
}

// empty returns a fresh State at CurrentVersion with no active work.
func empty() *State {
	return &State{
		Version:    CurrentVersion,
		ActiveWork: make(map[string]ActiveEntry),
	}
}
