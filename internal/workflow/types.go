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

package workflow

import "github.com/tombee/dispatchd/internal/tracker"

// Epic is a Workflow Epic: the tracker issue tying together every step of
// one run of the workflow against one source issue. At most one non-closed
// epic exists per (project, sourceID) pair.
type Epic struct {
	tracker.Issue
}

// Project returns the project this epic belongs to.
func (e Epic) Project() (string, bool) { return projectName(e.Labels) }

// SourceID returns the source issue ID this epic was started from.
func (e Epic) SourceID() (string, bool) { return sourceID(e.Labels) }

// Errored returns the error kind recorded on this epic, if any.
func (e Epic) Errored() (string, bool) { return erroredReason(e.Labels) }

// BlockedOnHuman reports whether this epic is waiting on a human decision.
func (e Epic) BlockedOnHuman() bool { return e.HasLabel(LabelBlockedHuman) }

// Step is a Workflow Step: one unit of agent work within an epic, assigned
// to a single role.
type Step struct {
	tracker.Issue
}

// Role returns the agent role this step is assigned to.
func (s Step) Role() (string, bool) { return agentRole(s.Labels) }

// PRNumber returns the pull request number attached to this step, if any.
func (s Step) PRNumber() (int, bool) { return prNumber(s.Labels) }

// CIStatus returns the CI status attached to this step, if any.
func (s Step) CIStatus() (string, bool) { return ciStatus(s.Labels) }

// CIRetries returns how many times this step's CI run has been retried.
func (s Step) CIRetries() int { return ciRetries(s.Labels) }

// DispatchAttempts returns how many times this step has failed to launch.
func (s Step) DispatchAttempts() int { return dispatchAttempts(s.Labels) }

// IsReady reports whether a step is eligible for admission: open, with no
// open dependencies, and not waiting on CI.
func (s Step) IsReady(depsOpen bool) bool {
	if s.Status != tracker.StatusOpen {
		return false
	}
	if depsOpen {
		return false
	}
	if status, ok := s.CIStatus(); ok && status == CIPending {
		return false
	}
	return true
}

// ResumeInfo is the payload stashed on a step's whs:resume: label while a
// question is pending, so the step can be relaunched with the operator's
// answer once it arrives.
type ResumeInfo struct {
	SessionID    string `json:"session_id"`
	Answer       string `json:"answer"`
	WorktreePath string `json:"worktree_path"`
}

// NextStepInput carries the hand-off fields CreateNextStep records on the
// step it creates.
type NextStepInput struct {
	PRNumber *int
	CIStatus string
}

// Outcomes accepted by CompleteStep and CompleteWorkflow.
const (
	OutcomeDone    = "done"
	OutcomeBlocked = "blocked"
	OutcomeHandoff = "handoff"
)
