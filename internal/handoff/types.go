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

// Package handoff extracts and routes the structured fenced block an agent
// run ends with, driving the workflow from one step to the next.
package handoff

import "github.com/tombee/dispatchd/internal/workflow"

// Sentinels accepted in place of a role name in next_agent.
const (
	SentinelDone    = "DONE"
	SentinelBlocked = "BLOCKED"
)

// KnownRoles are the agent roles a hand-off may address.
var KnownRoles = []string{
	"implementation",
	"quality_review",
	"release_manager",
	"ux_specialist",
	"architect",
	"planner",
}

// CI status values accepted in a ci_status field.
const (
	CIPending = workflow.CIPending
	CIPassed  = workflow.CIPassed
	CIFailed  = workflow.CIFailed
)

// Handoff is the structured block an agent run ends its transcript with.
type Handoff struct {
	NextAgent string
	PRNumber  *int
	CIStatus  string
	Context   string
}

// IsTerminal reports whether this hand-off ends the workflow outright
// (DONE or BLOCKED) rather than routing to another role.
func (h Handoff) IsTerminal() bool {
	return h.NextAgent == SentinelDone || h.NextAgent == SentinelBlocked
}

func isKnownNextAgent(v string) bool {
	if v == SentinelDone || v == SentinelBlocked {
		return true
	}
	for _, role := range KnownRoles {
		if role == v {
			return true
		}
	}
	return false
}

func isKnownCIStatus(v string) bool {
	return v == CIPending || v == CIPassed || v == CIFailed
}
