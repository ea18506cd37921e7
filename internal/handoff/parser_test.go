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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleRoleHandoff(t *testing.T) {
	transcript := "Some reasoning text.\n\n```\n" +
		"next_agent: quality_review\n" +
		"pr_number: 42\n" +
		"ci_status: pending\n" +
		"context: |\n" +
		"  Implemented the feature.\n" +
		"  See PR #42 for details.\n" +
		"```\n"

	h, err := Parse(transcript)
	require.NoError(t, err)
	assert.Equal(t, "quality_review", h.NextAgent)
	require.NotNil(t, h.PRNumber)
	assert.Equal(t, 42, *h.PRNumber)
	assert.Equal(t, CIPending, h.CIStatus)
	assert.Equal(t, "Implemented the feature.\nSee PR #42 for details.", h.Context)
	assert.False(t, h.IsTerminal())
}

func TestParse_DoneSentinelInlineContext(t *testing.T) {
	transcript := "```\n" +
		"next_agent: DONE\n" +
		"context: all tests pass\n" +
		"```\n"

	h, err := Parse(transcript)
	require.NoError(t, err)
	assert.Equal(t, SentinelDone, h.NextAgent)
	assert.True(t, h.IsTerminal())
	assert.Equal(t, "all tests pass", h.Context)
	assert.Nil(t, h.PRNumber)
	assert.Empty(t, h.CIStatus)
}

func TestParse_BlockedSentinel(t *testing.T) {
	transcript := "```\nnext_agent: BLOCKED\ncontext: |\n  need a decision on X\n```\n"

	h, err := Parse(transcript)
	require.NoError(t, err)
	assert.Equal(t, SentinelBlocked, h.NextAgent)
	assert.True(t, h.IsTerminal())
	assert.Equal(t, "need a decision on X", h.Context)
}

func TestParse_UsesLastWellFormedBlock(t *testing.T) {
	transcript := "```\n" +
		"next_agent: planner\n" +
		"context: first attempt, ignored\n" +
		"```\n" +
		"More reasoning in between.\n" +
		"```\n" +
		"next_agent: architect\n" +
		"context: final answer\n" +
		"```\n"

	h, err := Parse(transcript)
	require.NoError(t, err)
	assert.Equal(t, "architect", h.NextAgent)
	assert.Equal(t, "final answer", h.Context)
}

func TestParse_IgnoresUnrelatedFencedBlocks(t *testing.T) {
	transcript := "```go\nfunc main() {}\n```\n" +
		"```\nnext_agent: implementation\ncontext: go\n```\n"

	h, err := Parse(transcript)
	require.NoError(t, err)
	assert.Equal(t, "implementation", h.NextAgent)
}

func TestParse_UnknownNextAgentIsBadHandoff(t *testing.T) {
	transcript := "```\nnext_agent: not_a_role\ncontext: x\n```\n"
	_, err := Parse(transcript)
	assert.ErrorIs(t, err, ErrBadHandoff)
}

func TestParse_InvalidPRNumberIsBadHandoff(t *testing.T) {
	transcript := "```\nnext_agent: planner\npr_number: not-a-number\ncontext: x\n```\n"
	_, err := Parse(transcript)
	assert.ErrorIs(t, err, ErrBadHandoff)
}

func TestParse_InvalidCIStatusIsBadHandoff(t *testing.T) {
	transcript := "```\nnext_agent: planner\nci_status: flaky\ncontext: x\n```\n"
	_, err := Parse(transcript)
	assert.ErrorIs(t, err, ErrBadHandoff)
}

func TestParse_NoBlockIsBadHandoff(t *testing.T) {
	_, err := Parse("the assistant just rambled with no structured block")
	assert.ErrorIs(t, err, ErrBadHandoff)
}

func TestParse_MissingNextAgentIsBadHandoff(t *testing.T) {
	transcript := "```\npr_number: 1\ncontext: x\n```\n"
	_, err := Parse(transcript)
	// no "next_agent:" substring at all means the block is skipped entirely,
	// so this degrades to the "no block found" case.
	assert.ErrorIs(t, err, ErrBadHandoff)
}
