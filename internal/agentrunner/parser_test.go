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

package agentrunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Init(t *testing.T) {
	events, err := parseLine([]byte(`{"type":"system","subtype":"init","session_id":"sess-1"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventInit, events[0].kind)
	assert.Equal(t, "sess-1", events[0].sessionID)
}

func TestParseLine_IgnoresNonInitSystemLines(t *testing.T) {
	events, err := parseLine([]byte(`{"type":"system","subtype":"other"}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseLine_AssistantTextAndToolUse(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[
		{"type":"text","text":"looking at the file"},
		{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}}
	]}}`
	events, err := parseLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, eventText, events[0].kind)
	assert.Equal(t, "looking at the file", events[0].chunk)

	assert.Equal(t, eventToolUse, events[1].kind)
	assert.Equal(t, "Bash", events[1].toolName)
	assert.Equal(t, "ls", events[1].toolInput["command"])
}

func TestParseLine_Result_Success(t *testing.T) {
	line := `{"type":"result","is_error":false,"num_turns":3,"total_cost_usd":0.42}`
	events, err := parseLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventResult, events[0].kind)
	assert.True(t, events[0].success)
	assert.Equal(t, 3, events[0].turns)
	assert.InDelta(t, 0.42, events[0].cost, 0.0001)
	assert.Empty(t, events[0].errors)
}

func TestParseLine_Result_Error(t *testing.T) {
	line := `{"type":"result","is_error":true,"result":"ran out of budget"}`
	events, err := parseLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].success)
	assert.Equal(t, []string{"ran out of budget"}, events[0].errors)
}

func TestParseLine_MalformedJSONErrors(t *testing.T) {
	_, err := parseLine([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseQuestion_ExtractsItems(t *testing.T) {
	input := map[string]any{
		"questions": []any{
			map[string]any{"question": "pick one", "multiSelect": false, "options": []any{
				map[string]any{"label": "a"},
				map[string]any{"label": "b"},
			}},
		},
	}
	q, ok := parseQuestion(input)
	require.True(t, ok)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, "pick one", q.Questions[0].Question)
	require.Len(t, q.Questions[0].Options, 2)
}

func TestParseQuestion_NoQuestionsKey(t *testing.T) {
	_, ok := parseQuestion(map[string]any{"command": "ls"})
	assert.False(t, ok)
}

func TestIsAskUserQuestion(t *testing.T) {
	assert.True(t, isAskUserQuestion(askUserQuestionTool, map[string]any{"questions": []any{}}))
	assert.False(t, isAskUserQuestion("Bash", map[string]any{"questions": []any{}}))
	assert.False(t, isAskUserQuestion(askUserQuestionTool, map[string]any{"answers": []any{"x"}}))
	assert.False(t, isAskUserQuestion(askUserQuestionTool, map[string]any{}))
}
