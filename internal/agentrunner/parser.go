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
	"encoding/json"
	"fmt"
)

// rawLine is one line of --output-format stream-json output. Only the
// fields the runner cares about are declared; everything else is ignored,
// the same tolerant-unmarshal style the teacher uses for ClaudeResponse.
type rawLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`

	SessionID string `json:"session_id"`

	Message *struct {
		Content []rawBlock `json:"content"`
	} `json:"message"`

	IsError      bool    `json:"is_error"`
	DurationMS   int64   `json:"duration_ms"`
	NumTurns     int     `json:"num_turns"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Result       string  `json:"result"`
}

type rawBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// parseLine turns one raw stream-json line into zero or more normalized
// events (an assistant message line can carry both a text block and one or
// more tool_use blocks).
func parseLine(line []byte) ([]event, error) {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("agentrunner: parse stream-json line: %w", err)
	}

	switch raw.Type {
	case "system":
		if raw.Subtype != "init" {
			return nil, nil
		}
		return []event{{kind: eventInit, sessionID: raw.SessionID}}, nil

	case "assistant":
		if raw.Message == nil {
			return nil, nil
		}
		var events []event
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				if block.Text != "" {
					events = append(events, event{kind: eventText, chunk: block.Text})
				}
			case "tool_use":
				var input map[string]any
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &input); err != nil {
						return nil, fmt.Errorf("agentrunner: parse tool_use input for %s: %w", block.Name, err)
					}
				}
				events = append(events, event{kind: eventToolUse, toolName: block.Name, toolInput: input})
			}
		}
		return events, nil

	case "result":
		return []event{{
			kind:    eventResult,
			cost:    raw.TotalCostUSD,
			turns:   raw.NumTurns,
			success: !raw.IsError,
			errors:  resultErrors(raw),
		}}, nil

	default:
		return nil, nil
	}
}

func resultErrors(raw rawLine) []string {
	if !raw.IsError || raw.Result == "" {
		return nil
	}
	return []string{raw.Result}
}

// parseQuestion extracts the questions carried by an AskUserQuestion tool
// call's input, per spec's `{questions: [...]}` shape. A tool call that
// already carries recorded answers is not a pending question — the caller
// checks for that before calling this.
func parseQuestion(input map[string]any) (PendingQuestion, bool) {
	raw, ok := input["questions"]
	if !ok {
		return PendingQuestion{}, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return PendingQuestion{}, false
	}
	var items []QuestionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return PendingQuestion{}, false
	}
	if len(items) == 0 {
		return PendingQuestion{}, false
	}
	return PendingQuestion{Questions: items}, true
}

// isAskUserQuestion reports whether a tool-use event is an unanswered
// AskUserQuestion call: the special tool name with questions present and
// no "answers" key already populated by a resumed turn.
func isAskUserQuestion(name string, input map[string]any) bool {
	if name != askUserQuestionTool {
		return false
	}
	if _, answered := input["answers"]; answered {
		return false
	}
	_, hasQuestions := input["questions"]
	return hasQuestions
}
