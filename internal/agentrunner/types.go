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

// Package agentrunner launches an external coding-assistant process, parses
// its streamed newline-delimited JSON output into a normalized event
// vocabulary, enforces the safety filter on every tool use, and aggregates
// one Result per run.
package agentrunner

import "context"

// QuestionOption is one choice offered by an AskUserQuestion tool call.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// QuestionItem is a single clarifying question surfaced by the assistant.
type QuestionItem struct {
	Question    string           `json:"question"`
	Header      string           `json:"header,omitempty"`
	MultiSelect bool             `json:"multiSelect"`
	Options     []QuestionOption `json:"options,omitempty"`
}

// PendingQuestion is stashed when the assistant calls AskUserQuestion
// without answers already supplied, and returned alongside the Result so
// the dispatcher can hand it to the Question Mediator.
type PendingQuestion struct {
	Questions []QuestionItem
}

// RunOptions configures one agent run.
type RunOptions struct {
	Prompt             string
	WorkingDir         string
	RoleFile           string
	AppendSystemPrompt string
	AllowedTools       []string
	ResumeSessionID    string
	ResumeAnswer       string
	MaxTurns           int

	OnOutput  func(chunk string)
	OnToolUse func(name string, input map[string]any)
}

// Result is the terminal aggregate a Runner produces for one run.
type Result struct {
	SessionID       string
	Transcript      string
	Cost            float64
	Turns           int
	DurationMS      int64
	Success         bool
	Error           string
	IsAuthError     bool
	PendingQuestion *PendingQuestion
}

// Runner is satisfied by both the subscription (local CLI) and API
// implementations; the dispatcher depends only on this interface.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (Result, error)
}

// eventKind enumerates the normalized event vocabulary parsed from a run's
// stream-json output.
type eventKind string

const (
	eventInit    eventKind = "init"
	eventText    eventKind = "text"
	eventToolUse eventKind = "toolUse"
	eventResult  eventKind = "result"
)

// event is one parsed line of stream-json output.
type event struct {
	kind eventKind

	sessionID string // init

	chunk string // text

	toolName  string         // toolUse
	toolInput map[string]any // toolUse

	cost    float64 // result
	turns   int     // result
	success bool    // result
	errors  []string
}

// askUserQuestionTool is the special tool name whose input, when it
// carries questions but no recorded answers, becomes a PendingQuestion
// instead of an ordinary tool-use event.
const askUserQuestionTool = "AskUserQuestion"
