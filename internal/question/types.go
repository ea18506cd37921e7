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

// Package question implements the Question Mediator: it materializes an
// agent's clarifying questions as tracker issues (Question Records) that
// block the step which raised them, and feeds a recorded answer back once
// a human resolves it.
package question

import "time"

// Option is one choice offered for a question.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Item is a single clarifying question within a payload.
type Item struct {
	Question    string   `json:"question"`
	Header      string   `json:"header,omitempty"`
	MultiSelect bool     `json:"multiSelect"`
	Options     []Option `json:"options,omitempty"`
}

// Metadata identifies where a question came from, so the answer can be
// routed back to the right run.
type Metadata struct {
	SessionID    string    `json:"session_id"`
	Worktree     string    `json:"worktree"`
	StepID       string    `json:"step_id"`
	EpicID       string    `json:"epic_id"`
	Project      string    `json:"project"`
	AskedAt      time.Time `json:"asked_at"`
}

// Payload is the JSON encoded as a Question Record's description.
type Payload struct {
	Metadata  Metadata `json:"metadata"`
	Context   string   `json:"context"`
	Questions []Item   `json:"questions"`
}
