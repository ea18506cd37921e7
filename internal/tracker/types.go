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

// Package tracker adapts an external issue-tracker binary into a typed Go
// client. Every operation shells out to the configured binary with
// arguments passed as argv (never interpolated into a shell string) and
// decodes its JSON stdout.
package tracker

import "time"

// Issue type values.
const (
	TypeTask    = "task"
	TypeEpic    = "epic"
	TypeBug     = "bug"
	TypeFeature = "feature"
	TypeChore   = "chore"
)

// Issue status values.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusClosed     = "closed"
)

// Issue is the tracker's unit of work: a task, epic, bug, feature, or
// chore, with priority 0 (highest) through 4 (lowest).
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Labels      []string  `json:"labels"`
	Deps        []string  `json:"deps,omitempty"`
	Parent      string    `json:"parent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasLabel reports whether the issue carries the exact label text.
func (i Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ListFilter narrows a list/list-ready query. Zero-valued fields impose no
// constraint.
type ListFilter struct {
	Type        string
	PriorityMin int
	PriorityMax int
	LabelAny    []string
	LabelAll    []string
	LabelNone   []string
	Parent      string
	Status      string
	Sort        []string
}

// CreateInput is the payload for Client.Create.
type CreateInput struct {
	Title       string
	Description string
	Priority    int
	Type        string
	Labels      []string
	Parent      string
}

// UpdateInput is the payload for Client.Update. Nil fields are left
// unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Priority    *int
	Status      *string
	Labels      *[]string
}

// InitOptions configures Client.Init.
type InitOptions struct {
	// Stealth enables the tracker's stealth storage mode, if supported.
	Stealth bool
	// Prefix is an optional ID prefix for issues created in this project.
	Prefix string
}
