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

package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/dispatcher"
	"github.com/tombee/dispatchd/internal/question"
	"github.com/tombee/dispatchd/internal/state"
)

// Deps bundles the collaborators the control handlers act on. All of them
// are shared with the tick loop; the control service never mutates state
// directly, it only calls the same methods a CLI-in-process caller would.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Store      *state.Store
	Mediator   *question.Mediator
	Projects   []dconfig.ProjectConfig
}

// WorkItemView is the JSON-facing projection of state.ActiveEntry returned
// by the list and status methods.
type WorkItemView struct {
	SourceID  string `json:"sourceId"`
	Title     string `json:"title"`
	Project   string `json:"project"`
	EpicID    string `json:"epicId"`
	StepID    string `json:"stepId"`
	Agent     string `json:"agent"`
	StartedAt string `json:"startedAt"`
}

// StatusView is the result of the "status" method.
type StatusView struct {
	Paused      bool           `json:"paused"`
	ActiveCount int            `json:"activeCount"`
	ActiveWork  []WorkItemView `json:"activeWork,omitempty"`
}

// AnswerParams is the payload for the "answer" method.
type AnswerParams struct {
	Project    string `json:"project"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// StopParams is the payload for the "stop" method.
type StopParams struct {
	Force bool `json:"force"`
}

// RegisterHandlers wires every control method this server answers onto srv.
func RegisterHandlers(srv *Server, deps Deps) {
	srv.Handle("pause", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, deps.Dispatcher.Pause()
	})

	srv.Handle("resume", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, deps.Dispatcher.Resume()
	})

	srv.Handle("stop", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p StopParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("control: decode stop params: %w", err)
			}
		}
		if p.Force {
			deps.Dispatcher.Abort()
		} else {
			deps.Dispatcher.RequestShutdown()
		}
		return nil, nil
	})

	srv.Handle("status", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return buildStatus(deps, true), nil
	})

	srv.Handle("list", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return buildStatus(deps, true).ActiveWork, nil
	})

	srv.Handle("answer", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p AnswerParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("control: decode answer params: %w", err)
		}
		proj, ok := findProject(deps.Projects, p.Project)
		if !ok {
			return nil, fmt.Errorf("control: unknown project %q", p.Project)
		}
		return nil, deps.Mediator.AnswerQuestion(ctx, proj.Path, p.QuestionID, p.Answer)
	})
}

func buildStatus(deps Deps, withWork bool) StatusView {
	view := StatusView{
		Paused:      deps.Store.Paused(),
		ActiveCount: deps.Dispatcher.ActiveCount(),
	}
	if withWork {
		for _, entry := range deps.Store.Snapshot() {
			view.ActiveWork = append(view.ActiveWork, WorkItemView{
				SourceID:  entry.WorkItem.SourceID,
				Title:     entry.WorkItem.Title,
				Project:   entry.WorkItem.Project,
				EpicID:    entry.WorkflowEpicID,
				StepID:    entry.WorkflowStepID,
				Agent:     entry.Agent,
				StartedAt: entry.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
	}
	return view
}

func findProject(projects []dconfig.ProjectConfig, name string) (dconfig.ProjectConfig, bool) {
	for _, p := range projects {
		if p.Name == name {
			return p, true
		}
	}
	return dconfig.ProjectConfig{}, false
}
