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

package question

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
)

// Mediator materializes agent-issued questions as tracker issues and
// resolves them once a human answers. It does not itself transition a
// step's status — that is the Hand-off Router's pendingQuestion branch —
// but it owns the question record, the step→question dependency edge, and
// the resume state needed to relaunch the suspended run.
type Mediator struct {
	client   *tracker.Client
	workflow *workflow.Service
}

// NewMediator returns a Mediator driven by client and svc.
func NewMediator(client *tracker.Client, svc *workflow.Service) *Mediator {
	return &Mediator{client: client, workflow: svc}
}

// Record is a materialized Question Record: its tracker ID plus the
// payload carried in its description.
type Record struct {
	ID      string
	Payload Payload
}

// RaiseQuestion creates a Question Record for payload, makes stepID depend
// on it (so it drops out of the ready set until the question closes), and
// stashes resume so the suspended run can be relaunched once answered.
func (m *Mediator) RaiseQuestion(ctx context.Context, projectPath, epicID, stepID string, payload Payload, resume workflow.ResumeInfo) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("question: raise: marshal payload: %w", err)
	}

	questionID, err := m.client.Create(ctx, projectPath, tracker.CreateInput{
		Title:       "question: " + payload.Context,
		Description: string(data),
		Type:        tracker.TypeTask,
		Parent:      epicID,
		Labels:      []string{workflow.LabelWhsQuestion},
	})
	if err != nil {
		return "", fmt.Errorf("question: raise: create record: %w", err)
	}

	if err := m.client.AddDep(ctx, projectPath, stepID, questionID); err != nil {
		return "", fmt.Errorf("question: raise: link step %s to question %s: %w", stepID, questionID, err)
	}

	if err := m.workflow.SetStepResumeInfo(ctx, projectPath, stepID, resume); err != nil {
		return "", fmt.Errorf("question: raise: stash resume info for %s: %w", stepID, err)
	}

	return questionID, nil
}

// AnswerQuestion records answer as the question's close comment and
// closes it, which drops the dependency edge blocking its step.
func (m *Mediator) AnswerQuestion(ctx context.Context, projectPath, questionID, answer string) error {
	if err := m.client.Close(ctx, projectPath, questionID, answer); err != nil {
		return fmt.Errorf("question: answer %s: %w", questionID, err)
	}
	return nil
}

// GetQuestion fetches and decodes a single Question Record.
func (m *Mediator) GetQuestion(ctx context.Context, projectPath, questionID string) (Record, error) {
	issue, err := m.client.Show(ctx, projectPath, questionID)
	if err != nil {
		return Record{}, fmt.Errorf("question: get %s: %w", questionID, err)
	}
	payload, err := decodePayload(*issue)
	if err != nil {
		return Record{}, fmt.Errorf("question: get %s: %w", questionID, err)
	}
	return Record{ID: issue.ID, Payload: payload}, nil
}

// ListOpen returns every Question Record still awaiting an answer.
func (m *Mediator) ListOpen(ctx context.Context, projectPath string) ([]Record, error) {
	issues, err := m.client.List(ctx, projectPath, tracker.ListFilter{
		Status:   tracker.StatusOpen,
		LabelAll: []string{workflow.LabelWhsQuestion},
	})
	if err != nil {
		return nil, fmt.Errorf("question: list open: %w", err)
	}

	records := make([]Record, 0, len(issues))
	for _, issue := range issues {
		payload, err := decodePayload(issue)
		if err != nil {
			return nil, fmt.Errorf("question: list open: record %s: %w", issue.ID, err)
		}
		records = append(records, Record{ID: issue.ID, Payload: payload})
	}
	return records, nil
}

func decodePayload(issue tracker.Issue) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(issue.Description), &payload); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
