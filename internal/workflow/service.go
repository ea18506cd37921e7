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

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tombee/dispatchd/internal/tracker"
)

// Service implements the Workflow Service: it is the only package that
// understands how workflow state is encoded as tracker labels. Every
// caller (the Dispatcher, the Hand-off Router, the Question Mediator)
// goes through these methods rather than touching labels directly.
type Service struct {
	client *tracker.Client
}

// NewService returns a Service driven by client.
func NewService(client *tracker.Client) *Service {
	return &Service{client: client}
}

// StartWorkflow creates a new Workflow Epic for source and its first
// Workflow Step assigned to firstRole.
func (s *Service) StartWorkflow(ctx context.Context, projectPath, project string, source tracker.Issue, firstRole string) (epicID, stepID string, err error) {
	epicID, err = s.client.Create(ctx, projectPath, tracker.CreateInput{
		Title:       fmt.Sprintf("%s:%s - %s", project, source.ID, source.Title),
		Description: source.Description,
		Priority:    source.Priority,
		Type:        tracker.TypeEpic,
		Labels:      []string{LabelWhsWorkflow, projectLabel(project), sourceLabel(source.ID)},
	})
	if err != nil {
		return "", "", fmt.Errorf("workflow: start: create epic: %w", err)
	}

	stepID, err = s.client.Create(ctx, projectPath, tracker.CreateInput{
		Title:       fmt.Sprintf("%s: %s", firstRole, source.Title),
		Description: source.Description,
		Priority:    source.Priority,
		Type:        tracker.TypeTask,
		Parent:      epicID,
		Labels:      []string{LabelWhsStep, agentLabel(firstRole)},
	})
	if err != nil {
		return "", "", fmt.Errorf("workflow: start: create first step: %w", err)
	}

	return epicID, stepID, nil
}

// CreateNextStep creates the step that follows a completed one, carrying
// its hand-off context forward to role.
func (s *Service) CreateNextStep(ctx context.Context, projectPath, epicID, role, handoffContext string, input NextStepInput) (string, error) {
	labels := []string{LabelWhsStep, agentLabel(role)}
	if input.PRNumber != nil {
		labels = append(labels, prLabel(*input.PRNumber))
	}
	if input.CIStatus != "" {
		labels = append(labels, ciLabel(input.CIStatus))
	}

	stepID, err := s.client.Create(ctx, projectPath, tracker.CreateInput{
		Title:       role + " hand-off",
		Description: handoffContext,
		Type:        tracker.TypeTask,
		Parent:      epicID,
		Labels:      labels,
	})
	if err != nil {
		return "", fmt.Errorf("workflow: create next step: %w", err)
	}
	return stepID, nil
}

// CompleteStep closes a step with the given outcome recorded as its close
// reason.
func (s *Service) CompleteStep(ctx context.Context, projectPath, stepID, outcome string) error {
	if err := s.client.Close(ctx, projectPath, stepID, outcome); err != nil {
		return fmt.Errorf("workflow: complete step %s: %w", stepID, err)
	}
	return nil
}

// CompleteWorkflow finishes an epic. "done" closes the epic and its source
// issue; "blocked" marks the epic blocked:human and leaves the source
// untouched for a human to look at.
func (s *Service) CompleteWorkflow(ctx context.Context, projectPath, epicID, outcome, reason string) error {
	epic, err := s.getEpic(ctx, projectPath, epicID)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeDone:
		if err := s.client.Close(ctx, projectPath, epicID, reason); err != nil {
			return fmt.Errorf("workflow: complete workflow %s: close epic: %w", epicID, err)
		}
		if sid, ok := epic.SourceID(); ok {
			if err := s.client.Close(ctx, projectPath, sid, reason); err != nil {
				return fmt.Errorf("workflow: complete workflow %s: close source %s: %w", epicID, sid, err)
			}
		}
		return nil

	case OutcomeBlocked:
		status := tracker.StatusBlocked
		labels := append(append([]string{}, epic.Labels...), LabelBlockedHuman)
		if err := s.client.Update(ctx, projectPath, epicID, tracker.UpdateInput{Status: &status, Labels: &labels}); err != nil {
			return fmt.Errorf("workflow: complete workflow %s: mark blocked: %w", epicID, err)
		}
		if err := s.client.Comment(ctx, projectPath, epicID, reason); err != nil {
			return fmt.Errorf("workflow: complete workflow %s: comment: %w", epicID, err)
		}
		return nil

	default:
		return fmt.Errorf("workflow: complete workflow %s: unknown outcome %q", epicID, outcome)
	}
}

// ErrorWorkflow marks an epic as failed with a named error kind (e.g.
// "auth"). The step that triggered the error is left untouched so its
// state is available for diagnosis.
func (s *Service) ErrorWorkflow(ctx context.Context, projectPath, epicID, reason, errorType string) error {
	epic, err := s.getEpic(ctx, projectPath, epicID)
	if err != nil {
		return err
	}

	status := tracker.StatusBlocked
	labels := append(append([]string{}, epic.Labels...), erroredLabel(errorType))
	if err := s.client.Update(ctx, projectPath, epicID, tracker.UpdateInput{Status: &status, Labels: &labels}); err != nil {
		return fmt.Errorf("workflow: error workflow %s: %w", epicID, err)
	}
	if err := s.client.Comment(ctx, projectPath, epicID, reason); err != nil {
		return fmt.Errorf("workflow: error workflow %s: comment: %w", epicID, err)
	}
	return nil
}

// RetryWorkflow clears an epic's error/blocked markers and resumes work:
// in-progress steps go back to open, and if every step is closed a fresh
// step is materialized from the most recently closed step's role.
func (s *Service) RetryWorkflow(ctx context.Context, projectPath, epicID string) error {
	epic, err := s.getEpic(ctx, projectPath, epicID)
	if err != nil {
		return err
	}

	labels := withoutLabel(epic.Labels, LabelBlockedHuman)
	labels = withoutPrefix(labels, erroredPrefix)
	status := tracker.StatusOpen
	if err := s.client.Update(ctx, projectPath, epicID, tracker.UpdateInput{Status: &status, Labels: &labels}); err != nil {
		return fmt.Errorf("workflow: retry workflow %s: clear markers: %w", epicID, err)
	}

	steps, err := s.client.List(ctx, projectPath, tracker.ListFilter{Parent: epicID, LabelAll: []string{LabelWhsStep}})
	if err != nil {
		return fmt.Errorf("workflow: retry workflow %s: list steps: %w", epicID, err)
	}

	allClosed := true
	var mostRecentClosed *tracker.Issue
	for i := range steps {
		step := steps[i]
		if step.Status != tracker.StatusClosed {
			allClosed = false
		}
		if step.Status == tracker.StatusInProgress {
			open := tracker.StatusOpen
			if err := s.client.Update(ctx, projectPath, step.ID, tracker.UpdateInput{Status: &open}); err != nil {
				return fmt.Errorf("workflow: retry workflow %s: reopen step %s: %w", epicID, step.ID, err)
			}
		}
		if step.Status == tracker.StatusClosed {
			if mostRecentClosed == nil || step.UpdatedAt.After(mostRecentClosed.UpdatedAt) {
				s := step
				mostRecentClosed = &s
			}
		}
	}

	if allClosed && mostRecentClosed != nil {
		role, _ := agentRole(mostRecentClosed.Labels)
		if role == "" {
			return fmt.Errorf("workflow: retry workflow %s: most recent step %s has no agent role", epicID, mostRecentClosed.ID)
		}
		if _, err := s.CreateNextStep(ctx, projectPath, epicID, role, mostRecentClosed.Description, NextStepInput{}); err != nil {
			return fmt.Errorf("workflow: retry workflow %s: materialize next step: %w", epicID, err)
		}
	}

	return nil
}

// GetReadyWorkflowSteps returns every step that is open, has no open
// dependency, and is not waiting on CI.
func (s *Service) GetReadyWorkflowSteps(ctx context.Context, projectPath string) ([]Step, error) {
	issues, err := s.client.List(ctx, projectPath, tracker.ListFilter{Status: tracker.StatusOpen, LabelAll: []string{LabelWhsStep}})
	if err != nil {
		return nil, fmt.Errorf("workflow: get ready steps: %w", err)
	}

	var ready []Step
	for _, issue := range issues {
		depsOpen, err := s.anyDepOpen(ctx, projectPath, issue.Deps)
		if err != nil {
			return nil, err
		}
		step := Step{issue}
		if step.IsReady(depsOpen) {
			ready = append(ready, step)
		}
	}
	return ready, nil
}

func (s *Service) anyDepOpen(ctx context.Context, projectPath string, deps []string) (bool, error) {
	for _, depID := range deps {
		dep, err := s.client.Show(ctx, projectPath, depID)
		if err != nil {
			return false, fmt.Errorf("workflow: check dependency %s: %w", depID, err)
		}
		if dep.Status != tracker.StatusClosed {
			return true, nil
		}
	}
	return false, nil
}

// GetStepsPendingCI returns every step currently waiting on a CI result.
func (s *Service) GetStepsPendingCI(ctx context.Context, projectPath string) ([]Step, error) {
	issues, err := s.client.List(ctx, projectPath, tracker.ListFilter{LabelAll: []string{LabelWhsStep}, LabelAny: []string{ciLabel(CIPending)}})
	if err != nil {
		return nil, fmt.Errorf("workflow: get steps pending ci: %w", err)
	}
	steps := make([]Step, len(issues))
	for i, issue := range issues {
		steps[i] = Step{issue}
	}
	return steps, nil
}

// MarkStepInProgress transitions a step to in_progress.
func (s *Service) MarkStepInProgress(ctx context.Context, projectPath, stepID string) error {
	status := tracker.StatusInProgress
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Status: &status}); err != nil {
		return fmt.Errorf("workflow: mark step %s in_progress: %w", stepID, err)
	}
	return nil
}

// MarkStepOpen transitions a step back to open (e.g. after a crashed
// worker is reclaimed).
func (s *Service) MarkStepOpen(ctx context.Context, projectPath, stepID string) error {
	status := tracker.StatusOpen
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Status: &status}); err != nil {
		return fmt.Errorf("workflow: mark step %s open: %w", stepID, err)
	}
	return nil
}

// ResetStepForRetry increments a step's dispatch-attempts counter and
// reopens it, unless doing so would exceed maxAttempts, in which case it
// returns false and leaves the step untouched so the caller can block it
// instead.
func (s *Service) ResetStepForRetry(ctx context.Context, projectPath, stepID string, maxAttempts int) (bool, error) {
	issue, err := s.client.Show(ctx, projectPath, stepID)
	if err != nil {
		return false, fmt.Errorf("workflow: reset step %s: %w", stepID, err)
	}

	attempts := dispatchAttempts(issue.Labels) + 1
	if attempts > maxAttempts {
		return false, nil
	}

	labels := replacePrefixed(issue.Labels, dispatchAttemptsPrefix, fmt.Sprintf("%d", attempts))
	status := tracker.StatusOpen
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Status: &status, Labels: &labels}); err != nil {
		return false, fmt.Errorf("workflow: reset step %s: %w", stepID, err)
	}
	return true, nil
}

// SetStepCIStatus replaces a step's ci: label with status (pending, passed,
// or failed), the only mutation the CI watcher needs to make directly.
func (s *Service) SetStepCIStatus(ctx context.Context, projectPath, stepID, status string) error {
	issue, err := s.client.Show(ctx, projectPath, stepID)
	if err != nil {
		return fmt.Errorf("workflow: set ci status for %s: %w", stepID, err)
	}
	labels := replacePrefixed(issue.Labels, ciPrefix, status)
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Labels: &labels}); err != nil {
		return fmt.Errorf("workflow: set ci status for %s: %w", stepID, err)
	}
	return nil
}

// SetStepResumeInfo stashes session/answer/worktree state on a step so it
// can be relaunched once a pending question is answered.
func (s *Service) SetStepResumeInfo(ctx context.Context, projectPath, stepID string, info ResumeInfo) error {
	issue, err := s.client.Show(ctx, projectPath, stepID)
	if err != nil {
		return fmt.Errorf("workflow: set resume info for %s: %w", stepID, err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("workflow: set resume info for %s: marshal: %w", stepID, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	labels := replacePrefixed(issue.Labels, resumePrefix, encoded)
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Labels: &labels}); err != nil {
		return fmt.Errorf("workflow: set resume info for %s: %w", stepID, err)
	}
	return nil
}

// GetStepResumeInfo retrieves the resume payload stashed by
// SetStepResumeInfo, if any.
func (s *Service) GetStepResumeInfo(ctx context.Context, projectPath, stepID string) (ResumeInfo, bool, error) {
	issue, err := s.client.Show(ctx, projectPath, stepID)
	if err != nil {
		return ResumeInfo{}, false, fmt.Errorf("workflow: get resume info for %s: %w", stepID, err)
	}

	encoded, ok := resumePayload(issue.Labels)
	if !ok {
		return ResumeInfo{}, false, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ResumeInfo{}, false, fmt.Errorf("workflow: get resume info for %s: decode: %w", stepID, err)
	}
	var info ResumeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ResumeInfo{}, false, fmt.Errorf("workflow: get resume info for %s: unmarshal: %w", stepID, err)
	}
	return info, true, nil
}

// ClearStepResumeInfo removes a step's resume payload, typically after
// the question it corresponds to has been answered and the step relaunched.
func (s *Service) ClearStepResumeInfo(ctx context.Context, projectPath, stepID string) error {
	issue, err := s.client.Show(ctx, projectPath, stepID)
	if err != nil {
		return fmt.Errorf("workflow: clear resume info for %s: %w", stepID, err)
	}
	labels := withoutPrefix(issue.Labels, resumePrefix)
	if err := s.client.Update(ctx, projectPath, stepID, tracker.UpdateInput{Labels: &labels}); err != nil {
		return fmt.Errorf("workflow: clear resume info for %s: %w", stepID, err)
	}
	return nil
}

func (s *Service) getEpic(ctx context.Context, projectPath, epicID string) (Epic, error) {
	issue, err := s.client.Show(ctx, projectPath, epicID)
	if err != nil {
		return Epic{}, fmt.Errorf("workflow: get epic %s: %w", epicID, err)
	}
	return Epic{*issue}, nil
}
