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
	"context"
	"fmt"

	"github.com/tombee/dispatchd/internal/workflow"
)

// Router drives a workflow forward from a parsed Handoff (or from the
// runner-reported conditions that preempt one: a pending question, or an
// authentication failure). The dispatcher also calls the Workflow Service
// directly to error a workflow once the circuit breaker trips.
type Router struct {
	workflow *workflow.Service
}

// NewRouter returns a Router driven by svc.
func NewRouter(svc *workflow.Service) *Router {
	return &Router{workflow: svc}
}

// RouteHandoff applies the DONE, BLOCKED, or role hand-off branch for a
// step that finished with a well-formed Handoff.
func (r *Router) RouteHandoff(ctx context.Context, projectPath, epicID, stepID string, h Handoff) error {
	switch h.NextAgent {
	case SentinelDone:
		if err := r.workflow.CompleteStep(ctx, projectPath, stepID, "done"); err != nil {
			return fmt.Errorf("handoff: route done: %w", err)
		}
		if err := r.workflow.CompleteWorkflow(ctx, projectPath, epicID, workflow.OutcomeDone, h.Context); err != nil {
			return fmt.Errorf("handoff: route done: %w", err)
		}
		return nil

	case SentinelBlocked:
		if err := r.workflow.CompleteStep(ctx, projectPath, stepID, "blocked"); err != nil {
			return fmt.Errorf("handoff: route blocked: %w", err)
		}
		if err := r.workflow.CompleteWorkflow(ctx, projectPath, epicID, workflow.OutcomeBlocked, h.Context); err != nil {
			return fmt.Errorf("handoff: route blocked: %w", err)
		}
		return nil

	default:
		if err := r.workflow.CompleteStep(ctx, projectPath, stepID, "handoff"); err != nil {
			return fmt.Errorf("handoff: route to %s: %w", h.NextAgent, err)
		}
		if _, err := r.workflow.CreateNextStep(ctx, projectPath, epicID, h.NextAgent, h.Context, workflow.NextStepInput{
			PRNumber: h.PRNumber,
			CIStatus: h.CIStatus,
		}); err != nil {
			return fmt.Errorf("handoff: route to %s: %w", h.NextAgent, err)
		}
		return nil
	}
}

// RouteAuthError handles a runner-reported authentication failure: the
// epic is marked errored and the triggering step is left untouched so its
// state is available for diagnosis.
func (r *Router) RouteAuthError(ctx context.Context, projectPath, epicID, transcriptTail string) error {
	if err := r.workflow.ErrorWorkflow(ctx, projectPath, epicID, transcriptTail, "auth"); err != nil {
		return fmt.Errorf("handoff: route auth error: %w", err)
	}
	return nil
}

// RoutePendingQuestion suspends a step that raised a clarifying question.
// The step is not closed; the caller (the Question Mediator) is
// responsible for materializing the question record and its dependency
// edge onto stepID before the step is next considered ready.
func (r *Router) RoutePendingQuestion(ctx context.Context, projectPath, stepID string) error {
	if err := r.workflow.MarkStepOpen(ctx, projectPath, stepID); err != nil {
		return fmt.Errorf("handoff: route pending question: %w", err)
	}
	return nil
}

// RouteParseFailure handles a hand-off that failed to parse, treated like
// any other agent failure: it applies the circuit breaker through the
// Workflow Service's ResetStepForRetry and returns false once the step has
// used maxAttempts, leaving the caller to error the workflow.
func (r *Router) RouteParseFailure(ctx context.Context, projectPath, stepID string, maxAttempts int) (bool, error) {
	ok, err := r.workflow.ResetStepForRetry(ctx, projectPath, stepID, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("handoff: route parse failure: %w", err)
	}
	return ok, nil
}
