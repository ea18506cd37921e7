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

package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/tombee/dispatchd/internal/handoff"
	"github.com/tombee/dispatchd/internal/log"
	"github.com/tombee/dispatchd/internal/question"
	"github.com/tombee/dispatchd/internal/workflow"
)

// drainResults implements stage 1 of the tick loop: a non-blocking read of
// every result posted since the previous tick, routed per §4.4.
func (d *Dispatcher) drainResults(ctx context.Context) {
	for {
		select {
		case r := <-d.results:
			d.routeResult(ctx, r)
		default:
			return
		}
	}
}

func (d *Dispatcher) routeResult(ctx context.Context, r runResult) {
	defer func() {
		if err := d.store.Remove(r.sourceID); err != nil {
			d.logger.Error("drain results: remove active work failed", slog.String(log.SourceIDKey, r.sourceID), slog.Any("error", err))
		}
	}()

	if d.metrics != nil {
		d.metrics.ObserveRunDuration(r.role, time.Since(r.startedAt))
	}

	switch {
	case r.isAuthError:
		d.routeAuthError(ctx, r)
	case r.pendingQuestion != nil:
		d.routePendingQuestion(ctx, r)
	case !r.success:
		d.routeAgentFailure(ctx, r)
	default:
		d.routeHandoff(ctx, r)
	}
}

func (d *Dispatcher) routeAuthError(ctx context.Context, r runResult) {
	if err := d.router.RouteAuthError(ctx, r.project.Path, r.epicID, r.transcript); err != nil {
		d.logger.Error("drain results: route auth error failed", slog.String(log.EpicIDKey, r.epicID), slog.Any("error", err))
		return
	}
	d.notify(ctx, "workflow "+r.epicID+" blocked: authentication failure")
}

func (d *Dispatcher) routePendingQuestion(ctx context.Context, r runResult) {
	if err := d.router.RoutePendingQuestion(ctx, r.project.Path, r.stepID); err != nil {
		d.logger.Error("drain results: route pending question failed", slog.String(log.StepIDKey, r.stepID), slog.Any("error", err))
		return
	}

	payload := question.Payload{
		Metadata: question.Metadata{
			SessionID: r.pendingQuestion.sessionID,
			Worktree:  r.worktreePath,
			StepID:    r.stepID,
			EpicID:    r.epicID,
			Project:   r.project.Name,
			AskedAt:   time.Now().UTC(),
		},
		Context:   r.transcript,
		Questions: toQuestionItems(r.pendingQuestion.questions),
	}

	resume := workflow.ResumeInfo{
		SessionID:    r.pendingQuestion.sessionID,
		WorktreePath: r.worktreePath,
	}

	if _, err := d.mediator.RaiseQuestion(ctx, r.project.Path, r.epicID, r.stepID, payload, resume); err != nil {
		d.logger.Error("drain results: raise question failed", slog.String(log.StepIDKey, r.stepID), slog.Any("error", err))
		return
	}
	d.notify(ctx, "question raised on step "+r.stepID)
}

func (d *Dispatcher) routeAgentFailure(ctx context.Context, r runResult) {
	ok, err := d.router.RouteParseFailure(ctx, r.project.Path, r.stepID, d.cfg.MaxDispatchAttempts)
	if err != nil {
		d.logger.Error("drain results: reset step for retry failed", slog.String(log.StepIDKey, r.stepID), slog.Any("error", err))
		return
	}
	if ok {
		return
	}

	if err := d.workflow.ErrorWorkflow(ctx, r.project.Path, r.epicID, r.errMsg, "agent"); err != nil {
		d.logger.Error("drain results: error workflow failed", slog.String(log.EpicIDKey, r.epicID), slog.Any("error", err))
		return
	}
	d.notify(ctx, "workflow "+r.epicID+" blocked: exceeded dispatch attempts")
}

func (d *Dispatcher) routeHandoff(ctx context.Context, r runResult) {
	h, err := handoff.Parse(r.transcript)
	if err != nil {
		d.routeAgentFailure(ctx, runResult{
			sourceID: r.sourceID, project: r.project, epicID: r.epicID, stepID: r.stepID,
			errMsg: "hand-off parse failure: " + err.Error(),
		})
		return
	}

	if err := d.router.RouteHandoff(ctx, r.project.Path, r.epicID, r.stepID, h); err != nil {
		d.logger.Error("drain results: route handoff failed", slog.String(log.StepIDKey, r.stepID), slog.Any("error", err))
		return
	}

	if h.IsTerminal() {
		d.notify(ctx, "workflow "+r.epicID+" "+terminalOutcome(h)+": "+h.Context)
	}
}

func terminalOutcome(h handoff.Handoff) string {
	if h.NextAgent == handoff.SentinelDone {
		return "completed"
	}
	return "blocked"
}

func toQuestionItems(items []questionItem) []question.Item {
	out := make([]question.Item, len(items))
	for i, it := range items {
		opts := make([]question.Option, len(it.options))
		for j, o := range it.options {
			opts[j] = question.Option{Label: o.label, Description: o.description}
		}
		out[i] = question.Item{
			Question:    it.question,
			Header:      it.header,
			MultiSelect: it.multiSelect,
			Options:     opts,
		}
	}
	return out
}

func (d *Dispatcher) notify(ctx context.Context, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, message); err != nil {
		d.logger.Warn("notify failed", slog.Any("error", err))
	}
}
