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
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/dispatchd/internal/agentrunner"
	"github.com/tombee/dispatchd/internal/log"
	"github.com/tombee/dispatchd/internal/state"
	"github.com/tombee/dispatchd/internal/workflow"
)

// preflightAndSpawn implements stages 3 and 4 of the tick loop: for each
// admitted step, apply the dispatch-attempts circuit breaker, then — if it
// survives — create a worktree, mark the step in_progress, record Active
// Work, and launch a detached worker.
func (d *Dispatcher) preflightAndSpawn(ctx context.Context, selected []candidate) {
	for _, c := range selected {
		d.preflightAndSpawnOne(ctx, c)
	}
}

func (d *Dispatcher) preflightAndSpawnOne(ctx context.Context, c candidate) {
	ok, err := d.workflow.ResetStepForRetry(ctx, c.project.Path, c.step.ID, d.cfg.MaxDispatchAttempts)
	if err != nil {
		if d.metrics != nil {
			d.metrics.IncAdmissionErrors()
		}
		d.logger.Warn("preflight: circuit breaker check failed", slog.String(log.StepIDKey, c.step.ID), slog.Any("error", err))
		return
	}
	if !ok {
		epicID := c.step.Parent
		if err := d.workflow.ErrorWorkflow(ctx, c.project.Path, epicID, "exceeded dispatch attempts", "dispatch"); err != nil {
			d.logger.Warn("preflight: error workflow failed", slog.String(log.EpicIDKey, epicID), slog.Any("error", err))
			return
		}
		d.notify(ctx, "workflow "+epicID+" blocked: exceeded dispatch attempts")
		return
	}

	branch := branchName(c.step)
	worktreePath, err := d.worktree.Ensure(ctx, c.project.Path, branch, c.project.DefaultBranch)
	if err != nil {
		if d.metrics != nil {
			d.metrics.IncAdmissionErrors()
		}
		d.logger.Warn("spawn: worktree create failed", slog.String(log.StepIDKey, c.step.ID), slog.Any("error", err))
		return
	}

	role, _ := c.step.Role()
	runOpts := d.runOptionsFor(c, worktreePath, role)

	if err := d.workflow.MarkStepInProgress(ctx, c.project.Path, c.step.ID); err != nil {
		d.logger.Warn("spawn: mark in_progress failed", slog.String(log.StepIDKey, c.step.ID), slog.Any("error", err))
		return
	}

	entry := state.ActiveEntry{
		WorkItem: state.WorkItem{
			SourceID: sourceIDFromLabels(c.step),
			Title:    c.step.Title,
			Project:  c.project.Name,
		},
		WorkflowEpicID: c.step.Parent,
		WorkflowStepID: c.step.ID,
		WorktreePath:   worktreePath,
		StartedAt:      time.Now().UTC(),
		Agent:          role,
	}
	if err := d.store.Put(entry.WorkItem.SourceID, entry); err != nil {
		d.logger.Error("spawn: persist active work failed", slog.String(log.StepIDKey, c.step.ID), slog.Any("error", err))
		return
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("spawn: semaphore acquire failed", slog.String(log.StepIDKey, c.step.ID), slog.Any("error", err))
		return
	}

	d.group.Go(func() error {
		defer d.sem.Release(1)
		d.runWorker(c, entry, runOpts)
		return nil
	})
}

// branchName derives a per-step git branch so concurrent steps never share
// a worktree.
func branchName(step workflow.Step) string {
	return "whs/" + step.ID
}

// sourceIDFromLabels returns the step id, which keys the step's Active Work
// entry. It reads no label: steps carry no source: label of their own (only
// the epic does).
func sourceIDFromLabels(step workflow.Step) string {
	return step.ID
}

func (d *Dispatcher) runOptionsFor(c candidate, worktreePath, role string) agentrunner.RunOptions {
	path := roleFilePath(c.project.RoleDescDir, role)
	opts := agentrunner.RunOptions{
		Prompt:     buildPrompt(c.step),
		WorkingDir: worktreePath,
		MaxTurns:   0,
	}
	if roleFileExists(path) {
		opts.RoleFile = path
	}
	if resume, ok, err := d.workflow.GetStepResumeInfo(context.Background(), c.project.Path, c.step.ID); err == nil && ok && resume.SessionID != "" {
		opts.ResumeSessionID = resume.SessionID
		opts.ResumeAnswer = resume.Answer
	}
	return opts
}

// runWorker runs one agent run to completion and posts its outcome to the
// result channel. It never touches Active Work or the tracker directly —
// drainResults does that, serialized through the tick loop — so this
// goroutine has no shared state beyond the channel send.
func (d *Dispatcher) runWorker(c candidate, entry state.ActiveEntry, opts agentrunner.RunOptions) {
	runCtx, cancel := d.registerRun(entry.WorkItem.SourceID)
	defer cancel()

	result, err := d.runner.Run(runCtx, opts)
	if err != nil {
		result = agentrunner.Result{Success: false, Error: fmt.Sprintf("runner error: %v", err)}
	}

	r := runResult{
		sourceID:     entry.WorkItem.SourceID,
		project:      c.project,
		epicID:       c.step.Parent,
		stepID:       c.step.ID,
		worktreePath: entry.WorktreePath,
		role:         entry.Agent,
		startedAt:    entry.StartedAt,
		transcript:   result.Transcript,
		cost:         result.Cost,
		turns:        result.Turns,
		success:      result.Success,
		errMsg:       result.Error,
		isAuthError:  result.IsAuthError,
	}
	if result.PendingQuestion != nil {
		r.pendingQuestion = &pendingQuestionResult{
			sessionID: result.SessionID,
			questions: fromRunnerQuestions(result.PendingQuestion.Questions),
		}
	}

	select {
	case d.results <- r:
	case <-d.shutdownCtx.Done():
	}
}

func fromRunnerQuestions(items []agentrunner.QuestionItem) []questionItem {
	out := make([]questionItem, len(items))
	for i, it := range items {
		opts := make([]questionOption, len(it.Options))
		for j, o := range it.Options {
			opts[j] = questionOption{label: o.Label, description: o.Description}
		}
		out[i] = questionItem{
			question:    it.Question,
			header:      it.Header,
			multiSelect: it.MultiSelect,
			options:     opts,
		}
	}
	return out
}
