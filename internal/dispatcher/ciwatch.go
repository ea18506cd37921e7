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

	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/log"
	"github.com/tombee/dispatchd/internal/workflow"
)

// CIChecker polls a pull request's CI state through whatever forge the
// project uses. The dispatcher treats it as an external collaborator, the
// same way it treats the tracker and worktree binaries: a typed interface
// with no opinion on transport (GitHub Checks API, a CI provider's own
// API, a polling script — any of these can satisfy it).
type CIChecker interface {
	// CheckPR reports the terminal CI status for prNumber in project, or
	// ("", false, nil) if it has not reached a terminal state yet.
	CheckPR(ctx context.Context, project, prNumber string) (status string, terminal bool, err error)
}

// ciWatch implements stage 5 of the tick loop: for every step waiting on
// CI, poll at most once per tick, and on a terminal result strip
// ci:pending, record the outcome, and on failure materialize a retry step
// addressed to the implementation role.
func (d *Dispatcher) ciWatch(ctx context.Context) {
	if d.ci == nil {
		return
	}

	for _, proj := range d.cfg.Projects {
		steps, err := d.workflow.GetStepsPendingCI(ctx, proj.Path)
		if err != nil {
			d.logger.Warn("ci watch: list pending steps failed", slog.String(log.ProjectKey, proj.Name), slog.Any("error", err))
			continue
		}

		for _, step := range steps {
			d.pollStepCI(ctx, proj, step)
		}
	}
}

func (d *Dispatcher) pollStepCI(ctx context.Context, proj dconfig.ProjectConfig, step workflow.Step) {
	pr, ok := step.PRNumber()
	if !ok {
		return
	}

	status, terminal, err := d.ci.CheckPR(ctx, proj.Path, fmt.Sprintf("%d", pr))
	if err != nil {
		d.logger.Warn("ci watch: poll failed", slog.String(log.ProjectKey, proj.Name), slog.String(log.StepIDKey, step.ID), slog.Any("error", err))
		return
	}
	if !terminal {
		return
	}

	epicID := step.Parent
	if err := d.workflow.SetStepCIStatus(ctx, proj.Path, step.ID, status); err != nil {
		d.logger.Warn("ci watch: update step failed", slog.String(log.StepIDKey, step.ID), slog.Any("error", err))
		return
	}

	if status == workflow.CIFailed {
		role, _ := step.Role()
		if role == "" {
			role = "implementation"
		}
		if _, err := d.workflow.CreateNextStep(ctx, proj.Path, epicID, "implementation", fmt.Sprintf("CI failed on PR #%d for %s; investigate and fix.", pr, role), workflow.NextStepInput{
			PRNumber: &pr,
		}); err != nil {
			d.logger.Warn("ci watch: create retry step failed", slog.String(log.EpicIDKey, epicID), slog.Any("error", err))
		}
	}

	d.logger.Info("ci watch: resolved", slog.String(log.StepIDKey, step.ID), slog.String("ci_status", status))
}
