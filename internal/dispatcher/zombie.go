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

	"github.com/tombee/dispatchd/internal/tracker"
)

// zombieSweep implements stage 6 of the tick loop: reconcile Active Work
// against the tracker so an entry orphaned by a previous crash (its step
// closed or deleted out from under it) is dropped rather than wedging the
// admission count forever.
func (d *Dispatcher) zombieSweep(ctx context.Context) {
	paths := make([]string, len(d.cfg.Projects))
	for i, proj := range d.cfg.Projects {
		paths[i] = proj.Path
	}

	err := d.store.Reconcile(func(stepID string) (string, bool, error) {
		status, exists := stepExists(ctx, d.tracker, paths, stepID)
		return status, exists, nil
	})
	if err != nil {
		d.logger.Error("zombie sweep: reconcile failed", slog.Any("error", err))
	}
}

// stepExists looks a step up across every configured project, since Active
// Work does not record which project a step belongs to separately from its
// WorkItem snapshot.
func stepExists(ctx context.Context, client *tracker.Client, projects []string, stepID string) (string, bool) {
	for _, path := range projects {
		issue, err := client.Show(ctx, path, stepID)
		if err == nil {
			return issue.Status, true
		}
	}
	return "", false
}
