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
	"sort"

	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/workflow"
)

// candidate pairs a ready step with the project it belongs to, resolved
// once so the selection pass never has to re-look-up the project registry.
type candidate struct {
	step    workflow.Step
	project dconfig.ProjectConfig
}

// selectAdmissible applies the admission rule from the tick loop: sort
// ready steps by (priority asc, createdAt asc), then greedily take steps
// while free global and per-project slots remain. projectActive is the
// count of Active-Work entries already running per project name.
func selectAdmissible(ready []candidate, freeSlots int, maxPerProject int, projectActive map[string]int) []candidate {
	if freeSlots <= 0 {
		return nil
	}

	sorted := make([]candidate, len(ready))
	copy(sorted, ready)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].step, sorted[j].step
		if si.Priority != sj.Priority {
			return si.Priority < sj.Priority
		}
		return si.CreatedAt.Before(sj.CreatedAt)
	})

	active := make(map[string]int, len(projectActive))
	for k, v := range projectActive {
		active[k] = v
	}

	var selected []candidate
	for _, c := range sorted {
		if len(selected) >= freeSlots {
			break
		}
		name := c.project.Name
		if active[name] >= maxPerProject {
			continue
		}
		active[name]++
		selected = append(selected, c)
	}
	return selected
}
