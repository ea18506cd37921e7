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
	"fmt"
	"os"
	"path/filepath"

	"github.com/tombee/dispatchd/internal/workflow"
)

// buildPrompt assembles the user-turn prompt for a step from the step's
// stored context (its description carries the prior step's hand-off, or
// the source issue's description for a first step). The agent's own
// behavior is governed by the role's system prompt file, resolved
// separately via roleFilePath.
func buildPrompt(step workflow.Step) string {
	role, _ := step.Role()
	return fmt.Sprintf("# Task: %s\n\nRole: %s\n\n%s", step.Title, role, step.Description)
}

// roleFilePath resolves the system-prompt file for role within a project's
// role-description directory, returning "" if the directory is unset.
func roleFilePath(roleDescDir, role string) string {
	if roleDescDir == "" {
		return ""
	}
	return filepath.Join(roleDescDir, role+".md")
}

// roleFileExists reports whether a resolved role file is present on disk,
// so a missing one can fall back to running with no role file (no --agent
// flag) rather than fail the run.
func roleFileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
