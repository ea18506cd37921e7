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

package dispatchcmd

import (
	"github.com/spf13/cobra"
)

// version is set by main via SetVersion before Execute runs.
var version = "dev"

// SetVersion records the build-time version string the "config" command
// reports.
func SetVersion(v string) {
	version = v
}

// NewRootCommand builds the dispatchd root command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatchd",
		Short: "dispatchd orchestrates coding-assistant agents across projects",
		Long: `dispatchd watches one or more project trackers for ready workflow
steps, spawns an isolated agent run per step in its own git worktree, and
routes each run's outcome — hand-off, clarifying question, or failure —
back into the tracker without a human in the loop for the common case.

Run 'dispatchd init' to create a configuration file, 'dispatchd add' to
register a project, and 'dispatchd start' to begin dispatching.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.config/dispatchd/config.yaml)")

	cmd.AddCommand(
		newInitCommand(),
		newStartCommand(),
		newStopCommand(),
		newRestartCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newPlanCommand(),
		newAnswerCommand(),
		newStatusCommand(),
		newPauseCommand(),
		newResumeCommand(),
		newListCommand(),
		newConfigCommand(),
	)

	return cmd
}
