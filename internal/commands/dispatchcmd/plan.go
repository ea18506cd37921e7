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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
)

func newPlanCommand() *cobra.Command {
	var (
		project  string
		issueTyp string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "plan [description]",
		Short: "File a new piece of work and start its workflow",
		Long: `plan creates a tracker issue for the given description and starts a
workflow epic against it, seeded at --role (default: implementation). The
dispatcher picks the resulting step up on its next tick like any other
ready work.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) == 1 {
				description = args[0]
			}
			if description == "" {
				d, err := shared.PromptText("What should this work accomplish?")
				if err != nil {
					return err
				}
				description = d
			}

			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}
			if project == "" {
				if len(cfg.Projects) == 1 {
					project = cfg.Projects[0].Name
				} else {
					return shared.NewUsageError("--project is required when more than one project is registered", nil)
				}
			}
			proj, ok := cfg.ProjectByName(project)
			if !ok {
				return shared.NewUsageError(fmt.Sprintf("no project named %q is registered", project), nil)
			}

			ctx := cmd.Context()
			trackerClient := tracker.NewClient(cfg.Tracker.Binary, cfg.Tracker.Timeout)
			workflowSvc := workflow.NewService(trackerClient)

			issueID, err := trackerClient.Create(ctx, proj.Path, tracker.CreateInput{
				Title: description,
				Type:  issueTyp,
			})
			if err != nil {
				return fmt.Errorf("create tracker issue: %w", err)
			}

			issue := tracker.Issue{ID: issueID, Title: description, Type: issueTyp}
			epicID, stepID, err := workflowSvc.StartWorkflow(ctx, proj.Path, proj.Name, issue, role)
			if err != nil {
				return fmt.Errorf("start workflow: %w", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("planned %s: issue %s, epic %s, first step %s", proj.Name, issueID, epicID, stepID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project to file the work against (required when more than one project is registered)")
	cmd.Flags().StringVar(&issueTyp, "type", tracker.TypeTask, "tracker issue type (task, epic, bug)")
	cmd.Flags().StringVar(&role, "role", "implementation", "first workflow role to run")
	return cmd
}
