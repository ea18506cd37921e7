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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/control"
)

func newAnswerCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "answer <questionId> [answer]",
		Short: "Answer a clarifying question an agent raised",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID := args[0]
			answer := ""
			if len(args) == 2 {
				answer = args[1]
			}
			if answer == "" {
				a, err := shared.PromptText(fmt.Sprintf("Answer for question %s:", questionID))
				if err != nil {
					return err
				}
				answer = a
			}
			if project == "" {
				return shared.NewUsageError("--project is required", nil)
			}

			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}

			client := control.NewClient(cfg.Control.SocketPath, 5*time.Second)
			if err := client.Call(cmd.Context(), "answer", control.AnswerParams{
				Project:    project,
				QuestionID: questionID,
				Answer:     answer,
			}, nil); err != nil {
				return fmt.Errorf("submit answer: %w", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("answered question %s", questionID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project the question belongs to")
	return cmd
}
