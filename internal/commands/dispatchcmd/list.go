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

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work currently being dispatched",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}

			client := control.NewClient(cfg.Control.SocketPath, 5*time.Second)
			var out []control.WorkItemView
			if err := client.Call(cmd.Context(), "list", nil, &out); err != nil {
				return shared.NewUnavailableError("connect to dispatchd", err)
			}

			if len(out) == 0 {
				fmt.Println(shared.RenderLabel("no active work"))
				return nil
			}

			fmt.Printf("%-24s %-12s %-16s %-8s %s\n", "SOURCE", "PROJECT", "AGENT", "STEP", "STARTED")
			for _, w := range out {
				fmt.Printf("%-24s %-12s %-16s %-8s %s\n", w.SourceID, w.Project, w.Agent, w.StepID, w.StartedAt)
			}
			return nil
		},
	}
	return cmd
}
