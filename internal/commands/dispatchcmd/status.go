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

func newStatusCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether dispatchd is running and what it's working on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}

			client := control.NewClient(cfg.Control.SocketPath, 5*time.Second)
			var out control.StatusView
			if err := client.Call(cmd.Context(), "status", nil, &out); err != nil {
				return shared.NewUnavailableError("connect to dispatchd", err)
			}

			if out.Paused {
				fmt.Println(shared.RenderPaused(fmt.Sprintf("paused, %d active", out.ActiveCount)))
			} else {
				fmt.Println(shared.RenderOK(fmt.Sprintf("running, %d active", out.ActiveCount)))
			}

			if verbose {
				for _, w := range out.ActiveWork {
					fmt.Printf("  %-24s %-12s role=%-16s started=%s\n", w.SourceID, w.Project, w.Agent, w.StartedAt)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list active work")
	return cmd
}
