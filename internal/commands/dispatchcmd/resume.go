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

func newResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume admitting new work after a pause",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}
			client := control.NewClient(cfg.Control.SocketPath, 5*time.Second)
			if err := client.Call(cmd.Context(), "resume", nil, nil); err != nil {
				return shared.NewUnavailableError("connect to dispatchd", err)
			}
			fmt.Println(shared.RenderOK("dispatchd resumed"))
			return nil
		},
	}
	return cmd
}
