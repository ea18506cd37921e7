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
)

func newRestartCommand() *cobra.Command {
	var (
		timeout time.Duration
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runStop(timeout, force); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			if err := runStart(cmd.Context(), false, timeout); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "graceful shutdown and health-check timeout")
	cmd.Flags().BoolVar(&force, "force", false, "send SIGKILL immediately instead of waiting during stop")
	return cmd
}
