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
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/dconfig"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new dispatchd configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				p, err := dconfig.Path()
				if err != nil {
					return shared.NewUsageError("resolve config path", err)
				}
				path = p
			}

			if _, err := os.Stat(path); err == nil && !force {
				return shared.NewUsageError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			}

			cfg := dconfig.Default()
			if err := dconfig.Save(path, cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("wrote %s", path)))
			fmt.Println(shared.RenderLabel("next: "), "dispatchd add <project-path> to register a project")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
