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
	"github.com/tombee/dispatchd/internal/dconfig"
)

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Unregister a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}

			kept := make([]dconfig.ProjectConfig, 0, len(cfg.Projects))
			found := false
			for _, p := range cfg.Projects {
				if p.Name == name {
					found = true
					continue
				}
				kept = append(kept, p)
			}
			if !found {
				return shared.NewUsageError(fmt.Sprintf("no project named %q is registered", name), nil)
			}
			cfg.Projects = kept

			cfgPath, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if err := dconfig.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("removed project %q", name)))
			return nil
		},
	}

	return cmd
}
