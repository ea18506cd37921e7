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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/dconfig"
)

func newAddCommand() *cobra.Command {
	var (
		name          string
		defaultBranch string
		isolation     string
		roleDescDir   string
	)

	cmd := &cobra.Command{
		Use:   "add [path]",
		Short: "Register a project the dispatcher should watch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				p, err := shared.PromptText("Path to the project's git checkout:")
				if err != nil {
					return err
				}
				path = p
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", path, err)
			}

			if name == "" {
				name = filepath.Base(abs)
			}

			cfg, err := loadConfig()
			if err != nil {
				return shared.NewUsageError("load config", err)
			}

			if _, ok := cfg.ProjectByName(name); ok {
				return shared.NewUsageError(fmt.Sprintf("project %q is already registered", name), nil)
			}

			if defaultBranch == "" {
				defaultBranch = "main"
			}
			if isolation == "" {
				isolation = dconfig.IsolationCommitted
			}

			cfg.Projects = append(cfg.Projects, dconfig.ProjectConfig{
				Name:          name,
				Path:          abs,
				DefaultBranch: defaultBranch,
				IsolationMode: isolation,
				RoleDescDir:   roleDescDir,
			})

			cfgPath, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if err := dconfig.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Println(shared.RenderOK(fmt.Sprintf("registered project %q (%s)", name, abs)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (default: the checkout's directory name)")
	cmd.Flags().StringVar(&defaultBranch, "default-branch", "", "branch worktrees are created from (default: main)")
	cmd.Flags().StringVar(&isolation, "isolation", "", "committed or stealth (default: committed)")
	cmd.Flags().StringVar(&roleDescDir, "role-desc-dir", "", "directory of per-role system-prompt files")
	return cmd
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return dconfig.Path()
}
