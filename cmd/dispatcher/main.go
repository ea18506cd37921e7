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

// Command dispatcher is the dispatchd CLI: init, start, stop, restart, add,
// remove, plan, answer, status, pause, resume, list, and config.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/tombee/dispatchd/internal/commands/dispatchcmd"
	"github.com/tombee/dispatchd/internal/commands/shared"
)

// version, commit, and buildDate are set via -ldflags at release build
// time; they default to "dev" for local builds.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	dispatchcmd.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := dispatchcmd.NewRootCommand()
	root.Version = version
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		shared.HandleExitError(err)
	}
}
