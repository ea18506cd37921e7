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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/lifecycle"
)

func newStopCommand() *cobra.Command {
	var (
		timeout time.Duration
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the dispatcher",
		Long: `Stop dispatchd gracefully: sends SIGTERM and waits for outstanding
agent runs to finish or the timeout to elapse, then SIGKILLs. Use --force
to send SIGKILL immediately. Idempotent: exits successfully (after
removing a stale PID file, if any) when dispatchd is not running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(timeout, force)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "graceful shutdown timeout before SIGKILL")
	cmd.Flags().BoolVar(&force, "force", false, "send SIGKILL immediately instead of waiting")
	return cmd
}

func runStop(timeout time.Duration, force bool) error {
	dir, err := dconfig.Dir()
	if err != nil {
		return err
	}

	lifecycleLog := lifecycle.NewLifecycleLogger(lifecycleLogPath(dir))
	pidMgr := pidManager(dir)

	pid, err := pidMgr.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("dispatchd is not running (no PID file)")
			return nil
		}
		return fmt.Errorf("read PID file: %w", err)
	}

	if !lifecycle.IsProcessRunning(pid) {
		_ = lifecycleLog.LogStalePID(pid, "process not running")
		fmt.Printf("dispatchd process %d is not running (removing stale PID file)\n", pid)
		return pidMgr.Remove()
	}

	if !lifecycle.IsDispatchdProcess(pid) {
		return fmt.Errorf("PID %d is not a dispatchd process (refusing to stop)", pid)
	}

	_ = lifecycleLog.LogStop(pid, force)
	fmt.Printf("Stopping dispatchd (PID %d)...\n", pid)

	start := time.Now()
	if err := lifecycle.GracefulShutdown(pid, timeout, force); err != nil {
		_ = lifecycleLog.LogStopFailure(pid, err)
		return fmt.Errorf("stop dispatchd: %w", err)
	}

	if err := pidMgr.Remove(); err != nil {
		fmt.Println(shared.RenderWarn(fmt.Sprintf("failed to remove PID file: %v", err)))
	}

	_ = lifecycleLog.LogStopSuccess(pid, time.Since(start))
	fmt.Println(shared.RenderOK("dispatchd stopped"))
	return nil
}
