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
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/dispatchd/internal/commands/shared"
	"github.com/tombee/dispatchd/internal/control"
	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/lifecycle"
)

func newStartCommand() *cobra.Command {
	var (
		foreground bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the dispatcher",
		Long: `Start dispatchd in the background and write a PID file.

Use --foreground to run in the current terminal instead (no PID file,
logs to stderr). start is idempotent: if a healthy dispatcher is already
running, it exits successfully without starting a second instance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), foreground, timeout)
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in the current terminal instead of spawning a background process")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the control socket to come up")
	return cmd
}

func runStart(ctx context.Context, foreground bool, timeout time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return shared.NewUsageError("load config", err)
	}

	dir, err := dconfig.Dir()
	if err != nil {
		return err
	}

	lifecycleLog := lifecycle.NewLifecycleLogger(lifecycleLogPath(dir))
	_ = lifecycleLog.LogStart(version, os.Args[1:], configPath)

	if foreground {
		fmt.Println("Starting dispatchd in foreground mode...")
		return runForeground(ctx, cfg, dir)
	}

	pidMgr := pidManager(dir)
	existingPID, err := pidMgr.Read()
	if err == nil {
		if lifecycle.IsProcessRunning(existingPID) && lifecycle.IsDispatchdProcess(existingPID) {
			if err := waitForHealthy(cfg.Control.SocketPath, 5*time.Second); err == nil {
				_ = lifecycleLog.LogAlreadyRunning(existingPID)
				fmt.Println(shared.RenderOK(fmt.Sprintf("dispatchd is already running (PID %d)", existingPID)))
				return nil
			}
			fmt.Println(shared.RenderWarn(fmt.Sprintf("process %d exists but control socket is unhealthy, starting a new instance", existingPID)))
		} else {
			_ = lifecycleLog.LogStalePID(existingPID, "process not running")
			fmt.Println(shared.RenderWarn(fmt.Sprintf("removing stale PID file (process %d not running)", existingPID)))
			if err := pidMgr.Remove(); err != nil {
				return fmt.Errorf("remove stale PID file: %w", err)
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check existing dispatchd process: %w", err)
	}

	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	args := []string{"start", "--foreground"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	spawner := lifecycle.NewSpawner()
	pid, err := spawner.SpawnDetached(binaryPath, args, runLogPath(dir))
	if err != nil {
		_ = lifecycleLog.LogStartFailure(err)
		return fmt.Errorf("spawn dispatchd: %w", err)
	}

	fmt.Printf("Starting dispatchd (PID %d)...\n", pid)
	start := time.Now()
	if err := waitForHealthy(cfg.Control.SocketPath, timeout); err != nil {
		_ = lifecycle.SendSignal(pid, 15)
		_ = lifecycleLog.LogStartFailure(err)
		return fmt.Errorf("dispatchd failed to become healthy within %v: %w", timeout, err)
	}

	if err := pidMgr.Create(pid); err != nil {
		fmt.Println(shared.RenderWarn(fmt.Sprintf("dispatchd started but failed to write PID file: %v", err)))
		fmt.Println(shared.RenderOK(fmt.Sprintf("dispatchd started successfully (PID %d)", pid)))
		return nil
	}

	_ = lifecycleLog.LogStartSuccess(pid, 0, time.Since(start))
	fmt.Println(shared.RenderOK(fmt.Sprintf("dispatchd started successfully (PID %d)", pid)))
	return nil
}

// runForeground builds every collaborator and runs the dispatcher, control
// socket, and telemetry endpoint inline until ctx is cancelled.
func runForeground(ctx context.Context, cfg *dconfig.Config, dir string) error {
	rt, err := buildRuntime(cfg, dir)
	if err != nil {
		return err
	}

	if err := rt.control.Listen(); err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}

	errCh := make(chan error, 3)
	go func() { errCh <- rt.control.Serve(ctx) }()
	go func() { errCh <- rt.telemetry.Serve(ctx) }()
	go func() { errCh <- rt.dispatcher.Start(ctx) }()

	defer func() {
		_ = rt.tracer.Shutdown(context.Background())
		_ = rt.metrics.Shutdown(context.Background())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// waitForHealthy polls the control socket's "status" method until it
// answers or timeout elapses.
func waitForHealthy(socketPath string, timeout time.Duration) error {
	client := control.NewClient(socketPath, 2*time.Second)

	interval := 100 * time.Millisecond
	const maxInterval = time.Second
	deadline := time.Now().Add(timeout)

	var lastErr error
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var out control.StatusView
		lastErr = client.Call(ctx, "status", nil, &out)
		cancel()
		if lastErr == nil {
			return nil
		}

		time.Sleep(interval)
		interval = time.Duration(float64(interval) * 1.5)
		if interval > maxInterval {
			interval = maxInterval
		}
	}
	return fmt.Errorf("health check timed out: %w", lastErr)
}
