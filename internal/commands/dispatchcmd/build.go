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

// Package dispatchcmd builds the cobra command tree dispatchd's CLI binary
// registers on its root command: init, start, stop, restart, add, remove,
// plan, answer, status, pause, resume, list, and config. Every command
// that talks to a *running* dispatcher does so through internal/control's
// Client rather than touching the state store or tracker directly, the
// same separation the teacher's CLI kept between its command layer and
// its daemon package.
package dispatchcmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tombee/dispatchd/internal/agentrunner"
	"github.com/tombee/dispatchd/internal/ci"
	"github.com/tombee/dispatchd/internal/control"
	"github.com/tombee/dispatchd/internal/dconfig"
	"github.com/tombee/dispatchd/internal/dispatcher"
	"github.com/tombee/dispatchd/internal/handoff"
	"github.com/tombee/dispatchd/internal/log"
	"github.com/tombee/dispatchd/internal/lifecycle"
	"github.com/tombee/dispatchd/internal/notify"
	"github.com/tombee/dispatchd/internal/question"
	"github.com/tombee/dispatchd/internal/secrets"
	"github.com/tombee/dispatchd/internal/state"
	"github.com/tombee/dispatchd/internal/telemetry"
	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
	"github.com/tombee/dispatchd/internal/worktree"

	"github.com/prometheus/client_golang/prometheus"
)

// configPath is set by the root command's --config persistent flag; empty
// means "use the XDG default", resolved lazily so tests can override it.
var configPath string

func loadConfig() (*dconfig.Config, error) {
	path := configPath
	if path == "" {
		p, err := dconfig.Path()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}
	return dconfig.Load(path)
}

func pidFilePath(dir string) string {
	return filepath.Join(dir, "dispatchd.pid")
}

func lockFilePath(dir string) string {
	return filepath.Join(dir, "dispatcher.lock")
}

func statePath(dir string) string {
	return filepath.Join(dir, "state.json")
}

func lifecycleLogPath(dir string) string {
	return filepath.Join(dir, "lifecycle.log")
}

func runLogPath(dir string) string {
	return filepath.Join(dir, "dispatchd.log")
}

// runtime bundles everything start/restart's foreground path needs beyond
// the dispatcher itself: the control server and the telemetry endpoint,
// both of which outlive a single tick and must be shut down in order.
type runtime struct {
	dispatcher *dispatcher.Dispatcher
	control    *control.Server
	telemetry  *telemetry.Server
	metrics    *telemetry.Collector
	tracer     *telemetry.Tracer
	logger     *slog.Logger
}

// buildRuntime wires every collaborator SPEC §6 names into one Dispatcher,
// grounded on the same Deps literal the teacher's controller package
// assembled from its own backend/connection-manager pair.
func buildRuntime(cfg *dconfig.Config, dir string) (*runtime, error) {
	logger := log.New(&log.Config{
		Level:  cfg.Log.Level,
		Format: log.Format(cfg.Log.Format),
	})

	trackerClient := tracker.NewClient(cfg.Tracker.Binary, cfg.Tracker.Timeout)
	worktreeClient := worktree.NewClient(cfg.Tracker.Timeout)
	workflowSvc := workflow.NewService(trackerClient)
	router := handoff.NewRouter(workflowSvc)
	mediator := question.NewMediator(trackerClient, workflowSvc)
	store := state.NewStore(statePath(dir))
	lock := state.NewLock(lockFilePath(dir))

	resolver := secrets.NewResolver("dispatchd")
	runner := agentrunner.NewSubscriptionRunner(cfg.Agent.Binary).
		WithEnv(resolver.FilteredEnv(cfg.Agent.SecretKeys))

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("build metrics collector: %w", err)
	}

	tracerCfg := telemetry.TracerConfig{
		ServiceName:    "dispatchd",
		ServiceVersion: "dev",
		Exporter:       telemetry.TraceExporterNone,
	}
	tr, err := telemetry.NewTracer(tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("build tracer: %w", err)
	}

	var checker dispatcher.CIChecker
	if cfg.CI.PollInterval > 0 {
		checker = ci.NewGHChecker("gh", 20*time.Second)
	}

	d := dispatcher.New(dispatcher.ConfigFromDconfig(cfg), dispatcher.Deps{
		Tracker:  trackerClient,
		Worktree: worktreeClient,
		Workflow: workflowSvc,
		Router:   router,
		Mediator: mediator,
		Runner:   runner,
		Store:    store,
		Lock:     lock,
		CI:       checker,
		Notifier: notifier,
		Metrics:  metrics,
		Tracer:   tr,
		Logger:   logger,
	})

	ctrlSrv := control.NewServer(cfg.Control.SocketPath, logger)
	control.RegisterHandlers(ctrlSrv, control.Deps{
		Dispatcher: d,
		Store:      store,
		Mediator:   mediator,
		Projects:   cfg.Projects,
	})

	telSrv, err := telemetry.NewServer("127.0.0.1:9477", registry)
	if err != nil {
		return nil, fmt.Errorf("build telemetry server: %w", err)
	}

	return &runtime{dispatcher: d, control: ctrlSrv, telemetry: telSrv, metrics: metrics, tracer: tr, logger: logger}, nil
}

func pidManager(dir string) *lifecycle.PIDFileManager {
	return lifecycle.NewPIDFileManager(pidFilePath(dir))
}
