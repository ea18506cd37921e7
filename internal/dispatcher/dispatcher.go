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

package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tombee/dispatchd/internal/agentrunner"
	"github.com/tombee/dispatchd/internal/handoff"
	"github.com/tombee/dispatchd/internal/log"
	"github.com/tombee/dispatchd/internal/question"
	"github.com/tombee/dispatchd/internal/state"
	"github.com/tombee/dispatchd/internal/tracker"
	"github.com/tombee/dispatchd/internal/workflow"
	"github.com/tombee/dispatchd/internal/worktree"
)

// Dispatcher owns the tick loop and every mutation of Active Work. It is
// single-threaded with respect to shared state: the tick loop is the only
// goroutine that reads or writes the tracker's workflow state or the State
// Store's map, aside from atomic reads of the paused/draining flags. Agent
// runs execute as detached workers whose only interaction with shared
// state is a send on the result channel, serialized back through
// drainResults on the next tick.
type Dispatcher struct {
	cfg Config

	tracker  *tracker.Client
	worktree *worktree.Client
	workflow *workflow.Service
	router   *handoff.Router
	mediator *question.Mediator
	runner   agentrunner.Runner
	store    *state.Store
	lock     *state.Lock
	ci       CIChecker

	notifier Notifier
	metrics  Metrics
	tracer   Tracer
	logger   *slog.Logger

	results chan runResult
	sem     *semaphore.Weighted
	group   *errgroup.Group

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	draining bool
	drainMu  sync.Mutex

	runsMu  sync.Mutex
	runs    map[string]context.CancelFunc
}

// Deps bundles the collaborators a Dispatcher is built from.
type Deps struct {
	Tracker  *tracker.Client
	Worktree *worktree.Client
	Workflow *workflow.Service
	Router   *handoff.Router
	Mediator *question.Mediator
	Runner   agentrunner.Runner
	Store    *state.Store
	Lock     *state.Lock
	CI       CIChecker
	Notifier Notifier
	Metrics  Metrics
	Tracer   Tracer
	Logger   *slog.Logger
}

// New returns a Dispatcher built from cfg and deps. Call Start to acquire
// the lock, load persisted state, and enter the tick loop.
func New(cfg Config, deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTotal := int64(cfg.MaxTotal)
	if maxTotal <= 0 {
		maxTotal = 1
	}
	return &Dispatcher{
		cfg:      cfg,
		tracker:  deps.Tracker,
		worktree: deps.Worktree,
		workflow: deps.Workflow,
		router:   deps.Router,
		mediator: deps.Mediator,
		runner:   deps.Runner,
		store:    deps.Store,
		lock:     deps.Lock,
		ci:       deps.CI,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   logger,
		results:  make(chan runResult, 64),
		sem:      semaphore.NewWeighted(maxTotal),
		group:    &errgroup.Group{},
		runs:     make(map[string]context.CancelFunc),
	}
}

// Start acquires the dispatcher lock, loads persisted state, reconciles it
// against the tracker, installs signal handlers, and runs the tick loop
// until ctx is cancelled or RequestShutdown/Abort is called. It returns
// ErrAlreadyRunning (in place of state.ErrAlreadyRunning) if another live
// process already holds the lock.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.lock.Acquire(); err != nil {
		if err == state.ErrAlreadyRunning {
			return ErrAlreadyRunning
		}
		return err
	}
	defer d.lock.Release()

	if err := d.store.Load(); err != nil {
		return err
	}
	d.zombieSweep(ctx)

	d.shutdownCtx, d.shutdownCancel = context.WithCancel(ctx)
	defer d.shutdownCancel()

	stopSignals := d.installSignalHandlers()
	defer stopSignals()

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", slog.Duration("tick_interval", d.cfg.TickInterval))

	for {
		select {
		case <-d.shutdownCtx.Done():
			return d.drain()
		case <-ticker.C:
			d.tick(d.shutdownCtx)
		}
	}
}

// tick runs one pass of the six-stage loop. Each stage is independent: a
// failure in one does not prevent the others from running, and none are
// reordered.
func (d *Dispatcher) tick(ctx context.Context) {
	if d.metrics != nil {
		d.metrics.IncTicks()
	}

	var endSpan func()
	if d.tracer != nil {
		ctx, endSpan = d.tracer.StartSpan(ctx, "dispatcher.tick")
		defer endSpan()
	}

	d.drainResults(ctx)

	if d.isPaused() {
		d.reportGauges()
		return
	}

	selected := d.admit(ctx)
	d.preflightAndSpawn(ctx, selected)
	d.ciWatch(ctx)
	d.zombieSweep(ctx)
	d.reportGauges()
}

func (d *Dispatcher) reportGauges() {
	if d.metrics == nil {
		return
	}
	d.metrics.SetActiveWork(d.store.Len())
}

// admit implements stage 2: list ready steps across every project, then
// select up to the free global/per-project slots.
func (d *Dispatcher) admit(ctx context.Context) []candidate {
	freeSlots := d.cfg.MaxTotal - d.store.Len()
	if freeSlots <= 0 {
		return nil
	}

	projectActive := make(map[string]int)
	for _, entry := range d.store.Snapshot() {
		projectActive[entry.WorkItem.Project]++
	}

	var ready []candidate
	for _, proj := range d.cfg.Projects {
		steps, err := d.workflow.GetReadyWorkflowSteps(ctx, proj.Path)
		if err != nil {
			if d.metrics != nil {
				d.metrics.IncAdmissionErrors()
			}
			d.logger.Warn("admission: list ready steps failed", slog.String(log.ProjectKey, proj.Name), slog.Any("error", err))
			continue
		}
		for _, step := range steps {
			ready = append(ready, candidate{step: step, project: proj})
		}
	}

	return selectAdmissible(ready, freeSlots, d.cfg.MaxPerProject, projectActive)
}

// isPaused mirrors the State Store's persisted paused flag; the dispatcher
// treats it, not an in-memory bool, as the source of truth so a pause
// toggled just before a crash survives the restart.
func (d *Dispatcher) isPaused() bool {
	return d.store.Paused()
}

// registerRun creates a cancellation handle for one agent run, tracked so
// RequestShutdown/Abort can cancel every outstanding run.
func (d *Dispatcher) registerRun(sourceID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(d.shutdownCtx)

	d.runsMu.Lock()
	d.runs[sourceID] = cancel
	d.runsMu.Unlock()

	return ctx, func() {
		cancel()
		d.runsMu.Lock()
		delete(d.runs, sourceID)
		d.runsMu.Unlock()
	}
}

func (d *Dispatcher) cancelAllRuns() {
	d.runsMu.Lock()
	defer d.runsMu.Unlock()
	for _, cancel := range d.runs {
		cancel()
	}
}

// RequestShutdown begins graceful shutdown: it cancels the tick loop,
// cancels every outstanding agent run politely (the runner's own TERM then
// KILL escalation), and waits up to grace for workers to post their
// results and persist before releasing the lock. Call Start in a goroutine
// and this from a signal handler or control-socket command.
func (d *Dispatcher) RequestShutdown() {
	d.drainMu.Lock()
	d.draining = true
	d.drainMu.Unlock()

	if d.shutdownCancel != nil {
		d.shutdownCancel()
	}
}

// drain waits up to the configured grace period for outstanding workers to
// finish after shutdown has been requested.
func (d *Dispatcher) drain() error {
	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.GracePeriod):
		d.logger.Warn("shutdown: grace period elapsed with workers still running")
	}

	d.drainResults(context.Background())
	d.logger.Info("dispatcher stopped")
	return nil
}

// Abort is the forceful termination path: every outstanding run is
// cancelled immediately with no further grace period.
func (d *Dispatcher) Abort() {
	d.cancelAllRuns()
	if d.shutdownCancel != nil {
		d.shutdownCancel()
	}
}

// Pause sets the persisted paused flag: running agents finish, no new work
// is admitted.
func (d *Dispatcher) Pause() error {
	return d.store.SetPaused(true)
}

// Resume clears the persisted paused flag.
func (d *Dispatcher) Resume() error {
	return d.store.SetPaused(false)
}

// ActiveCount reports how many runs are currently in flight.
func (d *Dispatcher) ActiveCount() int {
	return d.store.Len()
}
