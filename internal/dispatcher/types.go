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

// Package dispatcher owns the tick loop: admission, spawning agent runs
// inside isolated worktrees, routing their hand-offs, watching CI, and
// reconciling crashed state. It is the only package that mutates Active
// Work and the only caller that ties the Tracker Adapter, Worktree
// Adapter, Workflow Service, Agent Runner, Hand-off Router, Question
// Mediator and State Store together.
package dispatcher

import (
	"context"
	"time"

	"github.com/tombee/dispatchd/internal/dconfig"
)

// ErrAlreadyRunning (errors.go) is returned by Start when another live
// dispatcher process already holds the lock. It is this package's own
// sentinel, returned in place of state.ErrAlreadyRunning, not a wrapper of it.

// Notifier delivers a human-readable message to whatever sinks are
// configured (stdout, webhook, file). The dispatcher only ever sends one
// message at a time; fan-out across sinks is the Notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Metrics records the counters and gauges the Metrics & Tracing component
// exposes over Prometheus. A nil Metrics is never passed in production but
// every call site tolerates one for tests that don't care about telemetry.
type Metrics interface {
	IncTicks()
	IncAdmissionErrors()
	SetActiveWork(n int)
	SetQueueDepth(n int)
	ObserveRunDuration(role string, d time.Duration)
}

// Tracer starts a span for one unit of work and returns a function that
// ends it. A nil Tracer is a valid no-op.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

// Config carries the tick loop's tunables, taken from dconfig.Config at
// startup. It is not updated while the dispatcher runs.
type Config struct {
	TickInterval        time.Duration
	MaxTotal            int
	MaxPerProject       int
	MaxDispatchAttempts int
	CIPollInterval      time.Duration
	CIMaxRetries        int
	GracePeriod         time.Duration
	Projects            []dconfig.ProjectConfig
}

// ConfigFromDconfig derives a Config from the loaded application
// configuration.
func ConfigFromDconfig(cfg *dconfig.Config) Config {
	return Config{
		TickInterval:        5 * time.Second,
		MaxTotal:            cfg.Admission.MaxTotal,
		MaxPerProject:       cfg.Admission.MaxPerProject,
		MaxDispatchAttempts: cfg.Admission.MaxDispatchAttempts,
		CIPollInterval:      cfg.CI.PollInterval,
		CIMaxRetries:        cfg.CI.MaxRetries,
		GracePeriod:         10 * time.Second,
		Projects:            cfg.Projects,
	}
}

// runResult is what a spawn worker posts to the result channel once an
// agent run finishes, whatever the outcome.
type runResult struct {
	sourceID     string
	project      dconfig.ProjectConfig
	epicID       string
	stepID       string
	worktreePath string
	role         string
	startedAt    time.Time

	transcript      string
	cost            float64
	turns           int
	success         bool
	errMsg          string
	isAuthError     bool
	pendingQuestion *pendingQuestionResult
}

// pendingQuestionResult carries a runner's PendingQuestion payload plus the
// session id needed to resume, decoupled from the agentrunner package so
// this file doesn't need to import it just for the struct shape.
type pendingQuestionResult struct {
	sessionID string
	questions []questionItem
}

type questionItem struct {
	question    string
	header      string
	multiSelect bool
	options     []questionOption
}

type questionOption struct {
	label       string
	description string
}
