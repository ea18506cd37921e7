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

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func roleAttr(role string) attribute.KeyValue {
	return attribute.String("role", role)
}

// Collector records the dispatcher's tick-loop counters and gauges through
// the OpenTelemetry metrics API, exported to Prometheus by bridging an
// otel MeterProvider to reg via the exporters/prometheus reader — the same
// pairing the teacher's tracing.OTelProvider builds its MetricsCollector
// on top of. It implements the dispatcher.Metrics interface.
type Collector struct {
	provider *sdkmetric.MeterProvider

	ticks           metric.Int64Counter
	admissionErrors metric.Int64Counter
	runDuration     metric.Float64Histogram

	mu            sync.RWMutex
	activeWork    int64
	queueDepth    int64
	questionsOpen int64
}

// NewCollector creates a Collector whose meter provider reads through an
// otel Prometheus exporter registered against reg. Pass
// prometheus.NewRegistry() to keep dispatchd's metrics isolated from the
// default registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("dispatchd")

	c := &Collector{provider: provider}

	c.ticks, err = meter.Int64Counter(
		"dispatch_ticks_total",
		metric.WithDescription("Total number of dispatcher tick-loop iterations."),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build ticks counter: %w", err)
	}

	c.admissionErrors, err = meter.Int64Counter(
		"dispatch_admission_errors_total",
		metric.WithDescription("Total number of errors encountered during admission or preflight."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build admission errors counter: %w", err)
	}

	c.runDuration, err = meter.Float64Histogram(
		"dispatch_run_duration_seconds",
		metric.WithDescription("Duration of completed agent runs, by role."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build run duration histogram: %w", err)
	}

	if _, err := meter.Int64ObservableGauge(
		"dispatch_active_work",
		metric.WithDescription("Current number of in-flight agent runs across all projects."),
		metric.WithUnit("{run}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			c.mu.RLock()
			defer c.mu.RUnlock()
			o.Observe(c.activeWork)
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("telemetry: build active work gauge: %w", err)
	}

	if _, err := meter.Int64ObservableGauge(
		"dispatch_queue_depth",
		metric.WithDescription("Current number of ready workflow steps awaiting admission."),
		metric.WithUnit("{step}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			c.mu.RLock()
			defer c.mu.RUnlock()
			o.Observe(c.queueDepth)
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("telemetry: build queue depth gauge: %w", err)
	}

	if _, err := meter.Int64ObservableGauge(
		"dispatch_questions_open",
		metric.WithDescription("Current number of open mediator questions awaiting a human answer."),
		metric.WithUnit("{question}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			c.mu.RLock()
			defer c.mu.RUnlock()
			o.Observe(c.questionsOpen)
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("telemetry: build questions open gauge: %w", err)
	}

	return c, nil
}

// IncTicks records one tick-loop iteration.
func (c *Collector) IncTicks() {
	c.ticks.Add(context.Background(), 1)
}

// IncAdmissionErrors records one admission or preflight failure.
func (c *Collector) IncAdmissionErrors() {
	c.admissionErrors.Add(context.Background(), 1)
}

// SetActiveWork sets the current in-flight run count.
func (c *Collector) SetActiveWork(n int) {
	c.mu.Lock()
	c.activeWork = int64(n)
	c.mu.Unlock()
}

// SetQueueDepth sets the current ready-but-unadmitted step count.
func (c *Collector) SetQueueDepth(n int) {
	c.mu.Lock()
	c.queueDepth = int64(n)
	c.mu.Unlock()
}

// ObserveRunDuration records a completed run's wall-clock duration against
// the role that executed it.
func (c *Collector) ObserveRunDuration(role string, d time.Duration) {
	c.runDuration.Record(context.Background(), d.Seconds(), metric.WithAttributes(roleAttr(role)))
}

// SetQuestionsOpen sets the current open-question count. It has no caller
// in this repository.
func (c *Collector) SetQuestionsOpen(n int) {
	c.mu.Lock()
	c.questionsOpen = int64(n)
	c.mu.Unlock()
}

// Shutdown flushes pending readers and releases the meter provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
