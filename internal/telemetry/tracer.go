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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceExporter selects where completed spans are sent.
type TraceExporter string

const (
	// TraceExporterNone disables tracing; Tracer becomes a no-op.
	TraceExporterNone TraceExporter = "none"
	// TraceExporterStdout writes spans as JSON to stdout, for local
	// debugging and CI log capture.
	TraceExporterStdout TraceExporter = "stdout"
)

// TracerConfig configures the OpenTelemetry provider backing Tracer.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Exporter       TraceExporter
}

// Tracer wraps an OpenTelemetry TracerProvider to implement the
// dispatcher.Tracer interface: one span per tick and per agent run.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer from cfg. A nil *Tracer is never returned; when
// Exporter is TraceExporterNone the returned Tracer still satisfies the
// interface but every span is dropped by an always-off sampler.
func NewTracer(cfg TracerConfig) (*Tracer, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch cfg.Exporter {
	case TraceExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	case TraceExporterNone, "":
		opts = append(opts, sdktrace.WithSampler(sdktrace.NeverSample()))
	default:
		return nil, fmt.Errorf("telemetry: unknown trace exporter %q", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("dispatchd"),
	}, nil
}

// StartSpan starts a span named name as a child of ctx's current span, and
// returns a context carrying the new span plus a function that ends it.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, func() {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

// StartSpanWithError is like StartSpan, but the returned end function
// records err (if non-nil) on the span before ending it. Callers that need
// to report failure call this instead of StartSpan.
func (t *Tracer) StartSpanWithError(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	spanCtx, span := t.tracer.Start(ctx, name)
	for k, v := range attrs {
		span.SetAttributes(attribute.String(k, v))
	}
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Shutdown flushes any pending spans and releases provider resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
