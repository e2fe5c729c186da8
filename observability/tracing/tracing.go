// Package tracing provides OpenTelemetry API spans (no exporter configured
// here; that wiring is an integrator concern) for two hot paths: one
// engine tick and one orchestrator decision cycle. Orchestrator.Cycle
// opens its span; Engine.Tick does not call StartTick.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chronicle-sim/core")

// StartTick opens a span around one Engine.Tick call.
func StartTick(ctx context.Context, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine.tick", trace.WithAttributes(
		attribute.String("run.id", runID),
	))
}

// StartCycle opens a span around one Orchestrator.Cycle call.
func StartCycle(ctx context.Context, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestrator.cycle", trace.WithAttributes(
		attribute.String("run.id", runID),
	))
}

// EndWithError ends span, recording err as a span event and marking the
// span's status as an error when err is non-nil.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
