// Package otelutil centralizes the tracer/meter and a span-plus-metrics
// helper for wrapping operations, around one tracer+meter pair. No other
// package in this module calls it.
package otelutil

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bazbom/bazbom"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	callCount    metric.Int64Counter
	callDuration metric.Int64Histogram
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func init() {
	callCount = must(meter.Int64Counter("bazbom.calls",
		metric.WithDescription("number of calls to an instrumented operation"),
		metric.WithUnit("{call}"),
	))
	callDuration = must(meter.Int64Histogram("bazbom.call_time",
		metric.WithDescription("duration of an instrumented operation"),
		metric.WithUnit("ms"),
	))
}

// Call starts a span named op and returns a context carrying it plus a done
// function. Call done with the operation's returned error; done records the
// error on the span, sets its status, and emits the call-count/call-time
// metrics tagged by op.
//
//	ctx, done := otelutil.Call(ctx, "advisory.Sync")
//	defer func() { done(err) }()
func Call(ctx context.Context, op string) (context.Context, func(err error)) {
	attrs := attribute.NewSet(attribute.String("op", op))
	ctx, span := tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal))
	begin := time.Now()
	return ctx, func(err error) {
		callCount.Add(ctx, 1, metric.WithAttributeSet(attrs))
		callDuration.Record(ctx, time.Since(begin).Milliseconds(), metric.WithAttributeSet(attrs))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("%s failed", op))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
