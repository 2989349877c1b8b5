/*
Package tracing provides in-process request tracing with per-operation
latency statistics.

# Overview

This package instruments operations (request handlers, service calls,
background jobs) with nested spans. Spans link into trees through the
request context: opening a span under a context that already carries one
makes the new span a child sharing the same trace ID. Finished spans are
retained in a bounded in-memory buffer, folded into per-operation duration
statistics, and emitted as structured log records.

It follows OpenTelemetry concepts but with a minimal implementation
tailored to single-process introspection: no wire format, no sampling,
no persistence.

# Usage

	// Create tracer
	tracer := tracing.New("velox", logger.Logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Span scope around a unit of work
	err := tracer.WithSpan(ctx, "orders.settle", func(ctx context.Context, span *tracing.Span) error {
		span.SetAttribute("order.count", len(orders))
		span.AddEvent("validated", nil)
		return settle(ctx, orders)
	})

	// Function wrapping
	fetch := tracing.Traced(tracer, "", fetchFn)

	// Introspection
	snap := tracer.Metrics()
	recent := tracer.RecentTraces(50)

# Concurrency

The tracer is the single shared resource; one mutex guards its state and
is held only for span registration and finalization, never across the
instrumented body. Nested scopes on one goroutine therefore never
re-enter a held lock, and instrumented work is never serialized by the
tracer. Spans guard their own mutable state and become read-only once
finished. All introspection accessors return detached copies.

# Error handling

Errors and panics raised by an instrumented body mark the span as failed
and propagate unchanged; tracing is side-effect-only and never alters the
body's results. Internal failures (e.g. a panicking log sink) are
swallowed.
*/
package tracing
