package tracing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/veloxlabs/velox/internal/shared/id"
)

const (
	// DefaultCompletedLimit bounds the retained finished-span buffer.
	DefaultCompletedLimit = 1000
	// DefaultSampleLimit bounds per-operation duration samples.
	DefaultSampleLimit = 100
)

// Monitor receives span activity for export to an external metrics system.
// Implementations must be safe for concurrent use and must not block.
type Monitor interface {
	RecordSpan(operation, status string, duration time.Duration)
	SetActiveSpans(n int)
}

// Tracer manages span lifecycles: creation, correlation, retention and
// per-operation latency statistics. A single mutex guards all shared state;
// it is held only for the bounded registration and finalization steps,
// never across instrumented work.
type Tracer struct {
	service string
	logger  *zap.Logger
	monitor Monitor

	mu             sync.Mutex
	active         map[SpanID]*Span
	completed      *queue.Queue // ring of *Span, oldest evicted at capacity
	completedLimit int
	sampleLimit    int
	totalSpans     int64
	errorSpans     int64
	opCounts       map[string]int64
	opDurations    map[string][]float64 // most recent samples, in ms

	obsMu     sync.RWMutex
	observers []func(Record)
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithCompletedLimit overrides the finished-span retention capacity.
func WithCompletedLimit(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.completedLimit = n
		}
	}
}

// WithSampleLimit overrides the per-operation duration sample capacity.
func WithSampleLimit(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.sampleLimit = n
		}
	}
}

// WithMonitor attaches a metrics exporter notified on span activity.
func WithMonitor(m Monitor) Option {
	return func(t *Tracer) { t.monitor = m }
}

// New creates a tracer. The logger receives one structured record per
// finished span; a nil logger disables emission.
func New(service string, logger *zap.Logger, opts ...Option) *Tracer {
	t := &Tracer{
		service:        service,
		logger:         logger,
		active:         make(map[SpanID]*Span),
		completed:      queue.New(),
		completedLimit: DefaultCompletedLimit,
		sampleLimit:    DefaultSampleLimit,
		opCounts:       make(map[string]int64),
		opDurations:    make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// spanConfig collects per-span options.
type spanConfig struct {
	traceID  TraceID
	parentID SpanID
	attrs    []attrKV
}

type attrKV struct {
	key   string
	value interface{}
}

// SpanOption configures a single span at creation.
type SpanOption func(*spanConfig)

// WithTraceID forces the span onto an existing trace, overriding any
// in-flight trace ID.
func WithTraceID(traceID TraceID) SpanOption {
	return func(c *spanConfig) { c.traceID = traceID }
}

// WithParent forces the span's parent, overriding the context's active span.
// Used when the parent lives in another process (e.g. propagated headers).
func WithParent(parentID SpanID) SpanOption {
	return func(c *spanConfig) { c.parentID = parentID }
}

// WithAttribute seeds an initial attribute. Repeatable; insertion order is
// the option order.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, attrKV{key: key, value: value})
	}
}

// WithAttributes seeds initial attributes from a map, in sorted key order.
func WithAttributes(attrs map[string]interface{}) SpanOption {
	return func(c *spanConfig) {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.attrs = append(c.attrs, attrKV{key: k, value: attrs[k]})
		}
	}
}

// StartSpan opens a span and returns a derived context carrying it as the
// active span. The parent is the context's active span, and the trace ID is
// inherited from it unless overridden via WithTraceID; a root span gets a
// fresh trace ID.
//
// Callers using StartSpan directly are responsible for calling End exactly
// once. Most code should use WithSpan, which manages the full lifecycle.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parentID := cfg.parentID
	if parentID == "" {
		parentID = SpanIDFrom(ctx)
	}
	traceID := cfg.traceID
	if traceID == "" {
		traceID = TraceIDFrom(ctx)
	}
	if traceID == "" {
		traceID = TraceID(id.NewTraceID())
	}

	span := newSpan(traceID, SpanID(id.NewSpanID()), parentID, name)
	for _, kv := range cfg.attrs {
		span.SetAttribute(kv.key, kv.value)
	}

	t.mu.Lock()
	t.active[span.SpanID()] = span
	t.totalSpans++
	t.opCounts[name]++
	activeCount := len(t.active)
	t.mu.Unlock()

	if t.monitor != nil {
		t.monitor.SetActiveSpans(activeCount)
	}

	return ContextWithSpan(ctx, span), span
}

// End finalizes a span opened with StartSpan. A non-nil err marks the span
// as failed with the error's description. Calling End again is a no-op.
func (t *Tracer) End(span *Span, err error) {
	if err != nil {
		span.SetError(err.Error())
		span.Finish(StatusError)
	} else {
		span.Finish(StatusOK)
	}
	t.finalize(span)
}

// WithSpan runs fn inside a span scope. The span is registered before fn
// runs and always finalized afterwards: a returned error (or a panic) marks
// the span as failed and is passed through unchanged. Instrumentation never
// alters the body's control flow or results.
func (t *Tracer) WithSpan(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error, opts ...SpanOption) error {
	sctx, span := t.StartSpan(ctx, name, opts...)

	var err error
	defer func() {
		if r := recover(); r != nil {
			span.SetError(fmt.Sprintf("%v", r))
			span.Finish(StatusError)
			t.finalize(span)
			panic(r)
		}
		t.End(span, err)
	}()

	err = fn(sctx, span)
	return err
}

// Go runs fn inside a span scope on a new goroutine, with the same
// semantics as WithSpan. The returned channel delivers fn's error (or nil)
// once the scope has been finalized.
func (t *Tracer) Go(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error, opts ...SpanOption) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		errc <- t.WithSpan(ctx, name, fn, opts...)
	}()
	return errc
}

// OnFinish registers an observer called with each finished span's record,
// outside the tracer lock. Observers must not block.
func (t *Tracer) OnFinish(fn func(Record)) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, fn)
}

// finalize moves a finished span out of the active table, retains it in the
// bounded completed buffer, folds its duration into per-operation stats and
// emits the log record. Safe to call at most once per span; repeat calls
// for a span no longer in the active table are ignored.
func (t *Tracer) finalize(span *Span) {
	t.mu.Lock()
	if _, ok := t.active[span.SpanID()]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.active, span.SpanID())

	t.completed.Add(span)
	for t.completed.Length() > t.completedLimit {
		t.completed.Remove()
	}

	if !span.EndTime().IsZero() {
		samples := append(t.opDurations[span.Name()], span.DurationMS())
		if len(samples) > t.sampleLimit {
			samples = samples[len(samples)-t.sampleLimit:]
		}
		t.opDurations[span.Name()] = samples
	}
	if span.Status() == StatusError {
		t.errorSpans++
	}
	activeCount := len(t.active)
	t.mu.Unlock()

	if t.monitor != nil {
		t.monitor.SetActiveSpans(activeCount)
		t.monitor.RecordSpan(span.Name(), string(span.Status()), span.Duration())
	}

	t.emit(span)
	t.notify(span.Record())
}

// emit writes one structured log record for a finished span. Sink failures
// must never reach the instrumented caller.
func (t *Tracer) emit(span *Span) {
	if t.logger == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID())),
		zap.String("span_id", string(span.SpanID())),
		zap.String("operation", span.Name()),
		zap.Float64("duration_ms", round2(span.DurationMS())),
		zap.String("status", string(span.Status())),
		zap.String("service", t.service),
	}
	if parent := span.ParentID(); parent != "" {
		fields = append(fields, zap.String("parent_id", string(parent)))
	}
	if errMsg := span.Err(); errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	}
	if rec := span.Record(); rec.Attributes != nil {
		fields = append(fields, zap.Any("attributes", rec.Attributes))
	}

	if span.Status() == StatusError {
		t.logger.Error("span completed with error", fields...)
	} else {
		t.logger.Info("span completed", fields...)
	}
}

func (t *Tracer) notify(rec Record) {
	t.obsMu.RLock()
	observers := t.observers
	t.obsMu.RUnlock()

	for _, fn := range observers {
		fn(rec)
	}
}
