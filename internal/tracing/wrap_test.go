package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracedRecordsResultType(t *testing.T) {
	tracer := newTestTracer()

	fetch := Traced(tracer, "op.fetch", func(ctx context.Context) (string, error) {
		return "payload", nil
	})

	out, err := fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "payload", out)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "op.fetch", recent[0].Name)
	v, ok := recent[0].Attributes.Get("result.type")
	require.True(t, ok)
	assert.Equal(t, "string", v)
}

func TestTracedZeroResultNotRecorded(t *testing.T) {
	tracer := newTestTracer()

	fetch := Traced(tracer, "op.empty", func(ctx context.Context) (string, error) {
		return "", nil
	})

	_, err := fetch(context.Background())
	require.NoError(t, err)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Nil(t, recent[0].Attributes)
}

func TestTracedPreservesErrorIdentity(t *testing.T) {
	tracer := newTestTracer()
	boom := errors.New("boom")

	fail := Traced(tracer, "op.fail", func(ctx context.Context) (int, error) {
		return 0, boom
	})

	_, err := fail(context.Background())
	assert.ErrorIs(t, err, boom)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "error", recent[0].Status)
	assert.Equal(t, "boom", recent[0].Error)
}

func TestTracedDefaultName(t *testing.T) {
	tracer := newTestTracer()

	wrapped := Traced(tracer, "", namedOperation)
	_, err := wrapped(context.Background())
	require.NoError(t, err)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Name, "namedOperation")
	assert.Contains(t, recent[0].Name, ".", "derived names are namespaced")
}

func namedOperation(context.Context) (int, error) { return 1, nil }

func addFn(_ context.Context, x, y int) (int, error) {
	return x + y, nil
}

func TestWrapArbitraryFunction(t *testing.T) {
	tracer := newTestTracer()

	add := Wrap(tracer, "op.add", addFn).(func(context.Context, int, int) (int, error))

	sum, err := add(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, sum)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "op.add", recent[0].Name)

	argCount, ok := recent[0].Attributes.Get("args.count")
	require.True(t, ok)
	assert.Equal(t, 2, argCount)

	resultType, ok := recent[0].Attributes.Get("result.type")
	require.True(t, ok)
	assert.Equal(t, "int", resultType)
}

func TestWrapDefaultNameFromSymbol(t *testing.T) {
	tracer := newTestTracer()

	add := Wrap(tracer, "", addFn).(func(context.Context, int, int) (int, error))
	_, err := add(context.Background(), 1, 2)
	require.NoError(t, err)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Name, "addFn")
}

func TestWrapPreservesErrorIdentity(t *testing.T) {
	tracer := newTestTracer()
	boom := errors.New("wrap boom")

	fail := Wrap(tracer, "op.wrapfail", func(_ context.Context, n int) (int, error) {
		return 0, boom
	}).(func(context.Context, int) (int, error))

	_, err := fail(context.Background(), 7)
	assert.ErrorIs(t, err, boom)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "error", recent[0].Status)
}

func TestWrapNestsUnderActiveSpan(t *testing.T) {
	tracer := newTestTracer()

	add := Wrap(tracer, "op.add", addFn).(func(context.Context, int, int) (int, error))

	err := tracer.WithSpan(context.Background(), "op.outer", func(ctx context.Context, outer *Span) error {
		_, callErr := add(ctx, 2, 3)
		return callErr
	})
	require.NoError(t, err)

	recent := tracer.RecentTraces(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "op.add", recent[0].Name)
	assert.Equal(t, "op.outer", recent[1].Name)
	assert.Equal(t, recent[1].SpanID, recent[0].ParentID)
	assert.Equal(t, recent[1].TraceID, recent[0].TraceID)
}

func TestWrapRejectsInvalidShapes(t *testing.T) {
	tracer := newTestTracer()

	assert.Panics(t, func() { Wrap(tracer, "x", 42) })
	assert.Panics(t, func() { Wrap(tracer, "x", func() {}) })
	assert.Panics(t, func() { Wrap(tracer, "x", func(int) error { return nil }) })
	assert.Panics(t, func() { Wrap(tracer, "x", func(context.Context) int { return 0 }) })
	assert.Panics(t, func() { Wrap(tracer, "x", func(context.Context, ...int) error { return nil }) })
}

func TestTracedAsync(t *testing.T) {
	tracer := newTestTracer()
	boom := errors.New("async boom")

	run := TracedAsync(tracer, "op.bg", func(ctx context.Context) error {
		return boom
	})

	err := <-run(context.Background())
	assert.ErrorIs(t, err, boom)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "op.bg", recent[0].Name)
	assert.Equal(t, "error", recent[0].Status)
}
