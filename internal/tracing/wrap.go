package tracing

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Attribute keys recorded by the wrappers. Argument values are never
// recorded: payloads stay bounded and no caller data can leak into traces.
const (
	attrArgCount   = "args.count"
	attrResultType = "result.type"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Traced wraps fn so that every call runs inside a span scope. The wrapped
// function has the same signature as fn; a non-zero result's type name is
// recorded on the span. An empty name derives one from fn.
func Traced[T any](t *Tracer, name string, fn func(context.Context) (T, error), opts ...SpanOption) func(context.Context) (T, error) {
	if name == "" {
		name = funcName(fn)
	}
	return func(ctx context.Context) (T, error) {
		var out T
		err := t.WithSpan(ctx, name, func(sctx context.Context, span *Span) error {
			var callErr error
			out, callErr = fn(sctx)
			if callErr == nil {
				if v := reflect.ValueOf(&out).Elem(); !v.IsZero() {
					span.SetAttribute(attrResultType, v.Type().String())
				}
			}
			return callErr
		}, opts...)
		return out, err
	}
}

// TracedAsync is Traced for call sites that want the body off the calling
// goroutine. The wrapped function starts fn on a new goroutine and returns
// a channel delivering its error once the span is finalized.
func TracedAsync(t *Tracer, name string, fn func(context.Context) error, opts ...SpanOption) func(context.Context) <-chan error {
	if name == "" {
		name = funcName(fn)
	}
	return func(ctx context.Context) <-chan error {
		return t.Go(ctx, name, func(sctx context.Context, span *Span) error {
			return fn(sctx)
		}, opts...)
	}
}

// Wrap instruments an arbitrary non-variadic function whose first parameter
// is a context.Context and whose final result is an error. The returned
// value has the same type as fn and must be type-asserted back:
//
//	add := tracing.Wrap(tracer, "", addFn).(func(context.Context, int, int) (int, error))
//
// Each call opens a span recording the positional-argument count and, for a
// successful call with a non-zero first result, the result's type name.
// An empty name derives a namespaced one from the function's symbol.
//
// Wrap panics if fn does not have the required shape; decoration is a
// programming error, not a runtime condition.
func Wrap(t *Tracer, name string, fn interface{}, opts ...SpanOption) interface{} {
	v := reflect.ValueOf(fn)
	typ := v.Type()
	validateWrappable(typ)

	if name == "" {
		name = funcName(fn)
	}

	wrapped := reflect.MakeFunc(typ, func(args []reflect.Value) []reflect.Value {
		ctx := args[0].Interface().(context.Context)

		var results []reflect.Value
		_ = t.WithSpan(ctx, name, func(sctx context.Context, span *Span) error {
			span.SetAttribute(attrArgCount, len(args)-1)

			callArgs := make([]reflect.Value, len(args))
			callArgs[0] = reflect.ValueOf(sctx)
			copy(callArgs[1:], args[1:])
			results = v.Call(callArgs)

			if last := results[len(results)-1]; !last.IsNil() {
				return last.Interface().(error)
			}
			if len(results) > 1 {
				if res := results[0]; !res.IsZero() {
					span.SetAttribute(attrResultType, res.Type().String())
				}
			}
			return nil
		}, opts...)

		// The body's results carry the original error value, so the
		// caller observes the exact error identity fn produced.
		return results
	})
	return wrapped.Interface()
}

func validateWrappable(typ reflect.Type) {
	if typ.Kind() != reflect.Func {
		panic(fmt.Sprintf("tracing: Wrap requires a function, got %s", typ))
	}
	if typ.IsVariadic() {
		panic("tracing: Wrap does not support variadic functions")
	}
	if typ.NumIn() < 1 || !typ.In(0).Implements(ctxType) {
		panic("tracing: wrapped function must take context.Context as its first parameter")
	}
	if typ.NumOut() < 1 || !typ.Out(typ.NumOut()-1).Implements(errType) {
		panic("tracing: wrapped function must return error as its final result")
	}
}

// funcName derives a namespaced operation name ("pkg.Func") from a
// function's symbol.
func funcName(fn interface{}) string {
	pc := reflect.ValueOf(fn).Pointer()
	full := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(full, "/"); idx >= 0 {
		full = full[idx+1:]
	}
	return full
}
