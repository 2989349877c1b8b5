package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Propagation headers. A caller supplying both joins its own trace; the
// response always carries the identifiers of the span that served it.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// HTTPMiddleware creates gin middleware instrumenting every request as a
// span. Trace context is extracted from the request headers and injected
// into the response headers.
func HTTPMiddleware(t *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts []SpanOption
		if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			opts = append(opts, WithTraceID(TraceID(traceID)))
		}
		if parentID := c.GetHeader(HeaderSpanID); parentID != "" {
			opts = append(opts, WithParent(SpanID(parentID)))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		ctx, span := t.StartSpan(c.Request.Context(), name, opts...)
		span.SetAttribute("http.method", c.Request.Method)
		span.SetAttribute("http.path", c.Request.URL.Path)
		span.SetAttribute("http.host", c.Request.Host)

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID()))
		c.Header(HeaderSpanID, string(span.SpanID()))

		c.Next()

		span.SetAttribute("http.status", strconv.Itoa(c.Writer.Status()))

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		t.End(span, err)
	}
}
