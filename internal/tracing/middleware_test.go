package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracedRouter(tracer *Tracer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	return router
}

func TestHTTPMiddlewareCreatesSpan(t *testing.T) {
	tracer := newTestTracer()
	router := setupTracedRouter(tracer)

	router.GET("/items/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	req := httptest.NewRequest("GET", "/items/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "/items/:id", recent[0].Name)
	assert.Equal(t, "ok", recent[0].Status)

	method, _ := recent[0].Attributes.Get("http.method")
	assert.Equal(t, "GET", method)
	status, _ := recent[0].Attributes.Get("http.status")
	assert.Equal(t, "200", status)
}

func TestHTTPMiddlewarePropagatesIncomingContext(t *testing.T) {
	tracer := newTestTracer()
	router := setupTracedRouter(tracer)

	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(HeaderTraceID, "trace_upstream")
	req.Header.Set(HeaderSpanID, "span_upstream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "trace_upstream", w.Header().Get(HeaderTraceID))

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "trace_upstream", recent[0].TraceID)
	assert.Equal(t, "span_upstream", recent[0].ParentID)
}

func TestHTTPMiddlewareHandlerSpansNest(t *testing.T) {
	tracer := newTestTracer()
	router := setupTracedRouter(tracer)

	router.GET("/work", func(c *gin.Context) {
		_ = tracer.WithSpan(c.Request.Context(), "op.handler", func(context.Context, *Span) error {
			return nil
		})
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/work", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	recent := tracer.RecentTraces(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "op.handler", recent[0].Name)
	assert.Equal(t, "/work", recent[1].Name)
	assert.Equal(t, recent[1].SpanID, recent[0].ParentID)
}

func TestHTTPMiddlewareRecordsGinErrors(t *testing.T) {
	tracer := newTestTracer()
	router := setupTracedRouter(tracer)

	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("handler failed"))
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("GET", "/fail", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	recent := tracer.RecentTraces(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "error", recent[0].Status)
	assert.Contains(t, recent[0].Error, "handler failed")
}
