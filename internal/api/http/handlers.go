// Package http exposes the tracer's introspection surface over HTTP.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veloxlabs/velox/internal/tracing"
)

// DefaultTraceLimit is the number of recent traces returned when the
// caller does not specify one.
const DefaultTraceLimit = 50

// Handlers serves the introspection endpoints.
type Handlers struct {
	tracer  *tracing.Tracer
	service string
	started time.Time
}

// NewHandlers creates the introspection handlers.
func NewHandlers(tracer *tracing.Tracer, service string) *Handlers {
	return &Handlers{
		tracer:  tracer,
		service: service,
		started: time.Now(),
	}
}

// Root returns service identification.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.service,
		"endpoints": []string{
			"/health",
			"/metrics",
			"/metrics/json",
			"/traces/recent",
			"/traces/active",
			"/stream",
		},
	})
}

// Health returns liveness information.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        h.service,
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// MetricsJSON returns the aggregated span metrics snapshot.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracer.Metrics())
}

// RecentTraces returns records for the most recently finished spans.
func (h *Handlers) RecentTraces(c *gin.Context) {
	limit := DefaultTraceLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	traces := h.tracer.RecentTraces(limit)
	c.JSON(http.StatusOK, gin.H{
		"traces": traces,
		"count":  len(traces),
	})
}

// ActiveSpans returns records for all currently open spans.
func (h *Handlers) ActiveSpans(c *gin.Context) {
	spans := h.tracer.ActiveSpans()
	c.JSON(http.StatusOK, gin.H{
		"spans": spans,
		"count": len(spans),
	})
}
