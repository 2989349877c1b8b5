package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSpan(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordSpan("op.a", "ok", 10*time.Millisecond)
	m.RecordSpan("op.a", "ok", 20*time.Millisecond)
	m.RecordSpan("op.a", "error", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SpansTotal.WithLabelValues("op.a", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpansTotal.WithLabelValues("op.a", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpanErrors.WithLabelValues("op.a")))
}

func TestSetActiveSpans(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.SetActiveSpans(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.SpansActive))

	m.SetActiveSpans(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SpansActive))
}

func TestWSConnectionGauge(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnections))
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping", "200")))
}
