// Package ws streams finished-span records to WebSocket subscribers.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/veloxlabs/velox/internal/logging"
	"github.com/veloxlabs/velox/internal/monitoring"
	"github.com/veloxlabs/velox/internal/tracing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Introspection surface; origin policy is handled upstream
	},
}

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Handler fans finished-span records out to connected subscribers. Wire
// Publish as a tracer finish observer.
type Handler struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu   sync.Mutex
	subs map[chan tracing.Record]struct{}
}

// NewHandler creates a stream handler. metrics may be nil.
func NewHandler(logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		metrics: metrics,
		subs:    make(map[chan tracing.Record]struct{}),
	}
}

// Publish delivers a finished-span record to all subscribers. Slow
// subscribers drop records rather than stalling the tracer.
func (h *Handler) Publish(rec tracing.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub <- rec:
		default:
			// Subscriber buffer full. Dropping keeps Publish non-blocking.
		}
	}
}

// HandleConnection upgrades the request and streams span records until the
// client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	// Reader goroutine: drains client frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec := <-sub:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(rec); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) subscribe() chan tracing.Record {
	sub := make(chan tracing.Record, subscriberBuffer)
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Handler) unsubscribe(sub chan tracing.Record) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// SubscriberCount reports the number of connected stream subscribers.
func (h *Handler) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
