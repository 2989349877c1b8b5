package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veloxlabs/velox/internal/logging"
	"github.com/veloxlabs/velox/internal/tracing"
)

func setupStreamServer(t *testing.T) (*httptest.Server, *Handler, *tracing.Tracer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracer := tracing.New("test", zap.NewNop())
	handler := NewHandler(logging.NewNop(), nil)
	tracer.OnFinish(handler.Publish)

	router := gin.New()
	router.GET("/stream", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, handler, tracer
}

func TestStreamDeliversFinishedSpans(t *testing.T) {
	srv, handler, tracer := setupStreamServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Wait for the subscription to be registered before tracing.
	require.Eventually(t, func() bool {
		return handler.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	_ = tracer.WithSpan(context.Background(), "op.streamed", func(context.Context, *tracing.Span) error {
		return nil
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var rec tracing.Record
	require.NoError(t, conn.ReadJSON(&rec))
	assert.Equal(t, "op.streamed", rec.Name)
	assert.Equal(t, "ok", rec.Status)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	handler := NewHandler(logging.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			handler.Publish(tracing.Record{Name: "op.noop"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestUnsubscribeOnDisconnect(t *testing.T) {
	srv, handler, _ := setupStreamServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return handler.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return handler.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)
}
