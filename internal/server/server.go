// Package server wires the tracer, monitoring and API surfaces into an
// HTTP service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/veloxlabs/velox/internal/api/http"
	"github.com/veloxlabs/velox/internal/api/middleware"
	"github.com/veloxlabs/velox/internal/config"
	"github.com/veloxlabs/velox/internal/logging"
	"github.com/veloxlabs/velox/internal/monitoring"
	"github.com/veloxlabs/velox/internal/tracing"
	"github.com/veloxlabs/velox/internal/ws"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	logger  *logging.Logger
	config  *config.Config
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
}

// NewServer creates a server instance from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger, _ = newConfiguredLogger(cfg)
	}

	logger.Info("Initializing tracer service",
		zap.String("service", cfg.Tracing.Service),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()

	tracer := tracing.New(cfg.Tracing.Service, logger.Logger,
		tracing.WithCompletedLimit(cfg.Tracing.CompletedLimit),
		tracing.WithSampleLimit(cfg.Tracing.SampleLimit),
		tracing.WithMonitor(metrics),
	)

	streamHandler := ws.NewHandler(logger, metrics)
	tracer.OnFinish(streamHandler.Publish)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(tracer, cfg.Tracing.Service)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)

	// Trace introspection
	router.GET("/traces/recent", handlers.RecentTraces)
	router.GET("/traces/active", handlers.ActiveSpans)

	// Live span feed
	router.GET("/stream", streamHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		logger:  logger,
		config:  cfg,
		tracer:  tracer,
		metrics: metrics,
	}, nil
}

func newConfiguredLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return logging.NewDefault(), err
	}
	return logger, nil
}

// Tracer exposes the server's tracer for in-process instrumentation.
func (s *Server) Tracer() *tracing.Tracer {
	return s.tracer
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			return err
		}
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return nil
}
