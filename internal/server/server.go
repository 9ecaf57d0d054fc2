package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/charlie-sans/netprop/internal/api/http"
	"github.com/charlie-sans/netprop/internal/api/middleware"
	"github.com/charlie-sans/netprop/internal/api/ws"
	"github.com/charlie-sans/netprop/internal/document"
	"github.com/charlie-sans/netprop/internal/infrastructure/config"
	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
	"github.com/charlie-sans/netprop/internal/infrastructure/tracing"
	"github.com/charlie-sans/netprop/internal/render"
	"github.com/charlie-sans/netprop/internal/render/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	router     *gin.Engine
	handler    http.Handler
	httpServer *http.Server

	loader   *document.Loader
	pipeline *render.Pipeline
	hub      *ws.Hub
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer

	hubCancel context.CancelFunc
	closeOnce sync.Once
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing document server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("documents", cfg.Documents.Dir),
		zap.String("policy", cfg.Render.Policy),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("netprop", logger.Named("tracing").Logger)

	loader, err := document.NewLoader(document.Config{
		Root:     cfg.Documents.Dir,
		Patterns: cfg.Documents.Patterns,
		Cache:    cfg.Documents.Cache,
	}, logger)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create document loader: %w", err)
	}
	loader.WithMetrics(metrics)

	delimiters, err := render.NewDelimiters(cfg.Render.OpenTag, cfg.Render.CloseTag)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	policy, err := render.ParsePolicy(cfg.Render.Policy)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	engine := sandbox.New(sandbox.Config{
		Timeout:          cfg.Render.BlockTimeout.Std(),
		MaxCallStackSize: cfg.Render.MaxCallStack,
		Namespace:        cfg.Render.Namespace,
		EnableConsole:    true,
	})

	pipeline := render.NewPipeline(loader, engine, render.Config{
		Delimiters:     delimiters,
		Policy:         policy,
		RequestTimeout: cfg.Render.RequestTimeout.Std(),
		Sanitize:       cfg.Render.Sanitize,
	}, logger).WithMetrics(metrics).WithTracer(tracer)

	s := &Server{
		config:   cfg,
		logger:   logger,
		loader:   loader,
		pipeline: pipeline,
		metrics:  metrics,
		tracer:   tracer,
	}

	handlers := apihttp.NewHandlers(pipeline, cfg.Documents.DefaultName, logger).
		WithMetrics(metrics)
	if cfg.Documents.Cache {
		handlers.WithCache(loader)
	}

	if cfg.Broadcast.Enabled {
		s.hub = ws.NewHub(logger).WithMetrics(metrics)
		hubCtx, cancel := context.WithCancel(context.Background())
		s.hubCancel = cancel
		go s.hub.Run(hubCtx)

		pipeline.WithBroadcaster(s.hub)
		handlers.WithPeers(s.hub)
	}

	s.router = s.newRouter(handlers)
	s.handler = s.router
	if cfg.HTTP.Compression {
		s.handler = gzhttp.GzipHandler(s.router)
		logger.Info("Response compression enabled")
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) newRouter(handlers *apihttp.Handlers) *gin.Engine {
	cfg := s.config

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.RedirectTrailingSlash = false

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.CORSConfigFor(cfg.HTTP.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limits))
		} else {
			router.Use(middleware.RateLimit(limits))
		}
	}

	// Operational routes
	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	if s.hub != nil {
		router.GET("/ws", ws.NewHandler(s.hub, s.logger).HandleConnection)
	}

	// Everything else is a document request
	router.NoRoute(handlers.Page)

	return router
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Preload warms the document cache when enabled.
func (s *Server) Preload(ctx context.Context) {
	if !s.config.Documents.Preload || !s.config.Documents.Cache {
		return
	}
	n, err := s.loader.Preload(ctx)
	if err != nil {
		s.logger.Warn("Document preload failed", zap.Error(err))
		return
	}
	s.logger.Info("Documents preloaded", zap.Int("count", n), zap.String("dir", s.loader.Root()))
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.Preload(ctx)

	addr := s.config.Server.Addr()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout.Std())
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, waits for in-flight renders and
// releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Graceful shutdown failed", zap.Error(err))
			err = fmt.Errorf("failed to shut down http server: %w", err)
		}
	}
	s.Close()
	return err
}

// Close stops the hub and tracer and flushes the logger. It is safe to
// call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.hubCancel != nil {
			s.hubCancel()
		}
		s.tracer.Close()
		_ = s.logger.Sync()
	})
}
