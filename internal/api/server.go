package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/metrics"
)

const API_VERSION = "1.0.0"

// Analyzer is the pipeline the HTTP handlers drive.
type Analyzer interface {
	Analyze(ctx context.Context, vcfContent string, drugs []string) (*domain.AnalysisReport, error)
	SupportedDrugs() []string
	Rule(drug string) (*domain.DrugRule, bool)
}

// HealthCheck probes one dependency for /health.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	cfg      domain.ServerConfig
	logger   *logrus.Logger
	analyzer Analyzer
	feedback feedback.Store
	history  domain.AnalysisRepository
	metrics  *metrics.Collector
	checks   map[string]HealthCheck
	timeout  time.Duration
	router   *gin.Engine
	server   *http.Server
}

// Option configures optional collaborators of the server.
type Option func(*Server)

func WithFeedbackStore(store feedback.Store) Option {
	return func(s *Server) { s.feedback = store }
}

// WithHistory persists every successful analysis.
func WithHistory(repo domain.AnalysisRepository) Option {
	return func(s *Server) { s.history = repo }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Server) { s.metrics = collector }
}

// WithAnalysisTimeout bounds each analysis request. Zero disables the bound.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg domain.ServerConfig, analyzer Analyzer, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		analyzer: analyzer,
		checks:   make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var observe func(string, string, int, time.Duration)
	if s.metrics != nil {
		observe = s.metrics.ObserveRequest
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLog(logger, observe))
	router.Use(securityHeaders())
	router.Use(corsMiddleware(cfg.AllowedOrigins))
	s.router = router

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	if s.cfg.RateLimit > 0 {
		v1.Use(rateLimitMiddleware(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst)))
	}
	{
		v1.GET("/drugs", s.handleListDrugs)
		v1.GET("/drugs/:drug", s.handleGetDrug)

		// JSON-escaped VCF text is larger than the raw file.
		v1.POST("/analyze", bodyLimit(2*s.cfg.MaxUploadBytes+64*1024), s.handleAnalyze)
		v1.POST("/analyze/upload", bodyLimit(s.cfg.MaxUploadBytes+64*1024), s.handleUpload)

		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleQueryFeedback)
		v1.GET("/feedback/stats", s.handleFeedbackStats)

		v1.GET("/analyses/:id", s.handleGetAnalysis)
		v1.GET("/patients/:patient_id/analyses", s.handleListAnalyses)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":          state,
		"timestamp":       time.Now().UTC(),
		"version":         API_VERSION,
		"supported_drugs": len(s.analyzer.SupportedDrugs()),
		"checks":          checks,
	})
}
