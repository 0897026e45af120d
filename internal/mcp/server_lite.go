// Package mcp provides the MCP server implementation.
// This file contains the lightweight server that needs no external databases.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/cache"
	"github.com/pharmaguard-mcp-server/internal/config"
	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/explain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
	"github.com/pharmaguard-mcp-server/internal/logging"
	"github.com/pharmaguard-mcp-server/internal/service"
)

const (
	SERVER_NAME    = "pharmaguard-mcp-server-lite"
	SERVER_VERSION = "1.0.0"
)

// Analyzer is the part of the pipeline the MCP tools drive.
type Analyzer interface {
	ParseVCF(content string) (*domain.ParsedVcf, error)
	Analyze(ctx context.Context, vcfContent string, drugs []string) (*domain.AnalysisReport, error)
	SupportedDrugs() []string
	Rule(drug string) (*domain.DrugRule, bool)
}

// LiteServer is a lightweight MCP server with no external dependencies.
// It keeps explanations in an in-memory cache and feedback in SQLite.
type LiteServer struct {
	config        *config.LiteConfig
	mcpServer     *mcp.Server
	analyzer      Analyzer
	feedbackStore feedback.Store
	cache         *cache.MemoryCache
	logger        *logrus.Logger
	tools         map[string]*tool
}

// LiteServerOption configures a LiteServer.
type LiteServerOption func(*LiteServer) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithAnalyzer replaces the default analysis pipeline.
func WithAnalyzer(analyzer Analyzer) LiteServerOption {
	return func(s *LiteServer) error {
		if analyzer == nil {
			return errors.New("analyzer must not be nil")
		}
		s.analyzer = analyzer
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server.
func NewLiteServer(cfg *config.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	s := &LiteServer{
		config: cfg,
		tools:  make(map[string]*tool),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if s.logger == nil {
		s.logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if s.analyzer == nil {
		analyzer, err := s.defaultAnalyzer()
		if err != nil {
			return nil, err
		}
		s.analyzer = analyzer
	}

	if s.feedbackStore == nil {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		s.feedbackStore = store
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    SERVER_NAME,
		Version: SERVER_VERSION,
	}, nil)
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register MCP tools: %w", err)
	}
	s.registerResources()
	s.registerPrompts()

	s.logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"transport": cfg.Transport,
		"tools":     len(s.tools),
	}).Info("Lite server initialized successfully")

	return s, nil
}

func (s *LiteServer) defaultAnalyzer() (Analyzer, error) {
	kb := knowledge.Default()
	explainer, err := explain.NewExplainer(context.Background(), s.logger, kb, s.config.LLMConfig(), s.cache, s.config.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create explainer: %w", err)
	}
	return service.NewAnalyzerService(s.logger, kb,
		service.WithExplainer(explainer),
		service.WithConfidenceModel(s.config.ConfidenceModel),
	), nil
}

// Start runs the MCP server on the configured transport until ctx is done.
func (s *LiteServer) Start(ctx context.Context) error {
	switch s.config.Transport {
	case "http":
		return s.serveHTTP(ctx)
	case "stdio", "":
		s.logger.Info("Starting MCP server on stdio")
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport %q", s.config.Transport)
	}
}

func (s *LiteServer) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("Starting MCP server on streamable HTTP")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("mcp http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the feedback store and cache.
func (s *LiteServer) Close() error {
	var errs []error
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing feedback store: %w", err))
		}
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

// GetFeedbackStore returns the feedback store.
func (s *LiteServer) GetFeedbackStore() feedback.Store {
	return s.feedbackStore
}

// ToolNames lists the registered tools.
func (s *LiteServer) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for _, t := range toolOrder {
		if _, ok := s.tools[t]; ok {
			names = append(names, t)
		}
	}
	return names
}
