package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/api"
	"github.com/pharmaguard-mcp-server/internal/cache"
	"github.com/pharmaguard-mcp-server/internal/config"
	"github.com/pharmaguard-mcp-server/internal/database"
	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/explain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
	"github.com/pharmaguard-mcp-server/internal/logging"
	"github.com/pharmaguard-mcp-server/internal/metrics"
	"github.com/pharmaguard-mcp-server/internal/repository"
	"github.com/pharmaguard-mcp-server/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) error {
	kb := knowledge.Default()
	collector := metrics.NewCollector()

	store, err := explanationCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	model, err := domain.ParseConfidenceModel(cfg.Analysis.ConfidenceModel)
	if err != nil {
		return err
	}
	analyzerOpts := []service.AnalyzerOption{
		service.WithRecorder(collector),
		service.WithConfidenceModel(model),
		service.WithMaxContentBytes(int(cfg.Server.MaxUploadBytes)),
	}
	if cfg.Analysis.Explain {
		explainer, err := explain.NewExplainer(ctx, logger, kb, cfg.LLM, store, cfg.Cache.DefaultTTL)
		if err != nil {
			return err
		}
		analyzerOpts = append(analyzerOpts, service.WithExplainer(explainer))
	}
	analyzer := service.NewAnalyzerService(logger, kb, analyzerOpts...)

	serverOpts := []api.Option{
		api.WithMetrics(collector),
		api.WithAnalysisTimeout(cfg.Analysis.Timeout),
	}
	if redis, ok := store.(*cache.RedisCache); ok {
		serverOpts = append(serverOpts, api.WithHealthCheck("redis", redis.Ping))
	}

	if cfg.Database.Enabled {
		dbCfg := database.ConfigFromDomain(cfg.Database)

		migrations, err := database.NewMigrationRunner(dbCfg.URL(), logger)
		if err != nil {
			return err
		}
		if err := migrations.Up(ctx); err != nil {
			migrations.Close()
			return err
		}
		migrations.Close()

		db, err := database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		feedbackStore, err := feedback.NewPostgresStoreFromURL(dbCfg.URL())
		if err != nil {
			return err
		}
		defer feedbackStore.Close()

		serverOpts = append(serverOpts,
			api.WithHistory(repository.NewAnalysisRepository(db.Pool, logger)),
			api.WithFeedbackStore(feedbackStore),
			api.WithHealthCheck("database", db.Health),
		)
	} else {
		logger.Info("Database disabled; analysis history and feedback endpoints are unavailable")
	}

	server := api.NewServer(logger, cfg.Server, analyzer, serverOpts...)
	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"supported_drugs": len(analyzer.SupportedDrugs()),
	}).Info("Starting PharmaGuard API server")

	return server.Start(ctx)
}

// explanationCache returns Redis when configured, otherwise the in-memory LRU.
func explanationCache(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL), nil
	}

	redis, err := cache.NewRedisCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Redis explanation cache")
	return redis, nil
}
