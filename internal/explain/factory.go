package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/cache"
	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// NewTextGenerator returns the generator for cfg.Provider. An empty provider
// (or "none", "rule-based") returns nil with no error.
func NewTextGenerator(ctx context.Context, cfg domain.LLMConfig) (domain.TextGenerator, error) {
	params := GenerationParams{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 1024
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "none", GENERATED_BY_RULES:
		return nil, nil
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, params)
	case "openai":
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, params), nil
	case "claude", "anthropic":
		return NewClaudeGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, params), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// NewExplainer assembles the explainer chain for cfg: an LLM explainer with
// rule-based fallback when a provider is configured, otherwise rule-based
// only. When store is non-nil the chain is wrapped in a cache.
func NewExplainer(ctx context.Context, logger *logrus.Logger, kb *knowledge.KnowledgeBase, cfg domain.LLMConfig, store cache.Cache, ttl time.Duration) (domain.Explainer, error) {
	ruleBased := NewRuleBased(kb)

	generator, err := NewTextGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var explainer domain.Explainer = ruleBased
	scope := GENERATED_BY_RULES
	if generator != nil {
		scope = generator.Name()
		explainer = NewLLMExplainer(logger, generator, ruleBased, LLMConfig{
			Timeout:        cfg.Timeout,
			RequestsPerMin: cfg.RequestsPerMin,
		})
		logger.WithField("provider", generator.Name()).Info("LLM explanations enabled")
	}

	if store != nil {
		explainer = NewCaching(logger, scope, explainer, store, ttl)
	}
	return explainer, nil
}
