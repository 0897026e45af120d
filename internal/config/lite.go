// Package config provides configuration management for the PharmaGuard servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the feedback database and exports

	// Explanation cache
	CacheMaxItems int
	CacheTTL      time.Duration

	// Transport settings
	Transport string // stdio or http
	HTTPPort  int

	// Logging
	LogLevel  string
	LogFormat string // json or text

	// Analysis
	ConfidenceModel domain.ConfidenceModel

	// Explanations. An empty provider selects the rule-based explainer.
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".pharmaguard")

	return &LiteConfig{
		DataDir:         dataDir,
		CacheMaxItems:   1000,
		CacheTTL:        24 * time.Hour,
		Transport:       "stdio",
		HTTPPort:        8081,
		LogLevel:        "info",
		LogFormat:       "json",
		ConfidenceModel: domain.CONFIDENCE_RULE_TABLE,
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("PHARMAGUARD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("PHARMAGUARD_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PHARMAGUARD_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("PHARMAGUARD_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("PHARMAGUARD_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 65535 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("PHARMAGUARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PHARMAGUARD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("PHARMAGUARD_CONFIDENCE_MODEL"); v != "" {
		if m, err := domain.ParseConfidenceModel(v); err == nil {
			cfg.ConfidenceModel = m
		}
	}

	cfg.LLMProvider = os.Getenv("PHARMAGUARD_LLM_PROVIDER")
	cfg.LLMModel = os.Getenv("PHARMAGUARD_LLM_MODEL")
	cfg.LLMAPIKey = providerAPIKey(cfg.LLMProvider)

	return cfg
}

// LLMConfig converts the explanation settings into the shared LLM configuration.
func (c *LiteConfig) LLMConfig() domain.LLMConfig {
	return domain.LLMConfig{
		Provider:       c.LLMProvider,
		Model:          c.LLMModel,
		APIKey:         c.LLMAPIKey,
		Temperature:    0.3,
		MaxTokens:      1024,
		Timeout:        30 * time.Second,
		RequestsPerMin: 60,
	}
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
