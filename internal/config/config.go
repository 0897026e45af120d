package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// ENV_PREFIX is prepended to every environment override, e.g. PHARMAGUARD_SERVER_PORT.
const ENV_PREFIX = "PHARMAGUARD"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v       *viper.Viper
	config  *domain.Config
	configs []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithConfigPaths replaces the directories searched for config.yaml.
func WithConfigPaths(paths ...string) ManagerOption {
	return func(m *Manager) {
		m.configs = paths
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{configs: []string{".", "./config", "/etc/pharmaguard/"}}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig reads config.yaml, environment variables and defaults, in
// increasing order of precedence: defaults, file, environment.
func (m *Manager) loadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range m.configs {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Provider keys are conventionally unprefixed.
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = providerAPIKey(config.LLM.Provider)
	}

	m.v = v
	m.config = config
	return nil
}

// ProviderAPIKeyEnv maps an LLM provider to the environment variable holding its key.
var ProviderAPIKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

func providerAPIKey(provider string) string {
	if env, ok := ProviderAPIKeyEnv[strings.ToLower(provider)]; ok {
		return os.Getenv(env)
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", 5*1024*1024)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "pharmaguard")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Cache
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.pool_size", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// LLM
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.requests_per_min", 60)

	// Analysis
	v.SetDefault("analysis.confidence_model", string(domain.CONFIDENCE_RULE_TABLE))
	v.SetDefault("analysis.timeout", "60s")
	v.SetDefault("analysis.explain", true)

	// MCP
	v.SetDefault("mcp.server_name", "pharmaguard-mcp-server")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.http_port", 8081)
	v.SetDefault("mcp.http_host", "localhost")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetAnalysisConfig returns analysis pipeline configuration
func (m *Manager) GetAnalysisConfig() *domain.AnalysisConfig {
	return &m.config.Analysis
}

// GetLLMConfig returns explanation generator configuration
func (m *Manager) GetLLMConfig() *domain.LLMConfig {
	return &m.config.LLM
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload size: %d", config.Server.MaxUploadBytes)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v", config.Server.RateLimit)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if _, err := domain.ParseConfidenceModel(config.Analysis.ConfidenceModel); err != nil {
		return fmt.Errorf("invalid analysis configuration: %w", err)
	}

	switch strings.ToLower(config.LLM.Provider) {
	case "", "none", "rule-based":
	case "gemini", "openai", "claude", "anthropic":
		if config.LLM.APIKey == "" {
			return fmt.Errorf("API key is required for LLM provider %q", config.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown LLM provider: %s", config.LLM.Provider)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
