package domain

import (
	"context"
)

// Explainer produces a narrative for a finished analysis result. Implementations
// may call out to external services; the inference pipeline never depends on them.
type Explainer interface {
	Explain(ctx context.Context, result *AnalysisResult) (*Explanation, error)
}

// TextGenerator sends a prompt to a generative text model and returns its reply.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Analyzer runs the full VCF to drug risk pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, vcfContent string, drugs []string) (*AnalysisReport, error)
	SupportedDrugs() []string
}

// AnalysisRepository persists analysis reports.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, record *AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*AnalysisRecord, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetAnalysisConfig() *AnalysisConfig
	GetLLMConfig() *LLMConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
