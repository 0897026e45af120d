package explain

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// LLMConfig tunes the LLM explainer.
type LLMConfig struct {
	Timeout        time.Duration
	RequestsPerMin int
	// Breaker settings. Zero values select defaults.
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

// LLMExplainer asks a TextGenerator for an explanation. Calls are rate limited
// and guarded by a circuit breaker; any failure returns the fallback's text.
type LLMExplainer struct {
	generator domain.TextGenerator
	fallback  domain.Explainer
	logger    *logrus.Logger
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewLLMExplainer creates a new LLM explainer. fallback may be nil, in which
// case generation errors are returned to the caller.
func NewLLMExplainer(logger *logrus.Logger, generator domain.TextGenerator, fallback domain.Explainer, config LLMConfig) *LLMExplainer {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BreakerInterval == 0 {
		config.BreakerInterval = time.Minute
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if config.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.RequestsPerMin))
	}

	settings := gobreaker.Settings{
		Name:        "llm-" + generator.Name(),
		MaxRequests: 1,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &LLMExplainer{
		generator: generator,
		fallback:  fallback,
		logger:    logger,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		limiter:   rate.NewLimiter(limit, 1),
		timeout:   config.Timeout,
	}
}

// Explain returns the model's explanation, or the fallback's on failure.
func (e *LLMExplainer) Explain(ctx context.Context, result *domain.AnalysisResult) (*domain.Explanation, error) {
	explanation, err := e.generate(ctx, result)
	if err == nil {
		return explanation, nil
	}

	if e.fallback == nil {
		return nil, err
	}
	e.logger.WithError(err).WithFields(logrus.Fields{
		"provider": e.generator.Name(),
		"drug":     result.Drug,
	}).Warn("LLM explanation failed, using rule-based fallback")
	return e.fallback.Explain(ctx, result)
}

// BreakerState reports the circuit breaker state for health checks.
func (e *LLMExplainer) BreakerState() string {
	return e.breaker.State().String()
}

func (e *LLMExplainer) generate(ctx context.Context, result *domain.AnalysisResult) (*domain.Explanation, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	out, err := e.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		text, err := e.generator.Generate(callCtx, BuildPrompt(result))
		if err != nil {
			return nil, err
		}
		return ParseResponse(text)
	})
	if err != nil {
		return nil, fmt.Errorf("%s explanation: %w", e.generator.Name(), err)
	}

	explanation := out.(*domain.Explanation)
	explanation.References = []string{
		result.ClinicalRecommendation.CPICGuideline,
		e.generator.Name() + " — AI-generated clinical explanation",
		"PharmGKB Knowledge Base",
	}
	explanation.GeneratedBy = e.generator.Name()
	return explanation, nil
}
