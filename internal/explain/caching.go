package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/cache"
	"github.com/pharmaguard-mcp-server/internal/domain"
)

// CACHE_NAMESPACE prefixes explanation cache keys.
const CACHE_NAMESPACE = "explanation"

// Caching wraps an Explainer with a cache keyed on the genotype-derived fields
// of a result. Patient identity and timestamps are not part of the key.
type Caching struct {
	scope  string
	next   domain.Explainer
	store  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCaching creates a caching explainer. scope separates entries produced by
// different generators.
func NewCaching(logger *logrus.Logger, scope string, next domain.Explainer, store cache.Cache, ttl time.Duration) *Caching {
	return &Caching{scope: scope, next: next, store: store, ttl: ttl, logger: logger}
}

// Explain serves from the cache when possible. Cache failures are logged and
// never fail the request.
func (c *Caching) Explain(ctx context.Context, result *domain.AnalysisResult) (*domain.Explanation, error) {
	key := CacheKey(c.scope, result)

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.WithError(err).Warn("Explanation cache read failed")
	} else if ok {
		var cached domain.Explanation
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		_ = c.store.Delete(ctx, key)
	}

	explanation, err := c.next.Explain(ctx, result)
	if err != nil {
		return nil, err
	}

	// Fallback text from a failed model call is not cached so the model is retried.
	if explanation.GeneratedBy != c.scope {
		return explanation, nil
	}
	if raw, err := json.Marshal(explanation); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.WithError(err).Warn("Explanation cache write failed")
		}
	}
	return explanation, nil
}

// CacheKey derives the cache key for result within scope.
func CacheKey(scope string, result *domain.AnalysisResult) string {
	profile := result.PharmacogenomicProfile
	risk := result.RiskAssessment
	rec := result.ClinicalRecommendation

	parts := []string{
		scope,
		result.Drug,
		profile.PrimaryGene,
		profile.Diplotype,
		string(profile.Phenotype),
		string(risk.RiskLabel),
		string(risk.Severity),
		fmt.Sprintf("%.4f", risk.ConfidenceScore),
		rec.DosingRecommendation,
		rec.CPICGuideline,
	}
	parts = append(parts, risk.RiskFactors...)
	parts = append(parts, rec.MonitoringRequired...)
	for _, v := range profile.DetectedVariants {
		parts = append(parts, v.RSID+"|"+v.StarAllele+"|"+string(v.Zygosity))
	}
	return cache.Key(CACHE_NAMESPACE, parts...)
}
