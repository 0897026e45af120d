package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestScoreConfidence(t *testing.T) {
	entry := domain.RiskEntry{Confidence: 0.93}

	tests := []struct {
		name      string
		model     domain.ConfidenceModel
		entry     domain.RiskEntry
		phenotype domain.Phenotype
		count     int
		expected  float64
	}{
		{"rule table", domain.CONFIDENCE_RULE_TABLE, entry, domain.PM, 0, 0.93},
		{"rule table clamps high", domain.CONFIDENCE_RULE_TABLE, domain.RiskEntry{Confidence: 1.4}, domain.PM, 0, 0.99},
		{"rule table clamps low", domain.CONFIDENCE_RULE_TABLE, domain.RiskEntry{Confidence: -1}, domain.PM, 0, 0},
		{"unset model uses rule table", "", entry, domain.NM, 3, 0.93},
		{"two variants", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.PM, 2, 0.95},
		{"many variants", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.IM, 7, 0.95},
		{"one variant", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.IM, 1, 0.70},
		{"no variants", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.NM, 0, 0.50},
		{"unknown with variants", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.PHENOTYPE_UNKNOWN, 2, 0.5},
		{"unknown without variants", domain.CONFIDENCE_VARIANT_COUNT, entry, domain.PHENOTYPE_UNKNOWN, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreConfidence(tt.model, tt.entry, tt.phenotype, tt.count)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestNewRiskRuleEngine_InvalidModel(t *testing.T) {
	engine := NewRiskRuleEngine(quietLogger(), knowledge.Default(), "bayesian")
	assert.Equal(t, domain.CONFIDENCE_RULE_TABLE, engine.ConfidenceModel())
}

func TestRiskRuleEngine_Evaluate(t *testing.T) {
	engine := NewRiskRuleEngine(quietLogger(), knowledge.Default(), domain.CONFIDENCE_RULE_TABLE)

	t.Run("codeine poor metabolizer", func(t *testing.T) {
		out := engine.Evaluate("codeine", domain.PM, GeneEvidence{Gene: "CYP2D6", PrimaryVariants: 1, AnyHomozygousAlt: true})

		require.True(t, out.Supported)
		assert.Equal(t, "CODEINE", out.Drug)
		assert.Equal(t, domain.INEFFECTIVE, out.Assessment.RiskLabel)
		assert.Equal(t, domain.SEVERITY_MODERATE, out.Assessment.Severity)
		assert.InDelta(t, 0.93, out.Assessment.ConfidenceScore, 1e-9)
		assert.Equal(t, []string{
			"Poor metabolizer — zero or minimal enzyme activity",
			"1 pharmacogenomic variant(s) detected in CYP2D6",
			"Homozygous variant(s) detected — compound effect on enzyme activity",
		}, out.Assessment.RiskFactors)
		assert.Equal(t, "A", out.Recommendation.CPICLevel)
		assert.NotEmpty(t, out.Recommendation.AlternativeDrugs)
		assert.Equal(t, "Absolute contraindication", out.Recommendation.Contraindications)
	})

	t.Run("codeine ultra rapid", func(t *testing.T) {
		out := engine.Evaluate("CODEINE", domain.URM, GeneEvidence{Gene: "CYP2D6", PrimaryVariants: 2})

		assert.Equal(t, domain.TOXIC, out.Assessment.RiskLabel)
		assert.Equal(t, domain.SEVERITY_CRITICAL, out.Assessment.Severity)
		assert.Equal(t, "Ultra-rapid metabolizer — significantly elevated enzyme activity", out.Assessment.RiskFactors[0])
		assert.Contains(t, out.Recommendation.Urgency, "CRITICAL")
	})

	t.Run("normal metabolizer without variants", func(t *testing.T) {
		out := engine.Evaluate("WARFARIN", domain.NM, GeneEvidence{Gene: "CYP2C9"})

		assert.Equal(t, domain.SAFE, out.Assessment.RiskLabel)
		assert.Empty(t, out.Assessment.RiskFactors)
		assert.NotNil(t, out.Assessment.RiskFactors)
		assert.Empty(t, out.Recommendation.Contraindications)
	})

	t.Run("unknown phenotype uses unknown entry", func(t *testing.T) {
		out := engine.Evaluate("WARFARIN", domain.PHENOTYPE_UNKNOWN, GeneEvidence{Gene: "CYP2C9"})
		assert.Equal(t, domain.RISK_UNKNOWN, out.Assessment.RiskLabel)
	})

	t.Run("recommendation lists are copies", func(t *testing.T) {
		out := engine.Evaluate("CODEINE", domain.PM, GeneEvidence{})
		out.Recommendation.AlternativeDrugs[0] = "CHANGED"

		again := engine.Evaluate("CODEINE", domain.PM, GeneEvidence{})
		assert.NotEqual(t, "CHANGED", again.Recommendation.AlternativeDrugs[0])
	})
}

func TestRiskRuleEngine_UnsupportedDrug(t *testing.T) {
	engine := NewRiskRuleEngine(quietLogger(), knowledge.Default(), domain.CONFIDENCE_VARIANT_COUNT)

	out := engine.Evaluate("Aspirin", domain.NM, GeneEvidence{})

	assert.False(t, out.Supported)
	assert.Nil(t, out.Rule)
	assert.Equal(t, "ASPIRIN", out.Drug)
	assert.Equal(t, domain.RISK_UNKNOWN, out.Assessment.RiskLabel)
	assert.Equal(t, domain.SEVERITY_NONE, out.Assessment.Severity)
	assert.LessOrEqual(t, out.Assessment.ConfidenceScore, 0.5)
	assert.Equal(t, []string{`Drug "Aspirin" is not supported`}, out.Assessment.RiskFactors)
	assert.Contains(t, out.Recommendation.DosingRecommendation, "Consult pharmacist")
	assert.Equal(t, "N/A", out.Recommendation.CPICLevel)
	assert.Equal(t, "N/A", out.Recommendation.CPICGuideline)
	assert.Empty(t, out.Recommendation.AlternativeDrugs)
	assert.NotNil(t, out.Recommendation.MonitoringRequired)
}

func TestRiskRuleEngine_ConfidenceBounds(t *testing.T) {
	kb := knowledge.Default()
	phenotypes := []domain.Phenotype{domain.PM, domain.IM, domain.NM, domain.RM, domain.URM, domain.PHENOTYPE_UNKNOWN}

	for _, model := range []domain.ConfidenceModel{domain.CONFIDENCE_RULE_TABLE, domain.CONFIDENCE_VARIANT_COUNT} {
		engine := NewRiskRuleEngine(quietLogger(), kb, model)
		for _, drug := range append(kb.SupportedDrugs(), "IBUPROFEN") {
			for _, p := range phenotypes {
				for count := 0; count < 4; count++ {
					c := engine.Evaluate(drug, p, GeneEvidence{PrimaryVariants: count}).Assessment.ConfidenceScore
					assert.GreaterOrEqual(t, c, 0.0)
					assert.LessOrEqual(t, c, MaxConfidence)
				}
			}
		}
	}
}
