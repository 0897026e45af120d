package service

import (
	"github.com/pharmaguard-mcp-server/internal/domain"
)

// MaxConfidence caps every confidence score.
const MaxConfidence = 0.99

// UnsupportedDrugConfidence is the score given to drugs without a rule.
const UnsupportedDrugConfidence = 0.1

// ScoreConfidence computes the confidence of an assessment under model.
//
// CONFIDENCE_RULE_TABLE returns the entry's static confidence.
// CONFIDENCE_VARIANT_COUNT returns 0.95 for two or more primary-gene variants,
// 0.70 for one and 0.50 for none; an Unknown phenotype scores 0.5 when any
// variant was seen and 0 otherwise.
func ScoreConfidence(model domain.ConfidenceModel, entry domain.RiskEntry, phenotype domain.Phenotype, variantCount int) float64 {
	var score float64
	switch model {
	case domain.CONFIDENCE_VARIANT_COUNT:
		score = variantCountConfidence(phenotype, variantCount)
	default:
		score = entry.Confidence
	}
	return clampConfidence(score)
}

func variantCountConfidence(phenotype domain.Phenotype, variantCount int) float64 {
	if phenotype == domain.PHENOTYPE_UNKNOWN {
		if variantCount > 0 {
			return 0.5
		}
		return 0
	}
	switch {
	case variantCount >= 2:
		return 0.95
	case variantCount == 1:
		return 0.70
	default:
		return 0.50
	}
}

func clampConfidence(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > MaxConfidence:
		return MaxConfidence
	default:
		return score
	}
}
