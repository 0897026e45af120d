// Package explain attaches a narrative explanation to analysis results. The
// rule-based explainer works offline; the LLM explainer asks a language model
// and falls back to the rule-based text on any failure.
package explain

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// GENERATED_BY_RULES marks explanations produced without a language model.
const GENERATED_BY_RULES = "rule-based"

const (
	referencePharmGKB = "PharmGKB Pharmacogenomics Knowledge Base (www.pharmgkb.org)"
	referenceCPIC     = "Clinical Pharmacogenetics Implementation Consortium (CPIC) Guidelines"
	noVariantsText    = "No specific pharmacogenomic variants detected"
	defaultMonitoring = "Standard clinical monitoring"
)

// RuleBased builds explanations from templates and the knowledge base.
type RuleBased struct {
	kb *knowledge.KnowledgeBase
}

// NewRuleBased creates a rule-based explainer
func NewRuleBased(kb *knowledge.KnowledgeBase) *RuleBased {
	return &RuleBased{kb: kb}
}

// Explain never fails.
func (r *RuleBased) Explain(_ context.Context, result *domain.AnalysisResult) (*domain.Explanation, error) {
	return r.Build(result), nil
}

// Build renders the explanation for result.
func (r *RuleBased) Build(result *domain.AnalysisResult) *domain.Explanation {
	profile := result.PharmacogenomicProfile
	risk := result.RiskAssessment
	rec := result.ClinicalRecommendation
	gene := profile.PrimaryGene
	drug := result.Drug

	mechanism, ok := r.kb.Mechanism(gene)
	if !ok {
		mechanism = fmt.Sprintf("%s plays a critical pharmacogenomic role in drug metabolism for %s.", gene, drug)
	}

	return &domain.Explanation{
		Summary: fmt.Sprintf("Patient carries the %s diplotype %s, classifying them as a %s. For %s, this results in a risk classification of %q with %s confidence.",
			gene, profile.Diplotype, profile.Phenotype, drug, risk.RiskLabel, percent(risk.ConfidenceScore)),
		Mechanism: fmt.Sprintf("%s The detected diplotype %s (%s) affects the enzyme's capacity to process %s. Variants detected: %s.",
			mechanism, profile.Diplotype, profile.Phenotype.Description(), drug, variantList(profile.DetectedVariants)),
		ClinicalSignificance:   clinicalSignificance(risk.RiskFactors, rec.DosingRecommendation),
		MonitoringParameters:   monitoring(rec.MonitoringRequired),
		PatientFriendlySummary: patientSummary(drug, profile.Phenotype, risk.RiskLabel),
		References: []string{
			rec.CPICGuideline,
			referencePharmGKB,
			"FDA Table of Pharmacogenomic Biomarkers — " + gene,
			referenceCPIC,
		},
		GeneratedBy: GENERATED_BY_RULES,
	}
}

func percent(score float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(score*100)))
}

func variantList(variants []domain.DetectedVariant) string {
	if len(variants) == 0 {
		return noVariantsText
	}
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = fmt.Sprintf("%s (%s, %s)", v.RSID, v.StarAllele, v.Zygosity)
	}
	return strings.Join(parts, ", ")
}

func clinicalSignificance(factors []string, dosing string) string {
	if len(factors) == 0 {
		return dosing
	}
	return strings.Join(factors, ". ") + ". " + dosing
}

func monitoring(items []string) string {
	if len(items) == 0 {
		return defaultMonitoring
	}
	return strings.Join(items, "; ")
}

func patientSummary(drug string, phenotype domain.Phenotype, risk domain.RiskLabel) string {
	var processing string
	switch phenotype {
	case domain.PM:
		processing = "processes this medication very slowly or not at all"
	case domain.IM:
		processing = "processes this medication more slowly than average"
	case domain.URM:
		processing = "processes this medication much faster than normal"
	default:
		processing = "processes this medication normally"
	}

	var meaning string
	switch risk {
	case domain.TOXIC:
		meaning = drug + " could build up to harmful levels and is not recommended for you"
	case domain.INEFFECTIVE:
		meaning = drug + " may not work effectively and an alternative should be considered"
	case domain.ADJUST_DOSAGE:
		meaning = "your doctor should adjust the dose of " + drug + " for your genetic profile"
	default:
		meaning = drug + " is expected to work normally for you at standard doses"
	}

	return fmt.Sprintf("Your genetic profile shows that your body %s. This means %s.", processing, meaning)
}
