package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// Risk factor texts, in the order they are reported.
const (
	factorPoorMetabolizer         = "Poor metabolizer — zero or minimal enzyme activity"
	factorIntermediateMetabolizer = "Intermediate metabolizer — reduced enzyme activity"
	factorUltraRapidMetabolizer   = "Ultra-rapid metabolizer — significantly elevated enzyme activity"
	factorHomozygous              = "Homozygous variant(s) detected — compound effect on enzyme activity"
)

// GeneEvidence summarises the variants behind a phenotype for risk factor assembly.
type GeneEvidence struct {
	Gene             string
	PrimaryVariants  int
	AnyHomozygousAlt bool
}

// RiskOutcome is the rule engine's decision for one drug.
type RiskOutcome struct {
	Drug           string
	Supported      bool
	Rule           *domain.DrugRule
	Entry          domain.RiskEntry
	Assessment     domain.RiskAssessment
	Recommendation domain.ClinicalRecommendation
}

// RiskRuleEngine applies CPIC drug rules to a phenotype.
type RiskRuleEngine struct {
	logger *logrus.Logger
	kb     *knowledge.KnowledgeBase
	model  domain.ConfidenceModel
}

// NewRiskRuleEngine creates a new risk rule engine. An invalid model falls back
// to the rule table.
func NewRiskRuleEngine(logger *logrus.Logger, kb *knowledge.KnowledgeBase, model domain.ConfidenceModel) *RiskRuleEngine {
	if !model.IsValid() {
		model = domain.CONFIDENCE_RULE_TABLE
	}
	return &RiskRuleEngine{logger: logger, kb: kb, model: model}
}

// ConfidenceModel returns the model used for confidence scores.
func (e *RiskRuleEngine) ConfidenceModel() domain.ConfidenceModel {
	return e.model
}

// Rule returns the rule for drug, if supported.
func (e *RiskRuleEngine) Rule(drug string) (*domain.DrugRule, bool) {
	return e.kb.Rule(drug)
}

// Evaluate looks up the risk of drug for phenotype.
func (e *RiskRuleEngine) Evaluate(drug string, phenotype domain.Phenotype, evidence GeneEvidence) RiskOutcome {
	name := knowledge.NormalizeDrug(drug)
	rule, ok := e.kb.Rule(name)
	if !ok {
		e.logger.WithField("drug", name).Debug("Drug has no pharmacogenomic rule")
		return unsupportedOutcome(drug, name)
	}

	entry := rule.Entry(phenotype)
	assessment := domain.RiskAssessment{
		RiskLabel:       entry.Risk,
		ConfidenceScore: ScoreConfidence(e.model, entry, phenotype, evidence.PrimaryVariants),
		Severity:        entry.Severity,
		RiskFactors:     riskFactors(phenotype, evidence),
	}

	e.logger.WithFields(logrus.Fields{
		"drug":       name,
		"gene":       rule.PrimaryGene,
		"phenotype":  phenotype.String(),
		"risk_label": entry.Risk.String(),
		"confidence": assessment.ConfidenceScore,
		"model":      e.model.String(),
	}).Debug("Evaluated drug risk rule")

	return RiskOutcome{
		Drug:       name,
		Supported:  true,
		Rule:       rule,
		Entry:      entry,
		Assessment: assessment,
		Recommendation: domain.ClinicalRecommendation{
			DosingRecommendation: entry.Dosing,
			AlternativeDrugs:     nonNil(entry.Alternatives),
			MonitoringRequired:   nonNil(entry.Monitoring),
			CPICLevel:            rule.CPICLevel,
			CPICGuideline:        rule.CPICGuideline,
			Urgency:              entry.Urgency,
			Contraindications:    rule.Contraindications[phenotype],
		},
	}
}

func riskFactors(phenotype domain.Phenotype, evidence GeneEvidence) []string {
	factors := []string{}
	switch phenotype {
	case domain.PM:
		factors = append(factors, factorPoorMetabolizer)
	case domain.IM:
		factors = append(factors, factorIntermediateMetabolizer)
	case domain.URM:
		factors = append(factors, factorUltraRapidMetabolizer)
	}
	if evidence.PrimaryVariants > 0 {
		factors = append(factors, fmt.Sprintf("%d pharmacogenomic variant(s) detected in %s", evidence.PrimaryVariants, evidence.Gene))
	}
	if evidence.AnyHomozygousAlt {
		factors = append(factors, factorHomozygous)
	}
	return factors
}

func unsupportedOutcome(original, name string) RiskOutcome {
	return RiskOutcome{
		Drug:      name,
		Supported: false,
		Assessment: domain.RiskAssessment{
			RiskLabel:       domain.RISK_UNKNOWN,
			ConfidenceScore: UnsupportedDrugConfidence,
			Severity:        domain.SEVERITY_NONE,
			RiskFactors:     []string{fmt.Sprintf("Drug %q is not supported", original)},
		},
		Recommendation: domain.ClinicalRecommendation{
			DosingRecommendation: "Drug not supported. Consult pharmacist.",
			AlternativeDrugs:     []string{},
			MonitoringRequired:   []string{},
			CPICLevel:            "N/A",
			CPICGuideline:        "N/A",
			Urgency:              "Refer to clinical pharmacist",
		},
	}
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
