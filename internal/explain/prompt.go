package explain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty model response")

// BuildPrompt renders the instruction sent to the language model for result.
func BuildPrompt(result *domain.AnalysisResult) string {
	profile := result.PharmacogenomicProfile
	risk := result.RiskAssessment
	rec := result.ClinicalRecommendation

	variants := make([]string, len(profile.DetectedVariants))
	for i, v := range profile.DetectedVariants {
		variants[i] = fmt.Sprintf("%s (%s)", v.RSID, v.StarAllele)
	}
	variantText := strings.Join(variants, ", ")
	if variantText == "" {
		variantText = "None"
	}

	var b strings.Builder
	b.WriteString("You are a clinical pharmacogenomics specialist. Generate a structured clinical explanation for the following result. Return ONLY valid JSON, no markdown, no extra text.\n\n")
	b.WriteString("Patient Result:\n")
	fmt.Fprintf(&b, "- Drug: %s\n", result.Drug)
	fmt.Fprintf(&b, "- Primary Gene: %s\n", profile.PrimaryGene)
	fmt.Fprintf(&b, "- Diplotype: %s\n", profile.Diplotype)
	fmt.Fprintf(&b, "- Phenotype: %s\n", profile.Phenotype)
	fmt.Fprintf(&b, "- Risk Label: %s\n", risk.RiskLabel)
	fmt.Fprintf(&b, "- Severity: %s\n", risk.Severity)
	fmt.Fprintf(&b, "- Confidence: %s\n", percent(risk.ConfidenceScore))
	fmt.Fprintf(&b, "- Detected Variants: %s\n", variantText)
	fmt.Fprintf(&b, "- Dosing Recommendation: %s\n", rec.DosingRecommendation)
	fmt.Fprintf(&b, "- CPIC Guideline: %s\n\n", rec.CPICGuideline)
	b.WriteString("Return:\n")
	b.WriteString(`{"summary":"2-3 sentence clinical summary","mechanism":"Detailed biological mechanism (3-4 sentences)","clinical_significance":"Clinical significance for this patient","monitoring_parameters":"Specific monitoring recommendations","patient_friendly_summary":"Plain language explanation for patient"}`)
	return b.String()
}

type modelExplanation struct {
	Summary                string `json:"summary"`
	Mechanism              string `json:"mechanism"`
	ClinicalSignificance   string `json:"clinical_significance"`
	MonitoringParameters   string `json:"monitoring_parameters"`
	PatientFriendlySummary string `json:"patient_friendly_summary"`
}

// ParseResponse decodes the model's JSON answer, tolerating markdown code fences.
func ParseResponse(text string) (*domain.Explanation, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	var parsed modelExplanation
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if parsed.Summary == "" && parsed.Mechanism == "" {
		return nil, ErrEmptyResponse
	}

	return &domain.Explanation{
		Summary:                parsed.Summary,
		Mechanism:              parsed.Mechanism,
		ClinicalSignificance:   parsed.ClinicalSignificance,
		MonitoringParameters:   parsed.MonitoringParameters,
		PatientFriendlySummary: parsed.PatientFriendlySummary,
	}, nil
}

func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
