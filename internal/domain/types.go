// Package domain contains the core entities for pharmacogenomic risk inference:
// variant facts parsed from VCF text, star-allele diplotypes, metabolizer phenotypes
// and the CPIC-derived drug risk rules that turn them into dosing guidance.
//
// Reference: Clinical Pharmacogenetics Implementation Consortium (CPIC) guidelines,
// https://cpicpgx.org/guidelines/
package domain

import (
	"errors"
)

// Zygosity describes the genotype call of a sample at one variant site.
type Zygosity string

const (
	HOMOZYGOUS_REF   Zygosity = "homozygous_ref"
	HETEROZYGOUS     Zygosity = "heterozygous"
	HOMOZYGOUS_ALT   Zygosity = "homozygous_alt"
	ZYGOSITY_UNKNOWN Zygosity = "unknown"
)

// AlleleFunction is the CPIC functional status of a star allele.
type AlleleFunction string

const (
	NORMAL_FUNCTION    AlleleFunction = "normal"
	DECREASED_FUNCTION AlleleFunction = "decreased"
	NO_FUNCTION        AlleleFunction = "no_function"
	INCREASED_FUNCTION AlleleFunction = "increased"
)

// Phenotype is the metabolizer status derived from a diplotype.
type Phenotype string

const (
	PM                Phenotype = "PM"
	IM                Phenotype = "IM"
	NM                Phenotype = "NM"
	RM                Phenotype = "RM"
	URM               Phenotype = "URM"
	PHENOTYPE_UNKNOWN Phenotype = "Unknown"
)

// Severity grades the clinical impact of a drug risk.
type Severity string

const (
	SEVERITY_NONE     Severity = "none"
	SEVERITY_LOW      Severity = "low"
	SEVERITY_MODERATE Severity = "moderate"
	SEVERITY_HIGH     Severity = "high"
	SEVERITY_CRITICAL Severity = "critical"
)

// RiskLabel is the headline outcome of a drug risk assessment.
type RiskLabel string

const (
	SAFE          RiskLabel = "Safe"
	ADJUST_DOSAGE RiskLabel = "Adjust Dosage"
	TOXIC         RiskLabel = "Toxic"
	INEFFECTIVE   RiskLabel = "Ineffective"
	RISK_UNKNOWN  RiskLabel = "Unknown"
)

// ConfidenceModel selects how a risk assessment's confidence score is computed.
type ConfidenceModel string

const (
	// CONFIDENCE_RULE_TABLE uses the static per-phenotype confidence of the drug rule.
	CONFIDENCE_RULE_TABLE ConfidenceModel = "rule_table"
	// CONFIDENCE_VARIANT_COUNT recomputes confidence from the number of detected variants.
	CONFIDENCE_VARIANT_COUNT ConfidenceModel = "variant_count"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoVariants        = errors.New("no variant records found")
	ErrInvalidVCF        = errors.New("invalid VCF content")
	ErrInvalidPhenotype  = errors.New("invalid metabolizer phenotype")
	ErrInvalidRiskLabel  = errors.New("invalid risk label")
	ErrInvalidConfidence = errors.New("invalid confidence model")
)

// IsValid reports whether z is one of the four genotype classes.
func (z Zygosity) IsValid() bool {
	switch z {
	case HOMOZYGOUS_REF, HETEROZYGOUS, HOMOZYGOUS_ALT, ZYGOSITY_UNKNOWN:
		return true
	default:
		return false
	}
}

func (z Zygosity) String() string {
	return string(z)
}

// IsValid reports whether f is a known allele function.
func (f AlleleFunction) IsValid() bool {
	switch f {
	case NORMAL_FUNCTION, DECREASED_FUNCTION, NO_FUNCTION, INCREASED_FUNCTION:
		return true
	default:
		return false
	}
}

func (f AlleleFunction) String() string {
	return string(f)
}

// IsValid reports whether p is one of the fixed phenotype categories.
func (p Phenotype) IsValid() bool {
	switch p {
	case PM, IM, NM, RM, URM, PHENOTYPE_UNKNOWN:
		return true
	default:
		return false
	}
}

func (p Phenotype) String() string {
	return string(p)
}

// Description returns the clinical wording of the metabolizer status.
func (p Phenotype) Description() string {
	switch p {
	case PM:
		return "Poor Metabolizer — Complete or near-complete loss of enzyme/transporter function."
	case IM:
		return "Intermediate Metabolizer — One functional and one non-functional allele, resulting in reduced activity."
	case NM:
		return "Normal Metabolizer — Two functional alleles, normal enzyme activity expected."
	case RM:
		return "Rapid Metabolizer — Enhanced enzyme activity from increased-function alleles."
	case URM:
		return "Ultra-Rapid Metabolizer — Markedly elevated enzyme activity, often from gene duplication."
	default:
		return "Phenotype could not be determined from available genotype data."
	}
}

// LogFields returns structured logging fields for the phenotype.
func (p Phenotype) LogFields() map[string]any {
	return map[string]any{
		"phenotype":       string(p),
		"is_valid":        p.IsValid(),
		"altered_enzyme":  p.IsAltered(),
		"phenotype_known": p != PHENOTYPE_UNKNOWN,
	}
}

// IsAltered reports whether the phenotype departs from normal enzyme activity.
func (p Phenotype) IsAltered() bool {
	switch p {
	case PM, IM, RM, URM:
		return true
	default:
		return false
	}
}

// ParsePhenotype converts s into a Phenotype.
func ParsePhenotype(s string) (Phenotype, error) {
	p := Phenotype(s)
	if !p.IsValid() {
		return "", ErrInvalidPhenotype
	}
	return p, nil
}

// IsValid reports whether s is a known severity grade.
func (s Severity) IsValid() bool {
	switch s {
	case SEVERITY_NONE, SEVERITY_LOW, SEVERITY_MODERATE, SEVERITY_HIGH, SEVERITY_CRITICAL:
		return true
	default:
		return false
	}
}

func (s Severity) String() string {
	return string(s)
}

// IsValid reports whether r is a known risk label.
func (r RiskLabel) IsValid() bool {
	switch r {
	case SAFE, ADJUST_DOSAGE, TOXIC, INEFFECTIVE, RISK_UNKNOWN:
		return true
	default:
		return false
	}
}

func (r RiskLabel) String() string {
	return string(r)
}

// ParseRiskLabel converts s into a RiskLabel.
func ParseRiskLabel(s string) (RiskLabel, error) {
	r := RiskLabel(s)
	if !r.IsValid() {
		return "", ErrInvalidRiskLabel
	}
	return r, nil
}

// RequiresAction reports whether the label calls for a prescribing change.
func (r RiskLabel) RequiresAction() bool {
	switch r {
	case ADJUST_DOSAGE, TOXIC, INEFFECTIVE:
		return true
	default:
		return false
	}
}

// IsValid reports whether m names a supported confidence model.
func (m ConfidenceModel) IsValid() bool {
	switch m {
	case CONFIDENCE_RULE_TABLE, CONFIDENCE_VARIANT_COUNT:
		return true
	default:
		return false
	}
}

func (m ConfidenceModel) String() string {
	return string(m)
}

// ParseConfidenceModel converts s into a ConfidenceModel. An empty string selects the rule table.
func ParseConfidenceModel(s string) (ConfidenceModel, error) {
	if s == "" {
		return CONFIDENCE_RULE_TABLE, nil
	}
	m := ConfidenceModel(s)
	if !m.IsValid() {
		return "", ErrInvalidConfidence
	}
	return m, nil
}
