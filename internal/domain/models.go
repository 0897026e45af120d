package domain

import (
	"time"
)

// WildTypeAllele is the reference star allele assumed when no variant is observed.
const WildTypeAllele = "*1"

// AnalysisVersion is reported in every result's quality metrics.
const AnalysisVersion = "PharmaGuard v1.0.0"

// DiplotypeSource records how a diplotype was obtained.
type DiplotypeSource string

const (
	// DIPLOTYPE_WILD_TYPE means no resolvable allele was observed and *1/*1 was assumed.
	DIPLOTYPE_WILD_TYPE DiplotypeSource = "wild_type_default"
	// DIPLOTYPE_HOMOZYGOUS means a homozygous-alt record decided both alleles.
	DIPLOTYPE_HOMOZYGOUS DiplotypeSource = "homozygous_call"
	// DIPLOTYPE_OBSERVED means at least one allele came from observed records.
	DIPLOTYPE_OBSERVED DiplotypeSource = "observed"
	// DIPLOTYPE_NO_DATA is the "Unknown" sentinel: no genotype information at all.
	DIPLOTYPE_NO_DATA DiplotypeSource = "no_data"
)

// Diplotype is the pair of star alleles inferred for one gene.
type Diplotype struct {
	Gene    string          `json:"gene"`
	Allele1 string          `json:"allele1"`
	Allele2 string          `json:"allele2"`
	Source  DiplotypeSource `json:"source"`
	// ExtraAlleles holds alleles collected after the first two. Only the first
	// two take part in phenotype classification.
	ExtraAlleles []string `json:"extra_alleles,omitempty"`
}

// WildTypeDiplotype returns *1/*1 for gene.
func WildTypeDiplotype(gene string) Diplotype {
	return Diplotype{Gene: gene, Allele1: WildTypeAllele, Allele2: WildTypeAllele, Source: DIPLOTYPE_WILD_TYPE}
}

// UnknownDiplotype returns the no-data sentinel for gene.
func UnknownDiplotype(gene string) Diplotype {
	return Diplotype{Gene: gene, Source: DIPLOTYPE_NO_DATA}
}

// IsUnknown reports whether d is the no-data sentinel.
func (d Diplotype) IsUnknown() bool {
	return d.Source == DIPLOTYPE_NO_DATA
}

// Truncated reports whether more than two alleles were observed.
func (d Diplotype) Truncated() bool {
	return len(d.ExtraAlleles) > 0
}

// String renders the diplotype as "allele1/allele2", or "Unknown" for the sentinel.
func (d Diplotype) String() string {
	if d.IsUnknown() {
		return string(PHENOTYPE_UNKNOWN)
	}
	return d.Allele1 + "/" + d.Allele2
}

// PhenotypeCall is a phenotype together with the evidence state that produced it.
type PhenotypeCall struct {
	Phenotype Phenotype `json:"phenotype"`
	Score     float64   `json:"score"`
	// Scored is false when the phenotype came from the no-data path.
	Scored bool `json:"scored"`
}

// RiskEntry is the guidance a drug rule gives for one phenotype.
type RiskEntry struct {
	Risk         RiskLabel `json:"risk"`
	Severity     Severity  `json:"severity"`
	Confidence   float64   `json:"confidence"`
	Dosing       string    `json:"dosing"`
	Alternatives []string  `json:"alternatives"`
	Monitoring   []string  `json:"monitoring"`
	Urgency      string    `json:"urgency"`
}

// DrugRule is the CPIC rule for one drug. There is one entry per Phenotype value.
type DrugRule struct {
	Drug           string   `json:"drug"`
	PrimaryGene    string   `json:"primary_gene"`
	SecondaryGenes []string `json:"secondary_genes"`
	CPICLevel      string   `json:"cpic_level"`
	CPICGuideline  string   `json:"cpic_guideline"`

	PM      RiskEntry `json:"PM"`
	IM      RiskEntry `json:"IM"`
	NM      RiskEntry `json:"NM"`
	RM      RiskEntry `json:"RM"`
	URM     RiskEntry `json:"URM"`
	Unknown RiskEntry `json:"Unknown"`

	// Contraindications holds optional notes keyed by phenotype.
	Contraindications map[Phenotype]string `json:"contraindications,omitempty"`
}

// Entry returns the rule's guidance for p. Any phenotype outside the fixed set
// falls back to the Unknown entry.
func (r *DrugRule) Entry(p Phenotype) RiskEntry {
	switch p {
	case PM:
		return r.PM
	case IM:
		return r.IM
	case NM:
		return r.NM
	case RM:
		return r.RM
	case URM:
		return r.URM
	case PHENOTYPE_UNKNOWN:
		return r.Unknown
	default:
		return r.Unknown
	}
}

// AssessedGenes returns the primary gene followed by the secondary genes.
func (r *DrugRule) AssessedGenes() []string {
	genes := make([]string, 0, 1+len(r.SecondaryGenes))
	genes = append(genes, r.PrimaryGene)
	return append(genes, r.SecondaryGenes...)
}

// RiskAssessment is the risk outcome for one (drug, patient) pair.
type RiskAssessment struct {
	RiskLabel       RiskLabel `json:"risk_label"`
	ConfidenceScore float64   `json:"confidence_score"`
	Severity        Severity  `json:"severity"`
	RiskFactors     []string  `json:"risk_factors"`
}

// DetectedVariant is a variant reported against a drug's genes.
type DetectedVariant struct {
	RSID                 string   `json:"rsid"`
	Gene                 string   `json:"gene"`
	StarAllele           string   `json:"star_allele"`
	Chromosome           string   `json:"chromosome"`
	Position             int64    `json:"position"`
	Ref                  string   `json:"ref"`
	Alt                  string   `json:"alt"`
	Zygosity             Zygosity `json:"zygosity"`
	ClinicalSignificance string   `json:"clinical_significance"`
}

// PharmacogenomicProfile summarises the genotype evidence behind a result.
type PharmacogenomicProfile struct {
	PrimaryGene      string            `json:"primary_gene"`
	Diplotype        string            `json:"diplotype"`
	Phenotype        Phenotype         `json:"phenotype"`
	DetectedVariants []DetectedVariant `json:"detected_variants"`
	AllGenesAssessed []string          `json:"all_genes_assessed"`
}

// ClinicalRecommendation is the prescribing guidance attached to a result.
type ClinicalRecommendation struct {
	DosingRecommendation string   `json:"dosing_recommendation"`
	AlternativeDrugs     []string `json:"alternative_drugs"`
	MonitoringRequired   []string `json:"monitoring_required"`
	CPICLevel            string   `json:"cpic_level"`
	CPICGuideline        string   `json:"cpic_guideline"`
	Urgency              string   `json:"urgency"`
	Contraindications    string   `json:"contraindications,omitempty"`
}

// QualityMetrics describes how much evidence backed a result.
type QualityMetrics struct {
	VCFParsingSuccess       bool     `json:"vcf_parsing_success"`
	VCFVersionValid         bool     `json:"vcf_version_valid"`
	TotalVariantsInVCF      int      `json:"total_variants_in_vcf"`
	PharmacogenomicGenes    []string `json:"pharmacogenomic_genes_found"`
	VariantsForThisDrugGene int      `json:"variants_for_this_drug_gene"`
	LLMExplanationGenerated bool     `json:"llm_explanation_generated"`
	AnalysisVersion         string   `json:"analysis_version"`
}

// Explanation is the narrative attached to a result by an Explainer.
type Explanation struct {
	Summary                string   `json:"summary"`
	Mechanism              string   `json:"mechanism"`
	ClinicalSignificance   string   `json:"clinical_significance"`
	MonitoringParameters   string   `json:"monitoring_parameters"`
	PatientFriendlySummary string   `json:"patient_friendly_summary"`
	References             []string `json:"references"`
	GeneratedBy            string   `json:"generated_by"`
}

// AnalysisResult is the per-drug output record.
type AnalysisResult struct {
	PatientID              string                 `json:"patient_id"`
	Drug                   string                 `json:"drug"`
	Timestamp              time.Time              `json:"timestamp"`
	RiskAssessment         RiskAssessment         `json:"risk_assessment"`
	PharmacogenomicProfile PharmacogenomicProfile `json:"pharmacogenomic_profile"`
	ClinicalRecommendation ClinicalRecommendation `json:"clinical_recommendation"`
	Explanation            *Explanation           `json:"llm_generated_explanation,omitempty"`
	QualityMetrics         QualityMetrics         `json:"quality_metrics"`
}

// VCFMetadata summarises the parsed file in a report envelope.
type VCFMetadata struct {
	SampleName          string   `json:"sample_name"`
	TotalVariants       int      `json:"total_variants"`
	PharmaGenesDetected []string `json:"pharma_genes_detected"`
}

// AnalysisReport is the response envelope for one analysis request.
type AnalysisReport struct {
	Success            bool             `json:"success"`
	PatientID          string           `json:"patient_id"`
	TotalDrugsAnalyzed int              `json:"total_drugs_analyzed"`
	Results            []AnalysisResult `json:"results"`
	VCFMetadata        VCFMetadata      `json:"vcf_metadata"`
}

// AnalyzeRequest is the input of an analysis.
type AnalyzeRequest struct {
	VCFContent string   `json:"vcfContent"`
	Drugs      []string `json:"drugs"`
}

// AnalysisRecord is a persisted analysis report.
type AnalysisRecord struct {
	ID        string          `json:"id"`
	PatientID string          `json:"patient_id"`
	RequestID string          `json:"request_id,omitempty"`
	Drugs     []string        `json:"drugs"`
	Report    *AnalysisReport `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}
