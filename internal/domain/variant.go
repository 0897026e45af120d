package domain

import "strings"

// SupportedGenes lists the pharmacogenes whose presence is reported in parse metadata.
var SupportedGenes = []string{"CYP2D6", "CYP2C19", "CYP2C9", "SLCO1B1", "TPMT", "DPYD"}

// IsSupportedGene reports whether gene (case-insensitive) is one of SupportedGenes.
func IsSupportedGene(gene string) bool {
	g := strings.ToUpper(gene)
	for _, s := range SupportedGenes {
		if s == g {
			return true
		}
	}
	return false
}

// InfoField is one key/value pair of a VCF INFO column.
type InfoField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Info is the ordered INFO mapping of a variant record.
type Info []InfoField

// Get returns the first value stored under key.
func (in Info) Get(key string) (string, bool) {
	for _, f := range in {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// VariantRecord is one data line of a VCF file. Gene, StarAllele and
// ClinicalSignificance are empty when unresolved. BadPosition marks a line
// whose POS column was not a non-negative integer; Position is 0 then.
type VariantRecord struct {
	Chromosome  string   `json:"chromosome"`
	Position    int64    `json:"position"`
	BadPosition bool     `json:"bad_position,omitempty"`
	ID          string   `json:"id"`
	RSID        string   `json:"rsid,omitempty"`
	Reference   string   `json:"ref"`
	Alternate   string   `json:"alt"`
	Quality     string   `json:"qual"`
	Filter      string   `json:"filter"`
	Info        Info     `json:"info"`
	Genotype    string   `json:"genotype"`
	Zygosity    Zygosity `json:"zygosity"`

	Gene                 string `json:"gene,omitempty"`
	StarAllele           string `json:"star_allele,omitempty"`
	ClinicalSignificance string `json:"clinical_significance,omitempty"`
}

// ResolvedGene returns the record's gene symbol, if any.
func (v VariantRecord) ResolvedGene() (string, bool) {
	return v.Gene, v.Gene != ""
}

// ResolvedStar returns the record's star allele, if any. A "." placeholder counts as absent.
func (v VariantRecord) ResolvedStar() (string, bool) {
	if v.StarAllele == "" || v.StarAllele == "." {
		return "", false
	}
	return v.StarAllele, true
}

// Identifier returns the rsID when known, then the raw ID column, then ".".
func (v VariantRecord) Identifier() string {
	switch {
	case v.RSID != "":
		return v.RSID
	case v.ID != "":
		return v.ID
	default:
		return "."
	}
}

// ParsedVcf is the result of parsing one VCF document.
type ParsedVcf struct {
	PatientID    string          `json:"patient_id"`
	SampleName   string          `json:"sample_name"`
	Variants     []VariantRecord `json:"variants"`
	VariantCount int             `json:"variant_count"`
	PharmGenes   []string        `json:"pharm_genes"`
	Success      bool            `json:"parse_success"`
	ErrorMessage string          `json:"error_message,omitempty"`
	FileFormat   string          `json:"file_format,omitempty"`
	VersionValid bool            `json:"vcf_version_valid"`
	MetaHeaders  []string        `json:"meta_headers,omitempty"`
}

// NoData reports the recoverable failure state where nothing usable was parsed.
func (p *ParsedVcf) NoData() bool {
	return !p.Success && len(p.Variants) == 0
}
