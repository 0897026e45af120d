// Package knowledge holds the static pharmacogenomic reference tables: star-allele
// function per gene, curated rsID annotations and CPIC drug rules. A KnowledgeBase
// is built once and shared read-only by every pipeline stage.
package knowledge

import (
	"sort"
	"strings"
	"sync"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// UncertainSignificance is reported for variants absent from the curated tables.
const UncertainSignificance = "Variant of uncertain significance"

// VariantAnnotation is the curated knowledge for one rsID.
type VariantAnnotation struct {
	Gene                 string                `json:"gene"`
	StarAllele           string                `json:"star_allele"`
	Function             domain.AlleleFunction `json:"function"`
	ClinicalSignificance string                `json:"clinical_significance"`
}

// KnowledgeBase provides lookups over the reference tables. It is never mutated
// after construction.
type KnowledgeBase struct {
	starFunctions map[string]map[string]domain.AlleleFunction
	variants      map[string]VariantAnnotation
	rules         map[string]domain.DrugRule
	legacy        map[string]domain.Phenotype
	mechanisms    map[string]string
	drugs         []string
}

var (
	defaultOnce sync.Once
	defaultKB   *KnowledgeBase
)

// Default returns the process-wide knowledge base built from the shipped tables.
func Default() *KnowledgeBase {
	defaultOnce.Do(func() {
		defaultKB = &KnowledgeBase{
			starFunctions: starAlleleFunctions,
			variants:      knownVariants,
			rules:         drugRules,
			legacy:        legacyDiplotypePhenotypes,
			mechanisms:    geneMechanisms,
			drugs:         drugOrder,
		}
	})
	return defaultKB
}

// NormalizeDrug upper-cases and trims a drug name.
func NormalizeDrug(drug string) string {
	return strings.ToUpper(strings.TrimSpace(drug))
}

// NormalizeRSID lower-cases the "rs" prefix so "RS123" and "rs123" match.
func NormalizeRSID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 2 && strings.EqualFold(id[:2], "rs") {
		return "rs" + id[2:]
	}
	return id
}

// StarFunction returns the function of star in gene. ok is false when the
// allele is not in the gene's table.
func (kb *KnowledgeBase) StarFunction(gene, star string) (fn domain.AlleleFunction, ok bool) {
	table, exists := kb.starFunctions[strings.ToUpper(gene)]
	if !exists {
		return "", false
	}
	fn, ok = table[star]
	return fn, ok
}

// LookupRSID returns the curated annotation for rsid.
func (kb *KnowledgeBase) LookupRSID(rsid string) (VariantAnnotation, bool) {
	if rsid == "" {
		return VariantAnnotation{}, false
	}
	a, ok := kb.variants[NormalizeRSID(rsid)]
	return a, ok
}

// Rule returns the drug rule for drug (case-insensitive).
func (kb *KnowledgeBase) Rule(drug string) (*domain.DrugRule, bool) {
	rule, ok := kb.rules[NormalizeDrug(drug)]
	if !ok {
		return nil, false
	}
	return &rule, true
}

// SupportedDrugs returns the supported drug names in their canonical order.
func (kb *KnowledgeBase) SupportedDrugs() []string {
	out := make([]string, len(kb.drugs))
	copy(out, kb.drugs)
	return out
}

// Genes returns every gene that has a star-allele table, sorted.
func (kb *KnowledgeBase) Genes() []string {
	genes := make([]string, 0, len(kb.starFunctions))
	for g := range kb.starFunctions {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// LegacyPhenotype looks diplotype up in the pre-scoring diplotype table, trying
// the reversed allele order when the direct form is missing.
func (kb *KnowledgeBase) LegacyPhenotype(diplotype string) (domain.Phenotype, bool) {
	if p, ok := kb.legacy[diplotype]; ok {
		return p, true
	}
	parts := strings.Split(diplotype, "/")
	if len(parts) != 2 {
		return "", false
	}
	p, ok := kb.legacy[parts[1]+"/"+parts[0]]
	return p, ok
}

// Mechanism returns the biological mechanism text for gene.
func (kb *KnowledgeBase) Mechanism(gene string) (string, bool) {
	m, ok := kb.mechanisms[strings.ToUpper(gene)]
	return m, ok
}
