package service

import (
	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// PhenotypeClassifier maps a diplotype to a metabolizer phenotype by scoring
// the function of each allele.
type PhenotypeClassifier struct {
	kb *knowledge.KnowledgeBase
}

// NewPhenotypeClassifier creates a new phenotype classifier
func NewPhenotypeClassifier(kb *knowledge.KnowledgeBase) *PhenotypeClassifier {
	return &PhenotypeClassifier{kb: kb}
}

// AlleleScore is the activity contributed by one allele of the given function.
func AlleleScore(fn domain.AlleleFunction) float64 {
	switch fn {
	case domain.NO_FUNCTION:
		return 0
	case domain.DECREASED_FUNCTION:
		return 0.5
	case domain.INCREASED_FUNCTION:
		return 2
	default:
		return 1
	}
}

// AlleleFunction returns the function of star in gene; alleles missing from the
// gene's table are treated as normal.
func (c *PhenotypeClassifier) AlleleFunction(gene, star string) domain.AlleleFunction {
	if fn, ok := c.kb.StarFunction(gene, star); ok {
		return fn
	}
	return domain.NORMAL_FUNCTION
}

// Classify returns the phenotype for d. The no-data sentinel yields Unknown;
// every other diplotype is scored. RM is never produced here.
func (c *PhenotypeClassifier) Classify(d domain.Diplotype) domain.PhenotypeCall {
	if d.IsUnknown() {
		return domain.PhenotypeCall{Phenotype: domain.PHENOTYPE_UNKNOWN}
	}

	total := AlleleScore(c.AlleleFunction(d.Gene, d.Allele1)) + AlleleScore(c.AlleleFunction(d.Gene, d.Allele2))
	return domain.PhenotypeCall{Phenotype: phenotypeForScore(total), Score: total, Scored: true}
}

func phenotypeForScore(total float64) domain.Phenotype {
	switch {
	case total == 0:
		return domain.PM
	case total > 0 && total <= 1:
		return domain.IM
	case total == 2:
		return domain.NM
	case total > 2:
		return domain.URM
	default:
		// 1 < total < 2, e.g. one decreased and one normal allele.
		return domain.NM
	}
}

// ClassifyLegacy looks d up in the pre-scoring diplotype table. Diplotypes that
// are not listed, and the no-data sentinel, yield Unknown.
func (c *PhenotypeClassifier) ClassifyLegacy(d domain.Diplotype) domain.PhenotypeCall {
	if d.IsUnknown() {
		return domain.PhenotypeCall{Phenotype: domain.PHENOTYPE_UNKNOWN}
	}
	if p, ok := c.kb.LegacyPhenotype(d.String()); ok {
		return domain.PhenotypeCall{Phenotype: p}
	}
	return domain.PhenotypeCall{Phenotype: domain.PHENOTYPE_UNKNOWN}
}
