package service

import (
	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// VariantAnnotator fills gene, star allele and clinical significance from the
// knowledge base. Values present in the VCF take precedence.
type VariantAnnotator struct {
	kb *knowledge.KnowledgeBase
}

// NewVariantAnnotator creates a new variant annotator
func NewVariantAnnotator(kb *knowledge.KnowledgeBase) *VariantAnnotator {
	return &VariantAnnotator{kb: kb}
}

// Annotate returns annotated copies of records in the same order. Records
// without a knowledge-base match are kept with uncertain significance.
func (a *VariantAnnotator) Annotate(records []domain.VariantRecord) []domain.VariantRecord {
	out := make([]domain.VariantRecord, len(records))
	for i, r := range records {
		out[i] = a.annotate(r)
	}
	return out
}

func (a *VariantAnnotator) annotate(r domain.VariantRecord) domain.VariantRecord {
	known, ok := a.kb.LookupRSID(r.RSID)
	if !ok {
		r.ClinicalSignificance = knowledge.UncertainSignificance
		return r
	}

	if _, has := r.ResolvedGene(); !has {
		r.Gene = known.Gene
	}
	if _, has := r.ResolvedStar(); !has {
		r.StarAllele = known.StarAllele
	}
	r.ClinicalSignificance = known.ClinicalSignificance
	return r
}
