package service

import (
	"strings"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

// DiplotypeInferencer pairs the star alleles observed for a gene into a diplotype.
type DiplotypeInferencer struct {
	kb *knowledge.KnowledgeBase
}

// NewDiplotypeInferencer creates a new diplotype inferencer
func NewDiplotypeInferencer(kb *knowledge.KnowledgeBase) *DiplotypeInferencer {
	return &DiplotypeInferencer{kb: kb}
}

// VariantsForGene returns the records that belong to gene, in file order. A
// record belongs to a gene when its gene symbol matches case-insensitively or
// its rsID is curated for that gene.
func (d *DiplotypeInferencer) VariantsForGene(records []domain.VariantRecord, gene string) []domain.VariantRecord {
	matched := []domain.VariantRecord{}
	for _, r := range records {
		if strings.EqualFold(r.Gene, gene) {
			matched = append(matched, r)
			continue
		}
		if known, ok := d.kb.LookupRSID(r.RSID); ok && known.Gene == gene {
			matched = append(matched, r)
		}
	}
	return matched
}

// Infer builds the diplotype for gene from that gene's records.
//
// The first homozygous-alt record with a resolvable allele decides both slots.
// Otherwise the first two resolvable alleles are paired, a single allele is
// paired with *1, and no allele yields *1/*1. Alleles beyond the second are
// kept in ExtraAlleles but do not affect the pair.
func (d *DiplotypeInferencer) Infer(gene string, records []domain.VariantRecord) domain.Diplotype {
	if len(records) == 0 {
		return domain.WildTypeDiplotype(gene)
	}

	var alleles []string
	for _, r := range records {
		star, ok := d.starAllele(r)
		if !ok {
			continue
		}
		if r.Zygosity == domain.HOMOZYGOUS_ALT {
			return domain.Diplotype{Gene: gene, Allele1: star, Allele2: star, Source: domain.DIPLOTYPE_HOMOZYGOUS}
		}
		alleles = append(alleles, star)
	}

	switch len(alleles) {
	case 0:
		return domain.WildTypeDiplotype(gene)
	case 1:
		return domain.Diplotype{Gene: gene, Allele1: alleles[0], Allele2: domain.WildTypeAllele, Source: domain.DIPLOTYPE_OBSERVED}
	default:
		dip := domain.Diplotype{Gene: gene, Allele1: alleles[0], Allele2: alleles[1], Source: domain.DIPLOTYPE_OBSERVED}
		if len(alleles) > 2 {
			dip.ExtraAlleles = append([]string(nil), alleles[2:]...)
		}
		return dip
	}
}

func (d *DiplotypeInferencer) starAllele(r domain.VariantRecord) (string, bool) {
	if star, ok := r.ResolvedStar(); ok {
		return star, true
	}
	if known, ok := d.kb.LookupRSID(r.RSID); ok && known.StarAllele != "" {
		return known.StarAllele, true
	}
	return "", false
}
