package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

func record(rsid, gene, star string, z domain.Zygosity) domain.VariantRecord {
	return domain.VariantRecord{
		Chromosome: "chr22",
		Position:   42130692,
		ID:         rsid,
		RSID:       rsid,
		Reference:  "G",
		Alternate:  "A",
		Gene:       gene,
		StarAllele: star,
		Zygosity:   z,
	}
}

func TestVariantAnnotator_Annotate(t *testing.T) {
	annotator := NewVariantAnnotator(knowledge.Default())

	in := []domain.VariantRecord{
		record("rs3892097", "", "", domain.HETEROZYGOUS),
		record("rs3892097", "CYP2D6", "*41", domain.HETEROZYGOUS),
		record("rs999999", "CYP2D6", "*4", domain.HETEROZYGOUS),
		record("", "", "", domain.HETEROZYGOUS),
	}
	out := annotator.Annotate(in)
	require.Len(t, out, 4)

	t.Run("fills missing fields from knowledge base", func(t *testing.T) {
		assert.Equal(t, "CYP2D6", out[0].Gene)
		assert.Equal(t, "*4", out[0].StarAllele)
		assert.Equal(t, "Loss of function", out[0].ClinicalSignificance)
	})

	t.Run("explicit star wins", func(t *testing.T) {
		assert.Equal(t, "*41", out[1].StarAllele)
	})

	t.Run("unknown rsid keeps explicit values", func(t *testing.T) {
		assert.Equal(t, "CYP2D6", out[2].Gene)
		assert.Equal(t, "*4", out[2].StarAllele)
		assert.Equal(t, knowledge.UncertainSignificance, out[2].ClinicalSignificance)
	})

	t.Run("unannotated record", func(t *testing.T) {
		assert.Empty(t, out[3].Gene)
		assert.Equal(t, knowledge.UncertainSignificance, out[3].ClinicalSignificance)
	})

	t.Run("input not mutated", func(t *testing.T) {
		assert.Empty(t, in[0].Gene)
		assert.Empty(t, in[0].ClinicalSignificance)
	})
}

func TestDiplotypeInferencer_VariantsForGene(t *testing.T) {
	inferencer := NewDiplotypeInferencer(knowledge.Default())

	records := []domain.VariantRecord{
		record("rs3892097", "", "", domain.HETEROZYGOUS),
		record("rs1", "cyp2d6", "*10", domain.HETEROZYGOUS),
		record("rs4244285", "CYP2C19", "*2", domain.HETEROZYGOUS),
	}

	matched := inferencer.VariantsForGene(records, "CYP2D6")
	require.Len(t, matched, 2)
	assert.Equal(t, "rs3892097", matched[0].RSID)
	assert.Equal(t, "rs1", matched[1].RSID)

	assert.Empty(t, inferencer.VariantsForGene(records, "TPMT"))
	assert.NotNil(t, inferencer.VariantsForGene(nil, "TPMT"))
}

func TestDiplotypeInferencer_Infer(t *testing.T) {
	inferencer := NewDiplotypeInferencer(knowledge.Default())

	tests := []struct {
		name     string
		records  []domain.VariantRecord
		expected string
		source   domain.DiplotypeSource
		extra    []string
	}{
		{
			name:     "no records",
			expected: "*1/*1",
			source:   domain.DIPLOTYPE_WILD_TYPE,
		},
		{
			name:     "homozygous alt",
			records:  []domain.VariantRecord{record("rs3892097", "CYP2D6", "*4", domain.HOMOZYGOUS_ALT)},
			expected: "*4/*4",
			source:   domain.DIPLOTYPE_HOMOZYGOUS,
		},
		{
			name:     "single heterozygous",
			records:  []domain.VariantRecord{record("rs3892097", "CYP2D6", "*4", domain.HETEROZYGOUS)},
			expected: "*4/*1",
			source:   domain.DIPLOTYPE_OBSERVED,
		},
		{
			name: "two heterozygous",
			records: []domain.VariantRecord{
				record("rs3892097", "CYP2D6", "*4", domain.HETEROZYGOUS),
				record("rs1065852", "CYP2D6", "*10", domain.HETEROZYGOUS),
			},
			expected: "*4/*10",
			source:   domain.DIPLOTYPE_OBSERVED,
		},
		{
			name: "homozygous wins over earlier heterozygous",
			records: []domain.VariantRecord{
				record("rs1065852", "CYP2D6", "*10", domain.HETEROZYGOUS),
				record("rs3892097", "CYP2D6", "*4", domain.HOMOZYGOUS_ALT),
			},
			expected: "*4/*4",
			source:   domain.DIPLOTYPE_HOMOZYGOUS,
		},
		{
			name: "more than two alleles truncated",
			records: []domain.VariantRecord{
				record("rs3892097", "CYP2D6", "*4", domain.HETEROZYGOUS),
				record("rs1065852", "CYP2D6", "*10", domain.HETEROZYGOUS),
				record("rs28371725", "CYP2D6", "*41", domain.HETEROZYGOUS),
			},
			expected: "*4/*10",
			source:   domain.DIPLOTYPE_OBSERVED,
			extra:    []string{"*41"},
		},
		{
			name:     "star resolved from knowledge base",
			records:  []domain.VariantRecord{record("rs3892097", "CYP2D6", ".", domain.HETEROZYGOUS)},
			expected: "*4/*1",
			source:   domain.DIPLOTYPE_OBSERVED,
		},
		{
			name:     "unresolvable allele ignored",
			records:  []domain.VariantRecord{record("rs424242", "CYP2D6", "", domain.HOMOZYGOUS_ALT)},
			expected: "*1/*1",
			source:   domain.DIPLOTYPE_WILD_TYPE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := inferencer.Infer("CYP2D6", tt.records)
			assert.Equal(t, tt.expected, d.String())
			assert.Equal(t, tt.source, d.Source)
			assert.Equal(t, "CYP2D6", d.Gene)
			assert.Equal(t, tt.extra, d.ExtraAlleles)
		})
	}
}

func TestPhenotypeClassifier_Classify(t *testing.T) {
	classifier := NewPhenotypeClassifier(knowledge.Default())

	tests := []struct {
		gene     string
		a1, a2   string
		expected domain.Phenotype
		score    float64
	}{
		{"CYP2D6", "*4", "*4", domain.PM, 0},
		{"CYP2D6", "*4", "*10", domain.IM, 0.5},
		{"CYP2D6", "*4", "*1", domain.IM, 1},
		{"CYP2D6", "*10", "*10", domain.IM, 1},
		{"CYP2D6", "*10", "*1", domain.NM, 1.5},
		{"CYP2D6", "*1", "*1", domain.NM, 2},
		{"CYP2D6", "*1xN", "*1", domain.URM, 3},
		{"CYP2C19", "*17", "*17", domain.URM, 4},
		{"CYP2C19", "*2", "*17", domain.NM, 2},
		{"CYP2D6", "*999", "*1", domain.NM, 2},
	}

	for _, tt := range tests {
		t.Run(tt.gene+tt.a1+tt.a2, func(t *testing.T) {
			call := classifier.Classify(domain.Diplotype{Gene: tt.gene, Allele1: tt.a1, Allele2: tt.a2, Source: domain.DIPLOTYPE_OBSERVED})
			assert.Equal(t, tt.expected, call.Phenotype)
			assert.InDelta(t, tt.score, call.Score, 1e-9)
			assert.True(t, call.Scored)
		})
	}
}

func TestPhenotypeClassifier_Symmetric(t *testing.T) {
	classifier := NewPhenotypeClassifier(knowledge.Default())
	alleles := []string{"*1", "*2", "*3", "*4", "*5", "*6", "*9", "*10", "*17", "*41", "*1xN", "*2xN"}

	for _, gene := range []string{"CYP2D6", "CYP2C19", "CYP2C9"} {
		for _, a := range alleles {
			for _, b := range alleles {
				ab := classifier.Classify(domain.Diplotype{Gene: gene, Allele1: a, Allele2: b, Source: domain.DIPLOTYPE_OBSERVED})
				ba := classifier.Classify(domain.Diplotype{Gene: gene, Allele1: b, Allele2: a, Source: domain.DIPLOTYPE_OBSERVED})
				assert.Equal(t, ab, ba, "%s %s/%s", gene, a, b)
				assert.NotEqual(t, domain.RM, ab.Phenotype)
			}
		}
	}
}

func TestPhenotypeClassifier_Unknown(t *testing.T) {
	classifier := NewPhenotypeClassifier(knowledge.Default())

	call := classifier.Classify(domain.UnknownDiplotype("CYP2D6"))
	assert.Equal(t, domain.PHENOTYPE_UNKNOWN, call.Phenotype)
	assert.False(t, call.Scored)

	call = classifier.Classify(domain.WildTypeDiplotype("TPMT"))
	assert.Equal(t, domain.NM, call.Phenotype)
}

func TestPhenotypeClassifier_ScoringDiffersFromLegacy(t *testing.T) {
	classifier := NewPhenotypeClassifier(knowledge.Default())
	d := domain.Diplotype{Gene: "CYP2D6", Allele1: "*2", Allele2: "*2", Source: domain.DIPLOTYPE_OBSERVED}

	assert.Equal(t, domain.NM, classifier.Classify(d).Phenotype)

	legacy := classifier.ClassifyLegacy(d)
	assert.NotEqual(t, domain.NM, legacy.Phenotype)
	assert.False(t, legacy.Scored)
}

func TestPhenotypeClassifier_ClassifyLegacy(t *testing.T) {
	classifier := NewPhenotypeClassifier(knowledge.Default())

	call := classifier.ClassifyLegacy(domain.Diplotype{Gene: "CYP2D6", Allele1: "*4", Allele2: "*4", Source: domain.DIPLOTYPE_HOMOZYGOUS})
	assert.Equal(t, domain.PM, call.Phenotype)

	call = classifier.ClassifyLegacy(domain.UnknownDiplotype("CYP2D6"))
	assert.Equal(t, domain.PHENOTYPE_UNKNOWN, call.Phenotype)
}

func TestAlleleScore(t *testing.T) {
	assert.Equal(t, 0.0, AlleleScore(domain.NO_FUNCTION))
	assert.Equal(t, 0.5, AlleleScore(domain.DECREASED_FUNCTION))
	assert.Equal(t, 1.0, AlleleScore(domain.NORMAL_FUNCTION))
	assert.Equal(t, 2.0, AlleleScore(domain.INCREASED_FUNCTION))
	assert.Equal(t, 1.0, AlleleScore(""))
}
