package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestStarFunction(t *testing.T) {
	kb := Default()

	tests := []struct {
		gene     string
		star     string
		expected domain.AlleleFunction
		found    bool
	}{
		{"CYP2D6", "*4", domain.NO_FUNCTION, true},
		{"cyp2d6", "*1xN", domain.INCREASED_FUNCTION, true},
		{"CYP2C19", "*17", domain.INCREASED_FUNCTION, true},
		{"CYP2C9", "*2", domain.DECREASED_FUNCTION, true},
		{"SLCO1B1", "*1b", domain.NORMAL_FUNCTION, true},
		{"TPMT", "*3A", domain.NO_FUNCTION, true},
		{"DPYD", "c.2846A>T", domain.DECREASED_FUNCTION, true},
		{"CYP2D6", "*99", "", false},
		{"VKORC1", "-1639G>A", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.gene+tt.star, func(t *testing.T) {
			fn, ok := kb.StarFunction(tt.gene, tt.star)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, fn)
		})
	}
}

func TestLookupRSID(t *testing.T) {
	kb := Default()

	a, ok := kb.LookupRSID("rs3892097")
	require.True(t, ok)
	assert.Equal(t, "CYP2D6", a.Gene)
	assert.Equal(t, "*4", a.StarAllele)
	assert.Equal(t, domain.NO_FUNCTION, a.Function)
	assert.Equal(t, "Loss of function", a.ClinicalSignificance)

	a, ok = kb.LookupRSID("RS9923231")
	require.True(t, ok)
	assert.Equal(t, "VKORC1", a.Gene)

	_, ok = kb.LookupRSID("rs0")
	assert.False(t, ok)
	_, ok = kb.LookupRSID("")
	assert.False(t, ok)
}

func TestKnownVariants_ConsistentWithStarTables(t *testing.T) {
	kb := Default()
	for rsid, a := range knownVariants {
		if a.Gene == "VKORC1" {
			continue
		}
		fn, ok := kb.StarFunction(a.Gene, a.StarAllele)
		if assert.True(t, ok, "%s star allele %s missing from %s table", rsid, a.StarAllele, a.Gene) {
			assert.Equal(t, a.Function, fn, rsid)
		}
	}
}

func TestRule(t *testing.T) {
	kb := Default()

	rule, ok := kb.Rule("  codeine ")
	require.True(t, ok)
	assert.Equal(t, "CYP2D6", rule.PrimaryGene)
	assert.Equal(t, "A", rule.CPICLevel)
	assert.Equal(t, domain.TOXIC, rule.Entry(domain.URM).Risk)
	assert.Equal(t, "CRITICAL — Do not prescribe", rule.Entry(domain.URM).Urgency)

	warfarin, ok := kb.Rule("WARFARIN")
	require.True(t, ok)
	assert.Equal(t, []string{"VKORC1"}, warfarin.SecondaryGenes)

	_, ok = kb.Rule("ASPIRIN")
	assert.False(t, ok)
}

func TestRule_EveryPhenotypeHasEntry(t *testing.T) {
	kb := Default()
	phenotypes := []domain.Phenotype{domain.PM, domain.IM, domain.NM, domain.RM, domain.URM, domain.PHENOTYPE_UNKNOWN}

	for _, drug := range kb.SupportedDrugs() {
		rule, ok := kb.Rule(drug)
		require.True(t, ok, drug)
		for _, p := range phenotypes {
			entry := rule.Entry(p)
			assert.True(t, entry.Risk.IsValid(), "%s/%s risk", drug, p)
			assert.True(t, entry.Severity.IsValid(), "%s/%s severity", drug, p)
			assert.Greater(t, entry.Confidence, 0.0)
			assert.LessOrEqual(t, entry.Confidence, 0.99)
			assert.NotNil(t, entry.Alternatives)
			assert.NotEmpty(t, entry.Dosing)
		}
		assert.Equal(t, domain.RISK_UNKNOWN, rule.Entry(domain.PHENOTYPE_UNKNOWN).Risk)
	}
}

func TestRule_ReturnsCopy(t *testing.T) {
	kb := Default()
	rule, _ := kb.Rule("CLOPIDOGREL")
	rule.PrimaryGene = "MUTATED"

	again, _ := kb.Rule("CLOPIDOGREL")
	assert.Equal(t, "CYP2C19", again.PrimaryGene)
}

func TestSupportedDrugs(t *testing.T) {
	drugs := Default().SupportedDrugs()
	assert.Equal(t, []string{"CODEINE", "WARFARIN", "CLOPIDOGREL", "SIMVASTATIN", "AZATHIOPRINE", "FLUOROURACIL"}, drugs)

	drugs[0] = "CHANGED"
	assert.Equal(t, "CODEINE", Default().SupportedDrugs()[0])
}

func TestGenes(t *testing.T) {
	assert.Equal(t, []string{"CYP2C19", "CYP2C9", "CYP2D6", "DPYD", "SLCO1B1", "TPMT"}, Default().Genes())
}

func TestLegacyPhenotype(t *testing.T) {
	kb := Default()

	p, ok := kb.LegacyPhenotype("*4/*4")
	require.True(t, ok)
	assert.Equal(t, domain.PM, p)

	p, ok = kb.LegacyPhenotype("*5/*1a")
	require.True(t, ok, "reversed order should match")
	assert.Equal(t, domain.IM, p)

	_, ok = kb.LegacyPhenotype("*10/*17")
	assert.False(t, ok)
	_, ok = kb.LegacyPhenotype("Unknown")
	assert.False(t, ok)
}

func TestNormalizeRSID(t *testing.T) {
	assert.Equal(t, "rs123", NormalizeRSID("RS123"))
	assert.Equal(t, "rs123", NormalizeRSID(" rs123 "))
	assert.Equal(t, "COSV1", NormalizeRSID("COSV1"))
	assert.Equal(t, "rs", NormalizeRSID("rs"))
}

func TestMechanism(t *testing.T) {
	m, ok := Default().Mechanism("tpmt")
	require.True(t, ok)
	assert.Contains(t, m, "thiopurine")
	_, ok = Default().Mechanism("VKORC1")
	assert.False(t, ok)
}
