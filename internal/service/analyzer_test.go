package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
)

const vcfHeader = "##fileformat=VCFv4.2\n" +
	"##SAMPLE=<ID=HG00096,Description=\"test\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG00096\n"

func buildVCF(lines ...string) string {
	return vcfHeader + strings.Join(lines, "\n") + "\n"
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAnalyzer(opts ...AnalyzerOption) *AnalyzerService {
	opts = append([]AnalyzerOption{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewAnalyzerService(quietLogger(), knowledge.Default(), opts...)
}

type MockExplainer struct {
	mock.Mock
}

func (m *MockExplainer) Explain(ctx context.Context, result *domain.AnalysisResult) (*domain.Explanation, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Explanation), args.Error(1)
}

type countingRecorder struct {
	mu           sync.Mutex
	parses       int
	drugs        map[string]domain.RiskLabel
	explanations int
}

func (r *countingRecorder) ObserveParse(bool, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parses++
}

func (r *countingRecorder) ObserveDrug(drug string, _ domain.Phenotype, risk domain.RiskLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drugs == nil {
		r.drugs = map[string]domain.RiskLabel{}
	}
	r.drugs[drug] = risk
}

func (r *countingRecorder) ObserveExplanation(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explanations++
}

func TestAnalyze_HomozygousPoorMetabolizer(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*4;RS=3892097\tGT\t1/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"CODEINE"})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, "PATIENT_HG00096", report.PatientID)
	assert.Equal(t, 1, report.TotalDrugsAnalyzed)
	assert.Equal(t, "HG00096", report.VCFMetadata.SampleName)
	assert.Equal(t, []string{"CYP2D6"}, report.VCFMetadata.PharmaGenesDetected)

	result := report.Results[0]
	assert.Equal(t, "CODEINE", result.Drug)
	assert.Equal(t, fixedTime, result.Timestamp)
	assert.Equal(t, "*4/*4", result.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.PM, result.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, domain.INEFFECTIVE, result.RiskAssessment.RiskLabel)
	assert.Equal(t, domain.SEVERITY_MODERATE, result.RiskAssessment.Severity)
	assert.Contains(t, result.ClinicalRecommendation.Urgency, "alternative")
	assert.Contains(t, result.RiskAssessment.RiskFactors, "Homozygous variant(s) detected — compound effect on enzyme activity")

	require.Len(t, result.PharmacogenomicProfile.DetectedVariants, 1)
	dv := result.PharmacogenomicProfile.DetectedVariants[0]
	assert.Equal(t, "rs3892097", dv.RSID)
	assert.Equal(t, "*4", dv.StarAllele)
	assert.Equal(t, domain.HOMOZYGOUS_ALT, dv.Zygosity)
	assert.Equal(t, "Loss of function", dv.ClinicalSignificance)

	assert.True(t, result.QualityMetrics.VCFParsingSuccess)
	assert.True(t, result.QualityMetrics.VCFVersionValid)
	assert.Equal(t, 1, result.QualityMetrics.VariantsForThisDrugGene)
	assert.False(t, result.QualityMetrics.LLMExplanationGenerated)
	assert.Equal(t, domain.AnalysisVersion, result.QualityMetrics.AnalysisVersion)
	assert.Nil(t, result.Explanation)
}

func TestAnalyze_MultiAllelicGenotypeIsHeterozygous(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF(
		"chr22\t42130692\trs3892097\tG\tA,T\t99\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t1/2",
		"chr22\t42126611\trs1065852\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*10\tGT\t0/1",
	)

	report, err := analyzer.Analyze(context.Background(), content, []string{"CODEINE"})
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, "*4/*10", result.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.IM, result.PharmacogenomicProfile.Phenotype)
	require.Len(t, result.PharmacogenomicProfile.DetectedVariants, 2)
	assert.Equal(t, domain.HETEROZYGOUS, result.PharmacogenomicProfile.DetectedVariants[0].Zygosity)
	assert.NotContains(t, result.RiskAssessment.RiskFactors, "Homozygous variant(s) detected — compound effect on enzyme activity")
}

func TestAnalyze_NoPharmacogeneVariants(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF("chr1\t1000\trs111\tA\tG\t50\tPASS\tGENE=BRCA1\tGT\t0/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"WARFARIN"})
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, "CYP2C9", result.PharmacogenomicProfile.PrimaryGene)
	assert.Equal(t, "*1/*1", result.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.NM, result.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, domain.SAFE, result.RiskAssessment.RiskLabel)
	assert.Empty(t, result.PharmacogenomicProfile.DetectedVariants)
	assert.Equal(t, []string{"CYP2C9", "VKORC1"}, result.PharmacogenomicProfile.AllGenesAssessed)
	assert.Empty(t, report.VCFMetadata.PharmaGenesDetected)
}

func TestAnalyze_UnsupportedDrug(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6\tGT\t0/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"ASPIRIN"})
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, "ASPIRIN", result.Drug)
	assert.Equal(t, domain.RISK_UNKNOWN, result.RiskAssessment.RiskLabel)
	assert.LessOrEqual(t, result.RiskAssessment.ConfidenceScore, 0.5)
	assert.Contains(t, result.ClinicalRecommendation.DosingRecommendation, "pharmacist")
	assert.Equal(t, "Unknown", result.PharmacogenomicProfile.PrimaryGene)
	assert.Equal(t, domain.PHENOTYPE_UNKNOWN, result.PharmacogenomicProfile.Phenotype)
	assert.NotNil(t, result.PharmacogenomicProfile.DetectedVariants)
	assert.Equal(t, 0, result.QualityMetrics.VariantsForThisDrugGene)
}

func TestAnalyze_MalformedLineSkipped(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF(
		"chr10\t96541616\trs4244285\tG\tA\t99\tPASS\t.\tGT\t0/1",
		"chr10\t96541617\trs0\tG",
		"chr10\t96522463\trs4986893\tG\tA\t99\tPASS\t.\tGT\t0/0",
	)

	report, err := analyzer.Analyze(context.Background(), content, []string{"CLOPIDOGREL"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.VCFMetadata.TotalVariants)
	result := report.Results[0]
	assert.Equal(t, 2, result.QualityMetrics.TotalVariantsInVCF)
	assert.Equal(t, "CYP2C19", result.PharmacogenomicProfile.PrimaryGene)
	assert.Len(t, result.PharmacogenomicProfile.DetectedVariants, 2)
}

func TestAnalyze_AnnotatesFromKnowledgeBase(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF("chr10\t96541616\trs4244285\tG\tA\t99\tPASS\t.\tGT\t0/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"clopidogrel"})
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, "CLOPIDOGREL", result.Drug)
	assert.Equal(t, "*2/*1", result.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.IM, result.PharmacogenomicProfile.Phenotype)
	require.Len(t, result.PharmacogenomicProfile.DetectedVariants, 1)
	assert.Equal(t, "CYP2C19", result.PharmacogenomicProfile.DetectedVariants[0].Gene)
	assert.Equal(t, "Splice site defect", result.PharmacogenomicProfile.DetectedVariants[0].ClinicalSignificance)
}

func TestAnalyze_SecondaryGeneHomozygous(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF("chr16\t31107689\trs9923231\tC\tT\t99\tPASS\tGENE=VKORC1\tGT\t1/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"WARFARIN"})
	require.NoError(t, err)

	result := report.Results[0]
	assert.Equal(t, "*1/*1", result.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.NM, result.PharmacogenomicProfile.Phenotype)
	require.Len(t, result.PharmacogenomicProfile.DetectedVariants, 1)
	assert.Equal(t, "VKORC1", result.PharmacogenomicProfile.DetectedVariants[0].Gene)
	assert.Equal(t, 1, result.QualityMetrics.VariantsForThisDrugGene)
	assert.Equal(t, []string{"Homozygous variant(s) detected — compound effect on enzyme activity"}, result.RiskAssessment.RiskFactors)
}

func TestAnalyze_PreservesDrugOrder(t *testing.T) {
	analyzer := newTestAnalyzer(WithMaxParallel(2))
	content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t0/1")
	drugs := []string{"FLUOROURACIL", "codeine", "ASPIRIN", "WARFARIN", "SIMVASTATIN", "AZATHIOPRINE", "CLOPIDOGREL"}

	report, err := analyzer.Analyze(context.Background(), content, drugs)
	require.NoError(t, err)
	require.Len(t, report.Results, len(drugs))

	for i, drug := range drugs {
		assert.Equal(t, knowledge.NormalizeDrug(drug), report.Results[i].Drug)
		assert.Equal(t, fixedTime, report.Results[i].Timestamp)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	analyzer := newTestAnalyzer()
	content := buildVCF(
		"chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t0/1",
		"chr22\t42126611\trs1065852\tC\tT\t99\tPASS\tGENE=CYP2D6;STAR=*10\tGT\t0/1",
		"chr12\t21178615\trs4149056\tT\tC\t99\tPASS\tGENE=SLCO1B1;STAR=*5\tGT\t1/1",
	)
	drugs := []string{"CODEINE", "SIMVASTATIN"}

	first, err := analyzer.Analyze(context.Background(), content, drugs)
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(), content, drugs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_ConfidenceModels(t *testing.T) {
	content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t0/1")

	table, err := newTestAnalyzer().Analyze(context.Background(), content, []string{"CODEINE"})
	require.NoError(t, err)
	counted, err := newTestAnalyzer(WithConfidenceModel(domain.CONFIDENCE_VARIANT_COUNT)).Analyze(context.Background(), content, []string{"CODEINE"})
	require.NoError(t, err)

	assert.InDelta(t, 0.82, table.Results[0].RiskAssessment.ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.70, counted.Results[0].RiskAssessment.ConfidenceScore, 1e-9)
	assert.Equal(t, table.Results[0].RiskAssessment.RiskLabel, counted.Results[0].RiskAssessment.RiskLabel)
}

func TestAnalyze_InputErrors(t *testing.T) {
	analyzer := newTestAnalyzer()
	ctx := context.Background()

	t.Run("no drugs", func(t *testing.T) {
		_, err := analyzer.Analyze(ctx, buildVCF(), nil)
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := analyzer.Analyze(ctx, "", []string{"CODEINE"})
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("no variant records", func(t *testing.T) {
		_, err := analyzer.Analyze(ctx, buildVCF(), []string{"CODEINE"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNoVariants))

		var failure *ParseFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, "No variant records found in VCF file.", failure.Error())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6\tGT\t0/1")
		_, err := analyzer.Analyze(cctx, content, []string{"CODEINE"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAnalyze_WithExplainer(t *testing.T) {
	explainer := new(MockExplainer)
	explanation := &domain.Explanation{Summary: "summary", GeneratedBy: "rule-based"}
	explainer.On("Explain", mock.Anything, mock.MatchedBy(func(r *domain.AnalysisResult) bool {
		return r.Drug == "CODEINE"
	})).Return(explanation, nil)
	explainer.On("Explain", mock.Anything, mock.MatchedBy(func(r *domain.AnalysisResult) bool {
		return r.Drug == "WARFARIN"
	})).Return(nil, errors.New("provider unavailable"))

	recorder := &countingRecorder{}
	analyzer := newTestAnalyzer(WithExplainer(explainer), WithRecorder(recorder))
	content := buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6\tGT\t0/1")

	report, err := analyzer.Analyze(context.Background(), content, []string{"CODEINE", "WARFARIN"})
	require.NoError(t, err)

	assert.Equal(t, explanation, report.Results[0].Explanation)
	assert.True(t, report.Results[0].QualityMetrics.LLMExplanationGenerated)
	assert.Nil(t, report.Results[1].Explanation)
	assert.False(t, report.Results[1].QualityMetrics.LLMExplanationGenerated)

	explainer.AssertNumberOfCalls(t, "Explain", 2)
	assert.Equal(t, 1, recorder.parses)
	assert.Equal(t, 2, recorder.explanations)
	assert.Equal(t, domain.SAFE, recorder.drugs["WARFARIN"])
}

func TestParseVCF(t *testing.T) {
	analyzer := newTestAnalyzer()

	parsed, err := analyzer.ParseVCF(buildVCF("chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6\tGT\t0/1"))
	require.NoError(t, err)
	assert.True(t, parsed.Success)
	assert.Equal(t, 1, parsed.VariantCount)

	_, err = newTestAnalyzer(WithMaxContentBytes(10)).ParseVCF(buildVCF())
	assert.Error(t, err)
}

func TestSupportedDrugs(t *testing.T) {
	assert.Equal(t, knowledge.Default().SupportedDrugs(), newTestAnalyzer().SupportedDrugs())
}
