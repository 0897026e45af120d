package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
	"github.com/pharmaguard-mcp-server/pkg/vcf"
)

// Recorder receives analysis measurements. The metrics package provides a
// Prometheus implementation.
type Recorder interface {
	ObserveParse(success bool, variants int, elapsed time.Duration)
	ObserveDrug(drug string, phenotype domain.Phenotype, risk domain.RiskLabel)
	ObserveExplanation(generatedBy string, err error)
}

// ParseFailure is returned when the VCF text yields no usable variant records.
type ParseFailure struct {
	Parsed *domain.ParsedVcf
}

func (e *ParseFailure) Error() string {
	return e.Parsed.ErrorMessage
}

// Unwrap lets callers match the failure with errors.Is(err, domain.ErrNoVariants).
func (e *ParseFailure) Unwrap() error {
	return domain.ErrNoVariants
}

// AnalyzerService runs the VCF to drug risk pipeline: parse, annotate, then per
// drug infer the diplotype, classify the phenotype and apply the drug rule.
type AnalyzerService struct {
	logger      *logrus.Logger
	kb          *knowledge.KnowledgeBase
	parser      *vcf.Parser
	validator   *vcf.Validator
	annotator   *VariantAnnotator
	inferencer  *DiplotypeInferencer
	classifier  *PhenotypeClassifier
	engine      *RiskRuleEngine
	explainer   domain.Explainer
	recorder    Recorder
	clock       func() time.Time
	model       domain.ConfidenceModel
	maxParallel int
}

// AnalyzerOption configures an AnalyzerService.
type AnalyzerOption func(*AnalyzerService)

// WithExplainer attaches an explainer that narrates each result.
func WithExplainer(e domain.Explainer) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.explainer = e
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.recorder = r
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.clock = clock
	}
}

// WithConfidenceModel selects the confidence scoring policy.
func WithConfidenceModel(m domain.ConfidenceModel) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.model = m
	}
}

// WithMaxContentBytes sets the size limit for VCF content.
func WithMaxContentBytes(n int) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.validator = vcf.NewValidator(n)
	}
}

// WithMaxParallel bounds how many drugs are analyzed at once.
func WithMaxParallel(n int) AnalyzerOption {
	return func(s *AnalyzerService) {
		s.maxParallel = n
	}
}

// NewAnalyzerService creates a new analyzer service
func NewAnalyzerService(logger *logrus.Logger, kb *knowledge.KnowledgeBase, opts ...AnalyzerOption) *AnalyzerService {
	s := &AnalyzerService{
		logger:      logger,
		kb:          kb,
		parser:      vcf.NewParser(),
		validator:   vcf.NewValidator(vcf.DefaultMaxContentBytes),
		annotator:   NewVariantAnnotator(kb),
		inferencer:  NewDiplotypeInferencer(kb),
		classifier:  NewPhenotypeClassifier(kb),
		clock:       time.Now,
		model:       domain.CONFIDENCE_RULE_TABLE,
		maxParallel: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewRiskRuleEngine(logger, kb, s.model)
	return s
}

// SupportedDrugs returns the drugs that have pharmacogenomic rules.
func (s *AnalyzerService) SupportedDrugs() []string {
	return s.kb.SupportedDrugs()
}

// Rule returns the drug rule for drug.
func (s *AnalyzerService) Rule(drug string) (*domain.DrugRule, bool) {
	return s.kb.Rule(drug)
}

// ParseVCF validates and parses content. Validation failures are returned as
// errors; parse failures are reported in the result.
func (s *AnalyzerService) ParseVCF(content string) (*domain.ParsedVcf, error) {
	if err := s.validator.Validate(content); err != nil {
		return nil, err
	}

	start := time.Now()
	parsed := s.parser.Parse(content)
	if s.recorder != nil {
		s.recorder.ObserveParse(parsed.Success, parsed.VariantCount, time.Since(start))
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":    parsed.PatientID,
		"success":       parsed.Success,
		"variant_count": parsed.VariantCount,
		"pharm_genes":   parsed.PharmGenes,
	}).Debug("Parsed VCF content")

	return parsed, nil
}

// Analyze runs the full pipeline for every drug in drugs. Results keep the
// caller's drug order.
func (s *AnalyzerService) Analyze(ctx context.Context, vcfContent string, drugs []string) (*domain.AnalysisReport, error) {
	if len(drugs) == 0 {
		return nil, domain.NewValidationError("drugs", "drugs array is required and must not be empty", drugs)
	}

	parsed, err := s.ParseVCF(vcfContent)
	if err != nil {
		return nil, fmt.Errorf("validating VCF content: %w", err)
	}
	if parsed.NoData() {
		return nil, &ParseFailure{Parsed: parsed}
	}

	return s.AnalyzeParsed(ctx, parsed, drugs)
}

// AnalyzeParsed runs the per-drug pipeline over an already parsed file.
func (s *AnalyzerService) AnalyzeParsed(ctx context.Context, parsed *domain.ParsedVcf, drugs []string) (*domain.AnalysisReport, error) {
	start := time.Now()
	timestamp := s.clock().UTC()
	annotated := s.annotator.Annotate(parsed.Variants)

	results := make([]domain.AnalysisResult, len(drugs))
	g, gctx := errgroup.WithContext(ctx)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	for i, drug := range drugs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := s.AnalyzeDrug(parsed, annotated, drug, timestamp)
			s.explain(gctx, &result)
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing drugs: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":      parsed.PatientID,
		"drugs":           len(drugs),
		"variant_count":   parsed.VariantCount,
		"processing_time": time.Since(start),
	}).Info("Pharmacogenomic analysis completed")

	return &domain.AnalysisReport{
		Success:            true,
		PatientID:          parsed.PatientID,
		TotalDrugsAnalyzed: len(results),
		Results:            results,
		VCFMetadata: domain.VCFMetadata{
			SampleName:          parsed.SampleName,
			TotalVariants:       parsed.VariantCount,
			PharmaGenesDetected: copyStrings(parsed.PharmGenes),
		},
	}, nil
}

// AnalyzeDrug computes the result for one drug. It performs no I/O and returns
// identical output for identical input.
func (s *AnalyzerService) AnalyzeDrug(parsed *domain.ParsedVcf, annotated []domain.VariantRecord, drug string, timestamp time.Time) domain.AnalysisResult {
	quality := domain.QualityMetrics{
		VCFParsingSuccess:    parsed.Success,
		VCFVersionValid:      parsed.VersionValid,
		TotalVariantsInVCF:   parsed.VariantCount,
		PharmacogenomicGenes: copyStrings(parsed.PharmGenes),
		AnalysisVersion:      domain.AnalysisVersion,
	}

	rule, ok := s.engine.Rule(drug)
	if !ok {
		outcome := s.engine.Evaluate(drug, domain.PHENOTYPE_UNKNOWN, GeneEvidence{})
		s.observeDrug(outcome.Drug, domain.PHENOTYPE_UNKNOWN, outcome.Assessment.RiskLabel)
		return domain.AnalysisResult{
			PatientID:      parsed.PatientID,
			Drug:           outcome.Drug,
			Timestamp:      timestamp,
			RiskAssessment: outcome.Assessment,
			PharmacogenomicProfile: domain.PharmacogenomicProfile{
				PrimaryGene:      "Unknown",
				Diplotype:        "Unknown",
				Phenotype:        domain.PHENOTYPE_UNKNOWN,
				DetectedVariants: []domain.DetectedVariant{},
				AllGenesAssessed: []string{},
			},
			ClinicalRecommendation: outcome.Recommendation,
			QualityMetrics:         quality,
		}
	}

	primary := s.inferencer.VariantsForGene(annotated, rule.PrimaryGene)
	var secondary []domain.VariantRecord
	for _, gene := range rule.SecondaryGenes {
		secondary = append(secondary, s.inferencer.VariantsForGene(annotated, gene)...)
	}

	diplotype := s.inferencer.Infer(rule.PrimaryGene, primary)
	call := s.classifier.Classify(diplotype)
	detected := s.detectedVariants(rule.PrimaryGene, primary, secondary)

	evidence := GeneEvidence{Gene: rule.PrimaryGene, PrimaryVariants: len(primary)}
	for _, v := range detected {
		if v.Zygosity == domain.HOMOZYGOUS_ALT {
			evidence.AnyHomozygousAlt = true
			break
		}
	}
	outcome := s.engine.Evaluate(drug, call.Phenotype, evidence)

	if diplotype.Truncated() {
		s.logger.WithFields(logrus.Fields{
			"gene":          rule.PrimaryGene,
			"diplotype":     diplotype.String(),
			"extra_alleles": diplotype.ExtraAlleles,
		}).Debug("More than two alleles observed; using the first two")
	}
	s.observeDrug(outcome.Drug, call.Phenotype, outcome.Assessment.RiskLabel)

	quality.VariantsForThisDrugGene = len(detected)
	return domain.AnalysisResult{
		PatientID:      parsed.PatientID,
		Drug:           outcome.Drug,
		Timestamp:      timestamp,
		RiskAssessment: outcome.Assessment,
		PharmacogenomicProfile: domain.PharmacogenomicProfile{
			PrimaryGene:      rule.PrimaryGene,
			Diplotype:        diplotype.String(),
			Phenotype:        call.Phenotype,
			DetectedVariants: detected,
			AllGenesAssessed: rule.AssessedGenes(),
		},
		ClinicalRecommendation: outcome.Recommendation,
		QualityMetrics:         quality,
	}
}

func (s *AnalyzerService) detectedVariants(gene string, primary, secondary []domain.VariantRecord) []domain.DetectedVariant {
	detected := make([]domain.DetectedVariant, 0, len(primary)+len(secondary))
	for _, group := range [][]domain.VariantRecord{primary, secondary} {
		for _, v := range group {
			dv := domain.DetectedVariant{
				RSID:                 v.Identifier(),
				Gene:                 v.Gene,
				StarAllele:           v.StarAllele,
				Chromosome:           v.Chromosome,
				Position:             v.Position,
				Ref:                  v.Reference,
				Alt:                  v.Alternate,
				Zygosity:             v.Zygosity,
				ClinicalSignificance: v.ClinicalSignificance,
			}
			if dv.Gene == "" {
				dv.Gene = gene
			}
			if dv.StarAllele == "" {
				dv.StarAllele = "."
			}
			if dv.ClinicalSignificance == "" {
				dv.ClinicalSignificance = knowledge.UncertainSignificance
			}
			detected = append(detected, dv)
		}
	}
	return detected
}

func (s *AnalyzerService) explain(ctx context.Context, result *domain.AnalysisResult) {
	if s.explainer == nil {
		return
	}

	explanation, err := s.explainer.Explain(ctx, result)
	if s.recorder != nil {
		generatedBy := ""
		if explanation != nil {
			generatedBy = explanation.GeneratedBy
		}
		s.recorder.ObserveExplanation(generatedBy, err)
	}
	if err != nil {
		s.logger.WithError(err).WithField("drug", result.Drug).Warn("Failed to generate explanation")
		return
	}

	result.Explanation = explanation
	result.QualityMetrics.LLMExplanationGenerated = explanation != nil
}

func (s *AnalyzerService) observeDrug(drug string, phenotype domain.Phenotype, risk domain.RiskLabel) {
	if s.recorder != nil {
		s.recorder.ObserveDrug(drug, phenotype, risk)
	}
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
