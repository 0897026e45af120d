package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/service"
)

// Tool names
const (
	TOOL_ANALYZE_VCF     = "analyze_vcf"
	TOOL_PARSE_VCF       = "parse_vcf"
	TOOL_LIST_DRUGS      = "list_supported_drugs"
	TOOL_SUBMIT_FEEDBACK = "submit_feedback"
	TOOL_QUERY_FEEDBACK  = "query_feedback"
	TOOL_EXPORT_FEEDBACK = "export_feedback"
	TOOL_IMPORT_FEEDBACK = "import_feedback"
)

const (
	defaultFeedbackLimit = 50
	maxFeedbackLimit     = 500
)

var toolOrder = []string{
	TOOL_ANALYZE_VCF,
	TOOL_PARSE_VCF,
	TOOL_LIST_DRUGS,
	TOOL_SUBMIT_FEEDBACK,
	TOOL_QUERY_FEEDBACK,
	TOOL_EXPORT_FEEDBACK,
	TOOL_IMPORT_FEEDBACK,
}

// ErrUnknownTool is returned by CallTool for names that were never registered.
var ErrUnknownTool = errors.New("unknown tool")

// AnalyzeVCFParams defines parameters for the analyze_vcf tool
type AnalyzeVCFParams struct {
	VCFContent string   `json:"vcf_content" jsonschema:"Complete VCF v4.x file content"`
	Drugs      []string `json:"drugs" jsonschema:"Drug names to assess, e.g. CODEINE, WARFARIN"`
}

// ParseVCFParams defines parameters for the parse_vcf tool
type ParseVCFParams struct {
	VCFContent      string `json:"vcf_content" jsonschema:"Complete VCF v4.x file content"`
	IncludeVariants bool   `json:"include_variants,omitempty" jsonschema:"Include the parsed variant records"`
}

// ListDrugsParams defines parameters for the list_supported_drugs tool
type ListDrugsParams struct{}

// SubmitFeedbackParams defines parameters for the submit_feedback tool
type SubmitFeedbackParams struct {
	PatientID     string           `json:"patient_id"`
	Drug          string           `json:"drug"`
	Gene          string           `json:"gene,omitempty"`
	Diplotype     string           `json:"diplotype,omitempty"`
	Phenotype     domain.Phenotype `json:"phenotype,omitempty"`
	SuggestedRisk domain.RiskLabel `json:"suggested_risk"`
	UserRisk      domain.RiskLabel `json:"user_risk,omitempty" jsonschema:"Omit to accept the suggested risk"`
	Notes         string           `json:"notes,omitempty"`
}

// QueryFeedbackParams defines parameters for the query_feedback tool
type QueryFeedbackParams struct {
	PatientID string `json:"patient_id,omitempty"`
	Drug      string `json:"drug,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	Stats     bool   `json:"stats,omitempty" jsonschema:"Return per-drug agreement statistics"`
}

// ExportFeedbackParams defines parameters for the export_feedback tool
type ExportFeedbackParams struct {
	Filename string `json:"filename,omitempty" jsonschema:"Optional file name; defaults to a timestamped name"`
}

// ImportFeedbackParams defines parameters for the import_feedback tool
type ImportFeedbackParams struct {
	Filename string `json:"filename" jsonschema:"Name of a JSON export in the export directory"`
}

type tool struct {
	def  *mcp.Tool
	call func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult
}

func (s *LiteServer) registerTools() error {
	if err := addTool(s, &mcp.Tool{
		Name: TOOL_ANALYZE_VCF,
		Description: "Run the pharmacogenomic pipeline on VCF text and return a risk assessment, " +
			"dosing recommendation and explanation for each drug.",
	}, s.analyzeVCF); err != nil {
		return err
	}

	if err := addTool(s, &mcp.Tool{
		Name:        TOOL_PARSE_VCF,
		Description: "Parse VCF text and report the sample, pharmacogenes and variant count without running inference.",
	}, s.parseVCF); err != nil {
		return err
	}

	if err := addTool(s, &mcp.Tool{
		Name:        TOOL_LIST_DRUGS,
		Description: "List the drugs with pharmacogenomic rules and their genes and CPIC levels.",
	}, s.listDrugs); err != nil {
		return err
	}

	if err := addTool(s, &mcp.Tool{
		Name:        TOOL_SUBMIT_FEEDBACK,
		Description: "Record a clinician's agreement with, or override of, the risk called for a patient and drug.",
	}, s.submitFeedback, func(schema *jsonschema.Schema) {
		setEnum(schema, "phenotype", enumOf(domain.PM, domain.IM, domain.NM, domain.RM, domain.URM, domain.PHENOTYPE_UNKNOWN))
		setEnum(schema, "suggested_risk", riskEnum())
		setEnum(schema, "user_risk", riskEnum())
	}); err != nil {
		return err
	}

	if err := addTool(s, &mcp.Tool{
		Name:        TOOL_QUERY_FEEDBACK,
		Description: "Look up feedback for a patient and drug, list recent feedback, or summarize agreement per drug.",
	}, s.queryFeedback); err != nil {
		return err
	}

	if err := addTool(s, &mcp.Tool{
		Name:        TOOL_EXPORT_FEEDBACK,
		Description: "Export all saved feedback to a JSON file in the export directory.",
	}, s.exportFeedback); err != nil {
		return err
	}

	return addTool(s, &mcp.Tool{
		Name:        TOOL_IMPORT_FEEDBACK,
		Description: "Import feedback from a JSON export in the export directory. Existing entries are kept.",
	}, s.importFeedback)
}

// addTool infers the input schema from In and registers a typed handler with
// the SDK. The same handler backs CallTool.
func addTool[In any](s *LiteServer, def *mcp.Tool, run func(context.Context, In) (any, error), patches ...func(*jsonschema.Schema)) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("inferring %s input schema: %w", def.Name, err)
	}
	for _, patch := range patches {
		patch(schema)
	}
	def.InputSchema = schema

	var handler mcp.ToolHandlerFor[In, any] = func(ctx context.Context, _ *mcp.CallToolRequest, params In) (*mcp.CallToolResult, any, error) {
		return s.invoke(ctx, def.Name, func() (any, error) { return run(ctx, params) }), nil, nil
	}
	mcp.AddTool(s.mcpServer, def, handler)

	s.tools[def.Name] = &tool{
		def: def,
		call: func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
			var params In
			if err := decodeArgs(args, &params); err != nil {
				return errorResult(err)
			}
			result, _, _ := handler(ctx, nil, params)
			return result
		},
	}
	s.logger.WithField("tool_name", def.Name).Debug("Registered tool")
	return nil
}

// CallTool runs a registered tool directly, bypassing the transport.
func (s *LiteServer) CallTool(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.call(ctx, args), nil
}

// invoke turns tool failures into error results so the client sees them.
func (s *LiteServer) invoke(ctx context.Context, name string, run func() (any, error)) *mcp.CallToolResult {
	start := time.Now()
	out, err := run()
	entry := s.logger.WithFields(logrus.Fields{
		"tool_name":  name,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("Tool call failed")
		return errorResult(err)
	}
	entry.Debug("Tool call completed")

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	var failure *service.ParseFailure
	if errors.As(err, &failure) {
		msg += ". Ensure the file contains variant data lines following the #CHROM header"
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return domain.NewValidationError("arguments", "invalid arguments: "+err.Error(), nil)
	}
	return nil
}

func (s *LiteServer) analyzeVCF(ctx context.Context, args AnalyzeVCFParams) (any, error) {
	if strings.TrimSpace(args.VCFContent) == "" {
		return nil, domain.NewValidationError("vcf_content", "vcf_content is required", nil)
	}
	return s.analyzer.Analyze(ctx, args.VCFContent, args.Drugs)
}

type parseSummary struct {
	PatientID    string                 `json:"patient_id"`
	SampleName   string                 `json:"sample_name"`
	Success      bool                   `json:"parse_success"`
	VariantCount int                    `json:"variant_count"`
	PharmGenes   []string               `json:"pharm_genes"`
	FileFormat   string                 `json:"file_format,omitempty"`
	VersionValid bool                   `json:"vcf_version_valid"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Variants     []domain.VariantRecord `json:"variants,omitempty"`
}

func (s *LiteServer) parseVCF(_ context.Context, args ParseVCFParams) (any, error) {
	if strings.TrimSpace(args.VCFContent) == "" {
		return nil, domain.NewValidationError("vcf_content", "vcf_content is required", nil)
	}

	parsed, err := s.analyzer.ParseVCF(args.VCFContent)
	if err != nil {
		return nil, fmt.Errorf("validating VCF content: %w", err)
	}

	summary := parseSummary{
		PatientID:    parsed.PatientID,
		SampleName:   parsed.SampleName,
		Success:      parsed.Success,
		VariantCount: parsed.VariantCount,
		PharmGenes:   parsed.PharmGenes,
		FileFormat:   parsed.FileFormat,
		VersionValid: parsed.VersionValid,
		ErrorMessage: parsed.ErrorMessage,
	}
	if args.IncludeVariants {
		summary.Variants = parsed.Variants
	}
	return summary, nil
}

type drugInfo struct {
	Drug           string   `json:"drug"`
	PrimaryGene    string   `json:"primary_gene"`
	SecondaryGenes []string `json:"secondary_genes,omitempty"`
	CPICLevel      string   `json:"cpic_level"`
}

func (s *LiteServer) listDrugs(_ context.Context, _ ListDrugsParams) (any, error) {
	names := s.analyzer.SupportedDrugs()
	drugs := make([]drugInfo, 0, len(names))
	for _, name := range names {
		rule, ok := s.analyzer.Rule(name)
		if !ok {
			continue
		}
		drugs = append(drugs, drugInfo{
			Drug:           rule.Drug,
			PrimaryGene:    rule.PrimaryGene,
			SecondaryGenes: rule.SecondaryGenes,
			CPICLevel:      rule.CPICLevel,
		})
	}
	return map[string]any{"drugs": drugs, "count": len(drugs)}, nil
}

func (s *LiteServer) submitFeedback(ctx context.Context, args SubmitFeedbackParams) (any, error) {
	fb := feedback.Feedback{
		PatientID:     args.PatientID,
		Drug:          args.Drug,
		Gene:          args.Gene,
		Diplotype:     args.Diplotype,
		Phenotype:     args.Phenotype,
		SuggestedRisk: args.SuggestedRisk,
		UserRisk:      args.UserRisk,
		Notes:         args.Notes,
	}
	if err := s.feedbackStore.Save(ctx, &fb); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "feedback": &fb}, nil
}

func (s *LiteServer) queryFeedback(ctx context.Context, args QueryFeedbackParams) (any, error) {

	if args.Stats {
		stats, err := s.feedbackStore.Stats(ctx)
		if err != nil {
			return nil, err
		}
		if stats == nil {
			stats = []feedback.DrugStats{}
		}
		return map[string]any{"stats": stats}, nil
	}

	if args.PatientID != "" && args.Drug != "" {
		fb, err := s.feedbackStore.Get(ctx, args.PatientID, args.Drug)
		if err != nil {
			return nil, err
		}
		return map[string]any{"found": fb != nil, "feedback": fb}, nil
	}

	if args.Limit <= 0 || args.Limit > maxFeedbackLimit {
		args.Limit = defaultFeedbackLimit
	}
	if args.Offset < 0 {
		args.Offset = 0
	}
	entries, err := s.feedbackStore.List(ctx, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}
	total, err := s.feedbackStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}
	return map[string]any{"feedback": entries, "total": total, "limit": args.Limit, "offset": args.Offset}, nil
}

type exportResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

func (s *LiteServer) exportFeedback(ctx context.Context, args ExportFeedbackParams) (any, error) {

	filename := args.Filename
	if filename == "" {
		filename = fmt.Sprintf("feedback_export_%s.json", time.Now().Format("20060102_150405"))
	}
	filePath, err := s.exportPath(filename)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.config.ExportDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	if err := s.feedbackStore.ExportJSON(ctx, file); err != nil {
		return nil, fmt.Errorf("exporting feedback: %w", err)
	}

	count, err := s.feedbackStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	return exportResult{
		Success:  true,
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d feedback entries to %s", count, filePath),
	}, nil
}

type importResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

func (s *LiteServer) importFeedback(ctx context.Context, args ImportFeedbackParams) (any, error) {
	if args.Filename == "" {
		return nil, domain.NewValidationError("filename", "filename is required", nil)
	}
	filePath, err := s.exportPath(args.Filename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer file.Close()

	imported, skipped, err := s.feedbackStore.ImportJSON(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("importing feedback: %w", err)
	}
	return importResult{
		Success:  true,
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d entries, skipped %d existing", imported, skipped),
	}, nil
}

// exportPath confines file names to the export directory.
func (s *LiteServer) exportPath(filename string) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base != filename {
		return "", domain.NewValidationError("filename", "filename must not contain a directory", filename)
	}
	if !strings.EqualFold(filepath.Ext(base), ".json") {
		base += ".json"
	}
	return filepath.Join(s.config.ExportDir(), base), nil
}

func setEnum(schema *jsonschema.Schema, property string, values []any) {
	if prop, ok := schema.Properties[property]; ok {
		prop.Enum = values
	}
}

func riskEnum() []any {
	return enumOf(domain.SAFE, domain.ADJUST_DOSAGE, domain.TOXIC, domain.INEFFECTIVE, domain.RISK_UNKNOWN)
}

func enumOf[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
