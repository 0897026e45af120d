package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/service"
	"github.com/pharmaguard-mcp-server/pkg/vcf"
)

const (
	PARSE_HINT = "Ensure the file contains variant data lines following the #CHROM header"

	defaultPageSize = 50
	maxPageSize     = 500
)

func (s *Server) handleAnalyze(c *gin.Context) {
	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, s.bindError(err))
		return
	}
	if strings.TrimSpace(req.VCFContent) == "" {
		s.writeError(c, domain.NewValidationError("vcfContent", "vcfContent is required (string)", nil))
		return
	}

	s.runAnalysis(c, req.VCFContent, req.Drugs)
}

// handleUpload accepts a multipart .vcf file in the "vcf" field and drugs as
// repeated or comma separated "drugs" values.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("vcf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, &vcf.SizeError{Size: int(tooLarge.Limit), Limit: int(s.cfg.MaxUploadBytes)})
			return
		}
		s.writeError(c, domain.NewValidationError("vcf", "No file uploaded", nil))
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".vcf") {
		s.writeError(c, domain.NewValidationError("vcf", "Only .vcf files are allowed", file.Filename))
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		s.writeError(c, &vcf.SizeError{Size: int(file.Size), Limit: int(s.cfg.MaxUploadBytes)})
		return
	}

	f, err := file.Open()
	if err != nil {
		s.writeError(c, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		s.writeError(c, fmt.Errorf("reading upload: %w", err))
		return
	}

	s.runAnalysis(c, string(content), splitDrugs(c.PostFormArray("drugs")))
}

func (s *Server) runAnalysis(c *gin.Context, content string, drugs []string) {
	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.analyzer.Analyze(ctx, content, drugs)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.history != nil {
		record := &domain.AnalysisRecord{
			PatientID: report.PatientID,
			RequestID: c.GetString(REQUEST_ID_KEY),
			Drugs:     drugs,
			Report:    report,
		}
		if err := s.history.SaveAnalysis(c.Request.Context(), record); err != nil {
			s.logger.WithError(err).WithField("patient_id", report.PatientID).Warn("Failed to store analysis history")
		} else {
			c.Header("X-Analysis-ID", record.ID)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(REQUEST_ID_KEY),
		"patient_id": report.PatientID,
		"drugs":      report.TotalDrugsAnalyzed,
	}).Info("Analysis completed")

	c.JSON(http.StatusOK, report)
}

type drugSummary struct {
	Drug           string   `json:"drug"`
	PrimaryGene    string   `json:"primary_gene"`
	SecondaryGenes []string `json:"secondary_genes"`
	CPICLevel      string   `json:"cpic_level"`
	CPICGuideline  string   `json:"cpic_guideline"`
}

func (s *Server) handleListDrugs(c *gin.Context) {
	names := s.analyzer.SupportedDrugs()
	drugs := make([]drugSummary, 0, len(names))
	for _, name := range names {
		rule, ok := s.analyzer.Rule(name)
		if !ok {
			continue
		}
		drugs = append(drugs, drugSummary{
			Drug:           rule.Drug,
			PrimaryGene:    rule.PrimaryGene,
			SecondaryGenes: rule.SecondaryGenes,
			CPICLevel:      rule.CPICLevel,
			CPICGuideline:  rule.CPICGuideline,
		})
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs, "count": len(drugs)})
}

func (s *Server) handleGetDrug(c *gin.Context) {
	rule, ok := s.analyzer.Rule(c.Param("drug"))
	if !ok {
		s.writeError(c, fmt.Errorf("drug %q: %w", c.Param("drug"), domain.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if s.feedback == nil {
		s.writeUnavailable(c, "Feedback storage is not configured")
		return
	}

	var fb feedback.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		s.writeError(c, s.bindError(err))
		return
	}
	fb.ID = 0

	if err := s.feedback.Save(c.Request.Context(), &fb); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

// handleQueryFeedback returns one entry when patient_id and drug are given,
// otherwise a page of entries.
func (s *Server) handleQueryFeedback(c *gin.Context) {
	if s.feedback == nil {
		s.writeUnavailable(c, "Feedback storage is not configured")
		return
	}
	ctx := c.Request.Context()

	patientID, drug := c.Query("patient_id"), c.Query("drug")
	if patientID != "" && drug != "" {
		fb, err := s.feedback.Get(ctx, patientID, drug)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if fb == nil {
			s.writeError(c, fmt.Errorf("feedback for %s/%s: %w", patientID, drug, domain.ErrNotFound))
			return
		}
		c.JSON(http.StatusOK, fb)
		return
	}

	limit := queryInt(c, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := s.feedback.List(ctx, limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.feedback.Count(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}
	c.JSON(http.StatusOK, gin.H{"feedback": entries, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleFeedbackStats(c *gin.Context) {
	if s.feedback == nil {
		s.writeUnavailable(c, "Feedback storage is not configured")
		return
	}
	stats, err := s.feedback.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if stats == nil {
		stats = []feedback.DrugStats{}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	if s.history == nil {
		s.writeUnavailable(c, "Analysis history is not configured")
		return
	}
	record, err := s.history.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	if s.history == nil {
		s.writeUnavailable(c, "Analysis history is not configured")
		return
	}
	records, err := s.history.ListByPatient(c.Request.Context(), c.Param("patient_id"), queryInt(c, "limit", 0))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": records, "count": len(records)})
}

// writeError maps an error onto a status code and APIError body.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(REQUEST_ID_KEY)

	var (
		validationErr *domain.ValidationError
		sizeErr       *vcf.SizeError
		parseFailure  *service.ParseFailure
		status        int
		apiErr        *domain.APIError
	)

	switch {
	case errors.As(err, &sizeErr):
		status = http.StatusRequestEntityTooLarge
		apiErr = domain.NewAPIError(domain.ErrPayloadTooLarge, sizeErr.Error(), "", requestID)
	case errors.As(err, &parseFailure):
		status = http.StatusUnprocessableEntity
		apiErr = domain.NewAPIError(domain.ErrVCFParsing, parseFailure.Error(), "", requestID).WithHint(PARSE_HINT)
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrInvalidInput, validationErr.Message, validationErr.Field, requestID)
	case errors.Is(err, feedback.ErrInvalidFeedback):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrValidation, err.Error(), "", requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.ErrResourceNotFound, err.Error(), "", requestID)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		apiErr = domain.NewAPIError(domain.ErrInternalServer, "Analysis timed out", "", requestID)
	default:
		status = http.StatusInternalServerError
		apiErr = domain.NewAPIError(domain.ErrInternalServer, "Internal server error", err.Error(), requestID)
		s.logger.WithError(err).WithField("request_id", requestID).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, apiErr)
}

func (s *Server) writeUnavailable(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable,
		domain.NewAPIError(domain.ErrDatabaseError, msg, "", c.GetString(REQUEST_ID_KEY)))
}

// bindError converts a JSON binding failure into a client error.
func (s *Server) bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &vcf.SizeError{Size: int(tooLarge.Limit), Limit: int(s.cfg.MaxUploadBytes)}
	}
	return domain.NewValidationError("body", "Invalid JSON body: "+err.Error(), nil)
}

func splitDrugs(values []string) []string {
	var drugs []string
	for _, v := range values {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				drugs = append(drugs, d)
			}
		}
	}
	return drugs
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
