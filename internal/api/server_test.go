package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/feedback"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
	"github.com/pharmaguard-mcp-server/internal/logging"
	"github.com/pharmaguard-mcp-server/internal/metrics"
	"github.com/pharmaguard-mcp-server/internal/service"
)

const codeineVCF = "##fileformat=VCFv4.2\n" +
	"##SAMPLE=<ID=HG00096,Description=\"test\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG00096\n" +
	"chr22\t42130692\trs3892097\tG\tA\t99\tPASS\tGENE=CYP2D6;STAR=*4;RS=3892097\tGT\t1/1\n"

const headerOnlyVCF = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

// memoryHistory is an in-memory domain.AnalysisRepository.
type memoryHistory struct {
	mu      sync.Mutex
	records map[string]*domain.AnalysisRecord
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{records: make(map[string]*domain.AnalysisRecord)}
}

func (h *memoryHistory) SaveAnalysis(_ context.Context, record *domain.AnalysisRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	record.ID = uuid.NewString()
	h.records[record.ID] = record
	return nil
}

func (h *memoryHistory) GetAnalysis(_ context.Context, id string) (*domain.AnalysisRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	record, ok := h.records[id]
	if !ok {
		return nil, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

func (h *memoryHistory) ListByPatient(_ context.Context, patientID string, _ int) ([]*domain.AnalysisRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.AnalysisRecord
	for _, r := range h.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

type testEnv struct {
	server  *Server
	history *memoryHistory
	store   *feedback.SQLiteStore
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T, cfg domain.ServerConfig) *testEnv {
	t.Helper()
	logger := logging.Discard()

	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		history: newMemoryHistory(),
		store:   store,
		metrics: metrics.NewCollector(),
	}
	analyzer := service.NewAnalyzerService(logger, knowledge.Default())
	env.server = NewServer(logger, cfg, analyzer,
		WithFeedbackStore(store),
		WithHistory(env.history),
		WithMetrics(env.metrics),
		WithHealthCheck("feedback", func(ctx context.Context) error {
			_, err := store.Count(ctx)
			return err
		}),
	)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename, content string, drugs ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("vcf", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for _, d := range drugs {
		require.NoError(t, w.WriteField("drugs", d))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["feedback"])
	assert.NotEmpty(t, rec.Header().Get(REQUEST_ID_HEADER))
}

func TestAnalyze_JSON(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/analyze", domain.AnalyzeRequest{
		VCFContent: codeineVCF,
		Drugs:      []string{"codeine", "WARFARIN"},
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, "PATIENT_HG00096", report.PatientID)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "CODEINE", report.Results[0].Drug)
	assert.Equal(t, "*4/*4", report.Results[0].PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.INEFFECTIVE, report.Results[0].RiskAssessment.RiskLabel)

	analysisID := rec.Header().Get("X-Analysis-ID")
	require.NotEmpty(t, analysisID)

	stored := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+analysisID, nil))
	assert.Equal(t, http.StatusOK, stored.Code)

	list := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/patients/PATIENT_HG00096/analyses", nil))
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"count":1`)
}

func TestAnalyze_InputErrors(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	tests := []struct {
		name     string
		body     interface{}
		status   int
		code     string
		contains string
	}{
		{"missing content", domain.AnalyzeRequest{Drugs: []string{"CODEINE"}}, http.StatusBadRequest, domain.ErrInvalidInput, "vcfContent is required"},
		{"missing drugs", domain.AnalyzeRequest{VCFContent: codeineVCF}, http.StatusBadRequest, domain.ErrInvalidInput, "drugs array is required"},
		{"not a vcf", domain.AnalyzeRequest{VCFContent: "hello", Drugs: []string{"CODEINE"}}, http.StatusBadRequest, domain.ErrInvalidInput, "#CHROM"},
		{"no variants", domain.AnalyzeRequest{VCFContent: headerOnlyVCF, Drugs: []string{"CODEINE"}}, http.StatusUnprocessableEntity, domain.ErrVCFParsing, "No variant records"},
		{"bad json", "not-an-object", http.StatusBadRequest, domain.ErrInvalidInput, "Invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/analyze", tt.body))

			assert.Equal(t, tt.status, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.contains)
		})
	}
}

func TestAnalyze_NoVariantsHint(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/analyze", domain.AnalyzeRequest{
		VCFContent: headerOnlyVCF,
		Drugs:      []string{"CODEINE"},
	}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, PARSE_HINT, decodeError(t, rec).Hint)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(uploadRequest(t, "patient.vcf", codeineVCF, "codeine, clopidogrel", "WARFARIN"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.TotalDrugsAnalyzed)
	assert.Equal(t, "CLOPIDOGREL", report.Results[1].Drug)
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{MaxUploadBytes: 256})

	wrongExt := env.do(uploadRequest(t, "patient.txt", codeineVCF, "CODEINE"))
	assert.Equal(t, http.StatusBadRequest, wrongExt.Code)
	assert.Contains(t, decodeError(t, wrongExt).Message, "Only .vcf files")

	big := codeineVCF + strings.Repeat("##padding\n", 40)
	tooLarge := env.do(uploadRequest(t, "patient.vcf", big, "CODEINE"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, tooLarge.Code)
	assert.Equal(t, domain.ErrPayloadTooLarge, decodeError(t, tooLarge).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", strings.NewReader("drugs=CODEINE"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	missing := env.do(req)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Contains(t, decodeError(t, missing).Message, "No file uploaded")
}

func TestDrugs(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/drugs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Drugs []drugSummary `json:"drugs"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, len(knowledge.Default().SupportedDrugs()), body.Count)

	one := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/drugs/warfarin", nil))
	assert.Equal(t, http.StatusOK, one.Code)
	assert.Contains(t, one.Body.String(), `"primary_gene":"CYP2C9"`)

	missing := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/drugs/aspirin", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestFeedback_RoundTrip(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	submit := env.do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"patient_id":     "PATIENT_HG00096",
		"drug":           "codeine",
		"gene":           "CYP2D6",
		"diplotype":      "*4/*4",
		"phenotype":      "PM",
		"suggested_risk": "Ineffective",
		"user_risk":      "Toxic",
		"notes":          "override",
	}))
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())

	get := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/feedback?patient_id=PATIENT_HG00096&drug=CODEINE", nil))
	require.Equal(t, http.StatusOK, get.Code)
	var fb feedback.Feedback
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &fb))
	assert.Equal(t, domain.TOXIC, fb.UserRisk)
	assert.False(t, fb.UserAgreed)

	list := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/feedback?limit=10", nil))
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"total":1`)

	stats := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/feedback/stats", nil))
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Contains(t, stats.Body.String(), `"drug":"CODEINE"`)

	notFound := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/feedback?patient_id=PATIENT_X&drug=CODEINE", nil))
	assert.Equal(t, http.StatusNotFound, notFound.Code)
}

func TestFeedback_Invalid(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"patient_id":     "PATIENT_HG00096",
		"drug":           "CODEINE",
		"suggested_risk": "Maybe",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrValidation, decodeError(t, rec).Code)
}

func TestFeedback_NotConfigured(t *testing.T) {
	server := NewServer(logging.Discard(), domain.ServerConfig{}, service.NewAnalyzerService(logging.Discard(), knowledge.Default()))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/drugs", nil)).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	health := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code, "health is not rate limited")
}

func TestCORSAndRequestID(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{AllowedOrigins: []string{"https://clinic.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set(REQUEST_ID_HEADER, "req-123")
	rec := env.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-123", rec.Header().Get(REQUEST_ID_HEADER))

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.Header.Set("Origin", "https://elsewhere.example")
	assert.Empty(t, env.do(other).Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, domain.ServerConfig{})
	env.do(httptest.NewRequest(http.MethodGet, "/api/v1/drugs", nil))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pharmaguard_http_requests_total{method="GET",route="/api/v1/drugs",status="200"} 1`)
}
