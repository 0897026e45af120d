package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// DEFAULT_LIST_LIMIT applies when ListByPatient is called with limit <= 0.
const DEFAULT_LIST_LIMIT = 20

// AnalysisRepository stores analysis reports in PostgreSQL.
type AnalysisRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

var _ domain.AnalysisRepository = (*AnalysisRepository)(nil)

func NewAnalysisRepository(db *pgxpool.Pool, logger *logrus.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:  db,
		log: logger,
	}
}

// SaveAnalysis inserts a record, assigning an ID and timestamp when missing.
func (r *AnalysisRepository) SaveAnalysis(ctx context.Context, record *domain.AnalysisRecord) error {
	if record.Report == nil {
		return domain.NewValidationError("report", "report is required", nil)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.PatientID == "" {
		record.PatientID = record.Report.PatientID
	}
	if record.Drugs == nil {
		record.Drugs = []string{}
	}

	report, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	query := `
		INSERT INTO analyses (id, patient_id, request_id, drugs, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.PatientID,
		record.RequestID,
		record.Drugs,
		report,
		record.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"analysis_id": record.ID,
			"patient_id":  record.PatientID,
			"error":       err,
		}).Error("Failed to save analysis")
		return fmt.Errorf("saving analysis: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"analysis_id": record.ID,
		"patient_id":  record.PatientID,
		"drugs":       len(record.Drugs),
	}).Debug("Analysis saved")
	return nil
}

// GetAnalysis returns the record with id, or an error wrapping domain.ErrNotFound.
func (r *AnalysisRepository) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}

	query := `
		SELECT id, patient_id, request_id, drugs, report, created_at
		FROM analyses
		WHERE id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	return record, nil
}

// ListByPatient returns a patient's analyses, newest first.
func (r *AnalysisRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = DEFAULT_LIST_LIMIT
	}

	query := `
		SELECT id, patient_id, request_id, drugs, report, created_at
		FROM analyses
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	records := []*domain.AnalysisRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.AnalysisRecord, error) {
	var record domain.AnalysisRecord
	var id uuid.UUID
	var report []byte

	if err := row.Scan(&id, &record.PatientID, &record.RequestID, &record.Drugs, &report, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.ID = id.String()

	record.Report = &domain.AnalysisReport{}
	if err := json.Unmarshal(report, record.Report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &record, nil
}
