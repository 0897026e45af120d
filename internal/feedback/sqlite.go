package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

const feedbackColumns = `id, patient_id, drug, gene, diplotype, phenotype,
	suggested_risk, user_risk, user_agreed, notes, created_at, updated_at`

// SQLiteStore implements Store on an embedded SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the database at dbPath and its schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent tool calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var phenotype, suggested, user string

	err := s.Scan(
		&fb.ID, &fb.PatientID, &fb.Drug, &fb.Gene, &fb.Diplotype, &phenotype,
		&suggested, &user, &fb.UserAgreed, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.Phenotype = domain.Phenotype(phenotype)
	fb.SuggestedRisk = domain.RiskLabel(suggested)
	fb.UserRisk = domain.RiskLabel(user)
	return fb, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		drug TEXT NOT NULL,
		gene TEXT DEFAULT '',
		diplotype TEXT DEFAULT '',
		phenotype TEXT DEFAULT '',
		suggested_risk TEXT NOT NULL,
		user_risk TEXT NOT NULL,
		user_agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(patient_id, drug)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_drug ON feedback(drug);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save inserts feedback or updates the existing entry for (patient_id, drug).
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	feedback.Normalize()
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM feedback WHERE patient_id = ? AND drug = ?",
		feedback.PatientID, feedback.Drug,
	).Scan(&existingID, &createdAt)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE feedback SET
				gene = ?, diplotype = ?, phenotype = ?,
				suggested_risk = ?, user_risk = ?, user_agreed = ?,
				notes = ?, updated_at = ?
			WHERE id = ?
		`,
			feedback.Gene, feedback.Diplotype, string(feedback.Phenotype),
			string(feedback.SuggestedRisk), string(feedback.UserRisk), feedback.UserAgreed,
			feedback.Notes, now, existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		feedback.ID = existingID
		feedback.CreatedAt = createdAt
		feedback.UpdatedAt = now
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = now
	}
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			patient_id, drug, gene, diplotype, phenotype,
			suggested_risk, user_risk, user_agreed, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.PatientID, feedback.Drug, feedback.Gene, feedback.Diplotype, string(feedback.Phenotype),
		string(feedback.SuggestedRisk), string(feedback.UserRisk), feedback.UserAgreed,
		feedback.Notes, feedback.CreatedAt, feedback.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id
	return nil
}

// Get returns the entry for patientID and drug, or nil when none exists.
func (s *SQLiteStore) Get(ctx context.Context, patientID, drug string) (*Feedback, error) {
	key := Feedback{PatientID: patientID, Drug: drug}
	key.Normalize()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback WHERE patient_id = ? AND drug = ? LIMIT 1",
		key.PatientID, key.Drug)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	return count, err
}

// Stats returns agreement figures per drug.
func (s *SQLiteStore) Stats(ctx context.Context) ([]DrugStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug, COUNT(*), COALESCE(SUM(CASE WHEN user_agreed THEN 1 ELSE 0 END), 0)
		FROM feedback
		GROUP BY drug
		ORDER BY drug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []DrugStats
	for rows.Next() {
		var st DrugStats
		if err := rows.Scan(&st.Drug, &st.Total, &st.Agreed); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.AgreementRate = agreementRate(st.Agreed, st.Total)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
