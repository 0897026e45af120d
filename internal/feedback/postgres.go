package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. The feedback table is
// created by the database migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a pooled connection and wraps it in a store.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save upserts on (patient_id, drug).
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	feedback.Normalize()
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO feedback (
			patient_id, drug, gene, diplotype, phenotype,
			suggested_risk, user_risk, user_agreed, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (patient_id, drug) DO UPDATE SET
			gene = EXCLUDED.gene,
			diplotype = EXCLUDED.diplotype,
			phenotype = EXCLUDED.phenotype,
			suggested_risk = EXCLUDED.suggested_risk,
			user_risk = EXCLUDED.user_risk,
			user_agreed = EXCLUDED.user_agreed,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.PatientID, feedback.Drug, feedback.Gene, feedback.Diplotype, string(feedback.Phenotype),
		string(feedback.SuggestedRisk), string(feedback.UserRisk), feedback.UserAgreed,
		feedback.Notes, now, now,
	).Scan(&feedback.ID, &feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, patientID, drug string) (*Feedback, error) {
	key := Feedback{PatientID: patientID, Drug: drug}
	key.Normalize()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback WHERE patient_id = $1 AND drug = $2 LIMIT 1",
		key.PatientID, key.Drug)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
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

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Stats(ctx context.Context) ([]DrugStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug, COUNT(*), COUNT(*) FILTER (WHERE user_agreed)
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

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
