// Package feedback stores clinician agreement or overrides for drug risk
// calls so they can be reviewed and exported later.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

// EXPORT_VERSION is written into every export document.
const EXPORT_VERSION = "1.0"

// maxExportLimit bounds a single export.
const maxExportLimit = 1000000

// ErrInvalidFeedback is returned by Validate.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Feedback is a clinician's response to one drug recommendation for one patient.
type Feedback struct {
	ID            int64            `json:"id,omitempty"`
	PatientID     string           `json:"patient_id"`
	Drug          string           `json:"drug"`
	Gene          string           `json:"gene,omitempty"`
	Diplotype     string           `json:"diplotype,omitempty"`
	Phenotype     domain.Phenotype `json:"phenotype,omitempty"`
	SuggestedRisk domain.RiskLabel `json:"suggested_risk"`
	UserRisk      domain.RiskLabel `json:"user_risk"`
	UserAgreed    bool             `json:"user_agreed"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Normalize uppercases the drug and trims identifiers so that the
// (patient_id, drug) key is stable. A missing UserRisk means the clinician
// accepted the suggestion; UserAgreed is derived from the two labels.
func (f *Feedback) Normalize() {
	f.PatientID = strings.TrimSpace(f.PatientID)
	f.Drug = strings.ToUpper(strings.TrimSpace(f.Drug))
	f.Gene = strings.ToUpper(strings.TrimSpace(f.Gene))
	if f.UserRisk == "" {
		f.UserRisk = f.SuggestedRisk
	}
	f.UserAgreed = f.UserRisk == f.SuggestedRisk
}

// Validate checks the required fields.
func (f *Feedback) Validate() error {
	if f.PatientID == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidFeedback)
	}
	if f.Drug == "" {
		return fmt.Errorf("%w: drug is required", ErrInvalidFeedback)
	}
	if !f.SuggestedRisk.IsValid() {
		return fmt.Errorf("%w: suggested_risk %q", ErrInvalidFeedback, f.SuggestedRisk)
	}
	if !f.UserRisk.IsValid() {
		return fmt.Errorf("%w: user_risk %q", ErrInvalidFeedback, f.UserRisk)
	}
	if f.Phenotype != "" && !f.Phenotype.IsValid() {
		return fmt.Errorf("%w: phenotype %q", ErrInvalidFeedback, f.Phenotype)
	}
	return nil
}

// DrugStats summarizes feedback for one drug.
type DrugStats struct {
	Drug          string  `json:"drug"`
	Total         int64   `json:"total"`
	Agreed        int64   `json:"agreed"`
	AgreementRate float64 `json:"agreement_rate"`
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Entries are unique on (patient_id, drug).
	Save(ctx context.Context, feedback *Feedback) error

	// Get returns the feedback for a patient and drug, or nil when none exists.
	Get(ctx context.Context, patientID, drug string) (*Feedback, error)

	// List returns feedback entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	Count(ctx context.Context) (int64, error)

	// Stats returns per-drug agreement figures ordered by drug.
	Stats(ctx context.Context) ([]DrugStats, error)

	Delete(ctx context.Context, id int64) error

	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports an export document, skipping keys that already exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// FeedbackExport is the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	if all == nil {
		all = []*Feedback{}
	}

	export := &FeedbackExport{
		Version:    EXPORT_VERSION,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		if fb == nil {
			continue
		}
		fb.Normalize()
		existing, err := store.Get(ctx, fb.PatientID, fb.Drug)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		fb.ID = 0
		if err := store.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

func agreementRate(agreed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(agreed) / float64(total)
}
