package feedback

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

var feedbackRowColumns = []string{
	"id", "patient_id", "drug", "gene", "diplotype", "phenotype",
	"suggested_risk", "user_risk", "user_agreed", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO feedback .* ON CONFLICT \(patient_id, drug\) DO UPDATE`).
		WithArgs("PATIENT_HG00096", "CODEINE", "CYP2D6", "*4/*4", "PM",
			"Ineffective", "Toxic", false, "switched to morphine", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	fb := codeineFeedback()
	fb.UserRisk = domain.TOXIC
	err := store.Save(context.Background(), fb)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fb.ID)
	assert.Equal(t, created, fb.CreatedAt)
	assert.False(t, fb.UserAgreed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Invalid_NoQuery(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.Save(context.Background(), &Feedback{Drug: "CODEINE", SuggestedRisk: domain.SAFE})

	assert.ErrorIs(t, err, ErrInvalidFeedback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO feedback`).WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), codeineFeedback())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save feedback")
}

func TestPostgresStore_Get_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM feedback WHERE patient_id = \$1 AND drug = \$2`).
		WithArgs("PATIENT_HG00096", "WARFARIN").
		WillReturnRows(sqlmock.NewRows(feedbackRowColumns).
			AddRow(int64(3), "PATIENT_HG00096", "WARFARIN", "CYP2C9", "*1/*1", "NM",
				"Safe", "Safe", true, "", now, now))

	got, err := store.Get(context.Background(), "PATIENT_HG00096", "warfarin")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.NM, got.Phenotype)
	assert.Equal(t, domain.SAFE, got.UserRisk)
	assert.True(t, got.UserAgreed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM feedback`).WillReturnRows(sqlmock.NewRows(feedbackRowColumns))

	got, err := store.Get(context.Background(), "PATIENT_X", "CODEINE")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStore_Stats_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT drug, COUNT\(\*\), COUNT\(\*\) FILTER`).
		WillReturnRows(sqlmock.NewRows([]string{"drug", "total", "agreed"}).
			AddRow("CODEINE", int64(4), int64(3)).
			AddRow("WARFARIN", int64(2), int64(0)))

	stats, err := store.Stats(context.Background())

	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.InDelta(t, 0.75, stats[0].AgreementRate, 1e-9)
	assert.Equal(t, 0.0, stats[1].AgreementRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM feedback WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// getTestDB returns a live database for the integration tests below.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id BIGSERIAL PRIMARY KEY,
			patient_id TEXT NOT NULL,
			drug TEXT NOT NULL,
			gene TEXT DEFAULT '',
			diplotype TEXT DEFAULT '',
			phenotype TEXT DEFAULT '',
			suggested_risk TEXT NOT NULL,
			user_risk TEXT NOT NULL,
			user_agreed BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT feedback_patient_drug_unique UNIQUE (patient_id, drug)
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM feedback")
	require.NoError(t, err)

	return db
}

func TestPostgresStore_SaveUpdate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	fb := codeineFeedback()
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID

	fb.UserRisk = domain.TOXIC
	fb.Notes = "Updated after review"
	require.NoError(t, store.Save(ctx, fb))
	assert.Equal(t, originalID, fb.ID)

	retrieved, err := store.Get(ctx, fb.PatientID, fb.Drug)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, domain.TOXIC, retrieved.UserRisk)
	assert.False(t, retrieved.UserAgreed)
	assert.Equal(t, "Updated after review", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
