package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = \$1`).
		WithArgs("missing-doc").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "missing-doc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "status", "confidence", "created_at", "updated_at"}).
			AddRow("d1", "u1", "scan.pdf", "completed", 0.9, now, now))

	doc, err := s.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusCompleted, doc.Status)
	assert.Equal(t, 0.9, doc.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginProcessing_Claimed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status != \$1`).
		WithArgs("processing", pgxmock.AnyArg(), "d1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	claimed, err := s.BeginProcessing(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginProcessing_AlreadyInFlight(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE documents SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status != \$1`).
		WithArgs("processing", pgxmock.AnyArg(), "d1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	// Zero rows triggers an existence check.
	mock.ExpectQuery(`SELECT id, user_id, name, status, confidence, created_at, updated_at FROM documents WHERE id = \$1`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "status", "confidence", "created_at", "updated_at"}).
			AddRow("d1", "u1", "scan.pdf", "processing", 0.5, now, now))

	claimed, err := s.BeginProcessing(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishProcessing_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET status = \$1, confidence = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("completed", 0.8, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishProcessing(context.Background(), "missing", model.DocStatusCompleted, 0.8)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceFields_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM extracted_fields WHERE document_id = \$1`).
		WithArgs("d1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"extracted_fields"},
		[]string{"id", "document_id", "position", "key", "raw_value", "field_type", "confidence"}).
		WillReturnResult(1)

	err := s.ReplaceFields(context.Background(), "d1", []model.ExtractedField{
		{Key: "email", RawValue: "a@b.com", FieldType: model.FieldTypeEmail, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MaxAttemptNumber(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(attempt_number\), 0\) FROM reprocess_attempts WHERE document_id = \$1`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(2))

	n, err := s.MaxAttemptNumber(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementTemplateUsage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE templates SET usage_count = usage_count \+ 1 WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementTemplateUsage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMappings_MissingIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT mappings FROM field_mappings WHERE document_id = \$1 AND form_id = \$2`).
		WithArgs("d1", "f1").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetMappings(context.Background(), "d1", "f1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMappings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT mappings FROM field_mappings WHERE document_id = \$1 AND form_id = \$2`).
		WithArgs("d1", "f1").
		WillReturnRows(pgxmock.NewRows([]string{"mappings"}).
			AddRow([]byte(`[{"form_field":"email","source_field":"email","confidence":1,"strategy":"exact"}]`)))

	got, err := s.GetMappings(context.Background(), "d1", "f1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StrategyExact, got[0].Strategy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
