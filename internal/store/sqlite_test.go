package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *SQLiteStore, userID string, status model.DocumentStatus) *model.Document {
	t.Helper()
	doc := &model.Document{UserID: userID, Name: "scan.pdf", Status: status, Confidence: 0.5}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

func TestSQLite_DocumentRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	doc := seedDocument(t, s, "u1", model.DocStatusUploaded)
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, model.DocStatusUploaded, got.Status)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestSQLite_GetDocument_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_BeginProcessing_ClaimsOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusCompleted)

	claimed, err := s.BeginProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.BeginProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestSQLite_BeginProcessing_MissingDocument(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.BeginProcessing(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_FinishProcessing(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusProcessing)

	require.NoError(t, s.FinishProcessing(ctx, doc.ID, model.DocStatusCompleted, 0.92))
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusCompleted, got.Status)
	assert.Equal(t, 0.92, got.Confidence)
}

func TestSQLite_ReplaceFields_IsWholesale(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusCompleted)

	first := []model.ExtractedField{
		{Key: "email", RawValue: "a@b.com", FieldType: model.FieldTypeEmail, Confidence: 0.8},
		{Key: "phone", RawValue: "5550100100", FieldType: model.FieldTypePhone, Confidence: 0.7},
	}
	require.NoError(t, s.ReplaceFields(ctx, doc.ID, first))

	second := []model.ExtractedField{
		{Key: "ssn", RawValue: "123-45-6789", FieldType: model.FieldTypeIdentifier, Confidence: 0.9},
	}
	require.NoError(t, s.ReplaceFields(ctx, doc.ID, second))

	got, err := s.FieldsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ssn", got[0].Key)
	assert.Equal(t, doc.ID, got[0].SourceDocumentID)
}

func TestSQLite_FieldsForDocument_PreservesOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusCompleted)

	fields := []model.ExtractedField{
		{Key: "c", RawValue: "3", FieldType: model.FieldTypeText, Confidence: 0.5},
		{Key: "a", RawValue: "1", FieldType: model.FieldTypeText, Confidence: 0.5},
		{Key: "b", RawValue: "2", FieldType: model.FieldTypeText, Confidence: 0.5},
	}
	require.NoError(t, s.ReplaceFields(ctx, doc.ID, fields))

	got, err := s.FieldsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Key)
	assert.Equal(t, "a", got[1].Key)
	assert.Equal(t, "b", got[2].Key)
}

func TestSQLite_FieldsForUser_OnlyCompletedDocuments(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	done := seedDocument(t, s, "u1", model.DocStatusCompleted)
	failed := seedDocument(t, s, "u1", model.DocStatusFailed)
	other := seedDocument(t, s, "u2", model.DocStatusCompleted)

	require.NoError(t, s.ReplaceFields(ctx, done.ID, []model.ExtractedField{
		{Key: "email", RawValue: "a@b.com", FieldType: model.FieldTypeEmail, Confidence: 0.8},
	}))
	require.NoError(t, s.ReplaceFields(ctx, failed.ID, []model.ExtractedField{
		{Key: "email", RawValue: "bad@b.com", FieldType: model.FieldTypeEmail, Confidence: 0.2},
	}))
	require.NoError(t, s.ReplaceFields(ctx, other.ID, []model.ExtractedField{
		{Key: "email", RawValue: "other@b.com", FieldType: model.FieldTypeEmail, Confidence: 0.9},
	}))

	got, err := s.FieldsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a@b.com", got[0].RawValue)
	assert.Equal(t, done.ID, got[0].SourceDocumentID)
}

func TestSQLite_Attempts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusCompleted)

	n, err := s.MaxAttemptNumber(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	a1 := &model.ReprocessAttempt{DocumentID: doc.ID, AttemptNumber: 1, SettingsTier: 1, OldConfidence: 0.5}
	require.NoError(t, s.CreateAttempt(ctx, a1))
	a2 := &model.ReprocessAttempt{DocumentID: doc.ID, AttemptNumber: 2, SettingsTier: 2, OldConfidence: 0.6}
	require.NoError(t, s.CreateAttempt(ctx, a2))

	n, err = s.MaxAttemptNumber(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.UpdateAttemptOutcome(ctx, a2.ID, 0.55, -0.05))

	attempts, err := s.ListAttempts(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.InDelta(t, -0.05, attempts[1].Improvement, 1e-9)
}

func TestSQLite_Attempts_DuplicateNumberRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := seedDocument(t, s, "u1", model.DocStatusCompleted)

	require.NoError(t, s.CreateAttempt(ctx, &model.ReprocessAttempt{DocumentID: doc.ID, AttemptNumber: 1, SettingsTier: 1}))
	err := s.CreateAttempt(ctx, &model.ReprocessAttempt{DocumentID: doc.ID, AttemptNumber: 1, SettingsTier: 1})
	assert.Error(t, err)
}

func TestSQLite_Templates_Visibility(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	mine := &model.Template{OwnerID: "u1", Name: "mine", FieldMappings: []model.TemplateField{{TargetField: "email"}}}
	pub := &model.Template{OwnerID: "u2", Name: "shared", IsPublic: true, FieldMappings: []model.TemplateField{{TargetField: "phone"}}}
	priv := &model.Template{OwnerID: "u2", Name: "hidden", FieldMappings: []model.TemplateField{{TargetField: "ssn"}}}
	for _, tm := range []*model.Template{mine, pub, priv} {
		require.NoError(t, s.CreateTemplate(ctx, tm))
	}

	got, err := s.ListVisibleTemplates(ctx, "u1")
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, tm := range got {
		names = append(names, tm.Name)
	}
	assert.ElementsMatch(t, []string{"mine", "shared"}, names)
}

func TestSQLite_IncrementTemplateUsage(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	tm := &model.Template{OwnerID: "u1", Name: "w2", FieldMappings: []model.TemplateField{{TargetField: "wages"}}}
	require.NoError(t, s.CreateTemplate(ctx, tm))
	require.NoError(t, s.IncrementTemplateUsage(ctx, tm.ID))
	require.NoError(t, s.IncrementTemplateUsage(ctx, tm.ID))

	got, err := s.ListVisibleTemplates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].UsageCount)

	assert.ErrorIs(t, s.IncrementTemplateUsage(ctx, "nope"), ErrNotFound)
}

func TestSQLite_Mappings_UpsertRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := []model.FieldMapping{
		{FormField: "email", SourceField: "email", Confidence: 1.0, Strategy: model.StrategyExact},
	}
	require.NoError(t, s.SaveMappings(ctx, "d1", "f1", first))

	second := []model.FieldMapping{
		{FormField: "email", SourceField: "work_email", Confidence: 0.9, Strategy: model.StrategySemantic},
		{FormField: "fax", Strategy: model.StrategyNone},
	}
	require.NoError(t, s.SaveMappings(ctx, "d1", "f1", second))

	got, err := s.GetMappings(ctx, "d1", "f1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "work_email", got[0].SourceField)
	assert.False(t, got[1].Mapped())
}

func TestSQLite_GetMappings_MissingIsNil(t *testing.T) {
	s := newTestSQLite(t)
	got, err := s.GetMappings(context.Background(), "d1", "f1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
