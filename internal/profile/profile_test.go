package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

type fieldStoreStub struct {
	mu     sync.Mutex
	fields []model.ExtractedField
	calls  int
}

func (s *fieldStoreStub) FieldsForUser(_ context.Context, _ string) ([]model.ExtractedField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]model.ExtractedField(nil), s.fields...), nil
}

func field(doc, key, raw string, ft model.FieldType, conf float64) model.ExtractedField {
	return model.ExtractedField{Key: key, RawValue: raw, FieldType: ft, Confidence: conf, SourceDocumentID: doc}
}

func TestAggregate_ConfidenceIsMeanAcrossDocuments(t *testing.T) {
	fields := []model.ExtractedField{
		field("d1", "phone", "(555) 010-0100", model.FieldTypePhone, 0.90),
		field("d2", "phone", "555-010-0100", model.FieldTypePhone, 0.70),
		field("d3", "phone", "5550100100", model.FieldTypePhone, 0.50),
	}
	p := Aggregate("u1", fields, time.Now())

	f, ok := p.Fields["phone"]
	require.True(t, ok)
	assert.InDelta(t, 70.0, f.Confidence, 0.001)
	assert.Equal(t, 3, f.SourceCount)
	// All three raw forms canonicalize to the same digit string.
	require.Len(t, f.Values, 1)
	assert.Equal(t, "5550100100", f.Values[0].Canonical)
	assert.Equal(t, "(555) 010-0100", f.Values[0].Display)
	assert.Equal(t, 3, p.DocumentCount)
}

func TestAggregate_DedupIsOrderIndependent(t *testing.T) {
	a := []model.ExtractedField{
		field("d1", "email", "John.Doe@Example.com", model.FieldTypeEmail, 0.8),
		field("d2", "email", "john.doe@example.com", model.FieldTypeEmail, 0.8),
	}
	b := []model.ExtractedField{a[1], a[0]}

	pa := Aggregate("u1", a, time.Now())
	pb := Aggregate("u1", b, time.Now())
	require.Len(t, pa.Fields["email"].Values, 1)
	require.Len(t, pb.Fields["email"].Values, 1)
	assert.Equal(t, pa.Fields["email"].Values[0].Canonical, pb.Fields["email"].Values[0].Canonical)
}

func TestAggregate_DisplayFormFromFirstOccurrence(t *testing.T) {
	fields := []model.ExtractedField{
		field("d1", "email", "John.Doe@Example.com", model.FieldTypeEmail, 0.8),
		field("d2", "email", "JOHN.DOE@EXAMPLE.COM", model.FieldTypeEmail, 0.9),
	}
	p := Aggregate("u1", fields, time.Now())
	require.Len(t, p.Fields["email"].Values, 1)
	assert.Equal(t, "John.Doe@Example.com", p.Fields["email"].Values[0].Display)
}

func TestAggregate_BestConfidencePerDocumentWins(t *testing.T) {
	// Two entries for the same key in one document count as one source,
	// contributing that document's best confidence to the mean.
	fields := []model.ExtractedField{
		field("d1", "phone", "5550100100", model.FieldTypePhone, 0.40),
		field("d1", "phone", "5550100100", model.FieldTypePhone, 0.90),
		field("d2", "phone", "5550100199", model.FieldTypePhone, 0.50),
	}
	p := Aggregate("u1", fields, time.Now())
	f := p.Fields["phone"]
	assert.Equal(t, 2, f.SourceCount)
	assert.InDelta(t, 70.0, f.Confidence, 0.001)
	assert.Len(t, f.Values, 2)
}

func TestAggregate_EmptyInput(t *testing.T) {
	p := Aggregate("u1", nil, time.Now())
	assert.Empty(t, p.Fields)
	assert.Zero(t, p.DocumentCount)
}

func TestService_GetCachesWithinTTL(t *testing.T) {
	store := &fieldStoreStub{fields: []model.ExtractedField{
		field("d1", "email", "a@b.com", model.FieldTypeEmail, 0.8),
	}}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestService_GetReaggregatesAfterTTL(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	current := time.Now()
	svc.now = func() time.Time { return current }
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	current = current.Add(2 * time.Hour)
	_, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestService_RefreshBypassesTTL(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestService_RefreshPicksUpNewDocuments(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.Fields)

	store.mu.Lock()
	store.fields = []model.ExtractedField{field("d1", "email", "a@b.com", model.FieldTypeEmail, 0.8)}
	store.mu.Unlock()

	p, err = svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, p.Fields, 1)
}

func TestService_DeleteForcesReaggregationOnNextGet(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	svc.Delete("u1")
	_, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestService_AddManualValue_SpecScenario(t *testing.T) {
	// Profile has one email at confidence 80; a manual edit adds a second.
	store := &fieldStoreStub{fields: []model.ExtractedField{
		field("d1", "email", "old@example.com", model.FieldTypeEmail, 0.8),
	}}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	p, err := svc.AddManualValue(ctx, "u1", "email", model.FieldTypeEmail, "New@Example.com")
	require.NoError(t, err)

	f := p.Fields["email"]
	require.Len(t, f.Values, 2)
	assert.Equal(t, "new@example.com", f.Values[1].Canonical)
	assert.Equal(t, 2, f.SourceCount)
	assert.InDelta(t, 90.0, f.Confidence, 0.001) // mean of 80 and 100
}

func TestService_AddManualValue_DuplicateCanonicalStillCounts(t *testing.T) {
	store := &fieldStoreStub{fields: []model.ExtractedField{
		field("d1", "email", "old@example.com", model.FieldTypeEmail, 0.8),
	}}
	svc := NewService(store, time.Hour)

	p, err := svc.AddManualValue(context.Background(), "u1", "email", model.FieldTypeEmail, "OLD@EXAMPLE.COM")
	require.NoError(t, err)

	f := p.Fields["email"]
	assert.Len(t, f.Values, 1)
	assert.Equal(t, 2, f.SourceCount)
	assert.InDelta(t, 90.0, f.Confidence, 0.001)
}

func TestService_AddManualValue_NewFieldKey(t *testing.T) {
	svc := NewService(&fieldStoreStub{}, time.Hour)

	p, err := svc.AddManualValue(context.Background(), "u1", "Middle Name", model.FieldTypeText, "Quincy")
	require.NoError(t, err)

	f, ok := p.Fields["middle_name"]
	require.True(t, ok)
	assert.Equal(t, 1, f.SourceCount)
	assert.Equal(t, 100.0, f.Confidence)
}

func TestService_AddManualValue_Validation(t *testing.T) {
	svc := NewService(&fieldStoreStub{}, time.Hour)
	ctx := context.Background()

	_, err := svc.AddManualValue(ctx, "u1", "  ", model.FieldTypeText, "x")
	assert.Error(t, err)
	_, err = svc.AddManualValue(ctx, "u1", "email", model.FieldTypeEmail, "   ")
	assert.Error(t, err)
}

func TestService_ManualEditSurvivesUntilRefresh(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	_, err := svc.AddManualValue(ctx, "u1", "email", model.FieldTypeEmail, "a@b.com")
	require.NoError(t, err)

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, p.Fields, 1)

	// Explicit refresh recomputes wholesale from stored fields.
	p, err = svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.Fields)
}

func TestService_ConcurrentGetsShareOneRebuild(t *testing.T) {
	store := &fieldStoreStub{}
	svc := NewService(store, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// A warm cache answers without another store read.
	before := store.calls
	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, store.calls)
}
