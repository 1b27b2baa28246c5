package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// ErrAggregationConflict reports that a manual edit lost its optimistic
// version check twice in a row against concurrent re-aggregations.
var ErrAggregationConflict = errors.New("profile: aggregation conflict")

// Store is the slice of the persistence layer aggregation reads from.
type Store interface {
	// FieldsForUser returns extracted fields from the user's successfully
	// processed documents only.
	FieldsForUser(ctx context.Context, userID string) ([]model.ExtractedField, error)
}

// Service is a per-user keyed profile cache with lazy TTL-based refresh.
// Concurrent rebuilds of the same user collapse into one store read; commits
// resolve last-writer-wins on LastAggregated, so a stale rebuild never
// overwrites a fresher one.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*model.Profile
}

// NewService builds a Service. A non-positive ttl falls back to one hour.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]*model.Profile),
	}
}

// Get returns the user's profile, re-aggregating when the cached copy is
// missing or older than the TTL.
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, eris.New("profile: empty user id")
	}

	s.mu.RLock()
	cached := s.cache[userID]
	s.mu.RUnlock()
	if cached != nil && s.now().Sub(cached.LastAggregated) < s.ttl {
		return copyProfile(cached), nil
	}
	return s.rebuild(ctx, userID)
}

// Refresh discards the cached profile and recomputes from scratch,
// regardless of TTL.
func (s *Service) Refresh(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, eris.New("profile: empty user id")
	}
	return s.rebuild(ctx, userID)
}

// Delete drops the cached profile. Underlying documents are untouched; the
// next Get re-aggregates.
func (s *Service) Delete(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// AddManualValue merges a user-supplied value into the cached profile. The
// value contributes one extra source at implicit confidence 100. The write
// is guarded by an optimistic check on LastAggregated and retried once
// against a concurrent re-aggregation before giving up.
func (s *Service) AddManualValue(ctx context.Context, userID, fieldKey string, fieldType model.FieldType, raw string) (*model.Profile, error) {
	key := normalize.Key(fieldKey)
	if key == "" {
		return nil, eris.Errorf("profile: field key %q normalizes to empty", fieldKey)
	}
	nv := normalize.Value(fieldType, raw)
	if nv.CanonicalForm == "" {
		return nil, eris.New("profile: empty value")
	}

	for attempt := 0; attempt < 2; attempt++ {
		base, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		version := base.LastAggregated
		applyManual(base, key, fieldType, raw, s.now())

		s.mu.Lock()
		cur := s.cache[userID]
		if cur != nil && cur.LastAggregated.Equal(version) {
			s.cache[userID] = base
			s.mu.Unlock()
			return copyProfile(base), nil
		}
		s.mu.Unlock()
		zap.L().Debug("profile: manual edit raced a refresh, retrying",
			zap.String("user_id", userID))
	}
	return nil, ErrAggregationConflict
}

// rebuild fetches and aggregates outside any lock, then commits unless a
// fresher profile landed in the meantime. Concurrent callers for the same
// user share one flight.
func (s *Service) rebuild(ctx context.Context, userID string) (*model.Profile, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		startedAt := s.now()
		fields, err := s.store.FieldsForUser(ctx, userID)
		if err != nil {
			return nil, eris.Wrapf(err, "profile: load fields for user %s", userID)
		}
		p := Aggregate(userID, fields, startedAt)

		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.cache[userID]; ok && cur.LastAggregated.After(p.LastAggregated) {
			return copyProfile(cur), nil
		}
		s.cache[userID] = p
		return copyProfile(p), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Profile), nil
}

func copyProfile(p *model.Profile) *model.Profile {
	cp := *p
	cp.Fields = make(map[string]model.ProfileField, len(p.Fields))
	for k, f := range p.Fields {
		f.Values = append([]model.ProfileValue(nil), f.Values...)
		cp.Fields[k] = f
	}
	return &cp
}
