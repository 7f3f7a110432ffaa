package store

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"checkin/internal/consent/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// InMemory is a map-backed consent store. Records are cloned on the way in and
// out so callers never share memory with the stored state.
type InMemory struct {
	mu           sync.RWMutex
	records      map[id.ConsentID]*models.ConsentRecord
	bySubmission map[id.SubmissionID]id.ConsentID
	policies     map[id.FormTemplateID]models.ConsentPolicy
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:      make(map[id.ConsentID]*models.ConsentRecord),
		bySubmission: make(map[id.SubmissionID]id.ConsentID),
		policies:     make(map[id.FormTemplateID]models.ConsentPolicy),
	}
}

// Create stores a new record. A consent ID or submission ID that is already
// present yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, record *models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.bySubmission[record.SubmissionID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.records[record.ID] = record.Clone()
	s.bySubmission[record.SubmissionID] = record.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, consentID id.ConsentID) (*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

// ListByPatient returns the patient's records, newest first.
func (s *InMemory) ListByPatient(_ context.Context, patientID id.PatientID) ([]*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ConsentRecord
	for _, record := range s.records {
		if record.PatientID == patientID {
			out = append(out, record.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.ConsentRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

// ListByIDs returns the records that exist among ids, in id order. Unknown ids
// are skipped.
func (s *InMemory) ListByIDs(_ context.Context, ids []id.ConsentID) ([]*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ConsentRecord, 0, len(ids))
	seen := make(map[id.ConsentID]struct{}, len(ids))
	for _, consentID := range ids {
		if _, dup := seen[consentID]; dup {
			continue
		}
		seen[consentID] = struct{}{}
		if record, ok := s.records[consentID]; ok {
			out = append(out, record.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.ConsentRecord) int { return compareIDs(a.ID, b.ID) })
	return out, nil
}

// ListTimeBound pages through given, unwithdrawn records that carry an expiry,
// ordered by ID. Pass the last ID of the previous page as afterID (nil ID for
// the first page).
func (s *InMemory) ListTimeBound(_ context.Context, afterID id.ConsentID, limit int) ([]*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ConsentRecord
	for _, record := range s.records {
		if !record.Given || record.ExpiresAt == nil || record.WithdrawnAt != nil {
			continue
		}
		if compareIDs(record.ID, afterID) <= 0 {
			continue
		}
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b *models.ConsentRecord) int { return compareIDs(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i, record := range out {
		out[i] = record.Clone()
	}
	return out, nil
}

// CompareAndSwap replaces the stored record with next only if the stored
// record still carries expected. A changed version yields sentinel.ErrConflict.
func (s *InMemory) CompareAndSwap(_ context.Context, expected models.Version, next *models.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[next.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !current.Matches(expected) {
		return sentinel.ErrConflict
	}
	s.records[next.ID] = next.Clone()
	return nil
}

// SavePolicy upserts the policy for its form template.
func (s *InMemory) SavePolicy(_ context.Context, policy models.ConsentPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.FormTemplateID] = policy
	return nil
}

func (s *InMemory) FindPolicy(_ context.Context, formTemplateID id.FormTemplateID) (*models.ConsentPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[formTemplateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &policy, nil
}

func compareIDs(a, b id.ConsentID) int {
	ua, ub := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(ua[:], ub[:])
}
