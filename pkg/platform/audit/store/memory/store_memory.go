package memory

import (
	"context"
	"slices"
	"sync"

	id "checkin/pkg/domain"
	audit "checkin/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.PatientID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.PatientID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.PatientID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PatientID] = append(s.events[event.PatientID], event)
	return nil
}

// ListByPatient returns the patient's events in append order.
func (s *InMemoryStore) ListByPatient(_ context.Context, patientID id.PatientID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[patientID]), nil
}

// ListAll returns every event across patients. Test helper.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	slices.SortStableFunc(all, func(a, b audit.Event) int { return a.Timestamp.Compare(b.Timestamp) })
	return all, nil
}
