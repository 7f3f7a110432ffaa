package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps sliding windows in process. Limits are per instance.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string][]time.Time)}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.buckets[key]
	cutoff := now.Add(-window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= limit {
		s.buckets[key] = hits
		return Result{
			Allowed: false,
			Limit:   limit,
			ResetAt: hits[0].Add(window),
		}, nil
	}

	hits = append(hits, now)
	s.buckets[key] = hits
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}
