package throttle

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu        sync.Mutex
	data      map[string]*record
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

type record struct {
	failures    []time.Time
	lockedUntil time.Time
}

// NewMemoryStore starts a sweep every interval that drops keys with no
// failure newer than retention and no live lock. An interval of zero
// disables the sweep.
func NewMemoryStore(interval, retention time.Duration) *MemoryStore {
	store := &MemoryStore{
		data:      make(map[string]*record),
		retention: retention,
		stop:      make(chan struct{}),
	}

	if interval > 0 {
		go store.cleanup(interval)
	}

	return store
}

func (s *MemoryStore) AddFailure(_ context.Context, key string, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[key]
	if !ok {
		r = &record{}
		s.data[key] = r
	}

	r.failures = append(prune(r.failures, at.Add(-window)), at)
	return len(r.failures), nil
}

func (s *MemoryStore) Failures(_ context.Context, key string, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[key]
	if !ok {
		return 0, nil
	}
	r.failures = prune(r.failures, at.Add(-window))
	return len(r.failures), nil
}

func (s *MemoryStore) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[key]
	if !ok {
		r = &record{}
		s.data[key] = r
	}
	r.lockedUntil = until
	return nil
}

func (s *MemoryStore) LockedUntil(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.data[key]; ok && !r.lockedUntil.IsZero() {
		return r.lockedUntil, true, nil
	}
	return time.Time{}, false, nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.retention)
	for key, r := range s.data {
		r.failures = prune(r.failures, cutoff)
		if len(r.failures) == 0 && !now.Before(r.lockedUntil) {
			delete(s.data, key)
		}
	}
	return nil
}

func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			_ = s.Sweep(context.Background(), now)
		}
	}
}

// prune drops failures at or before cutoff, reusing the backing array.
func prune(failures []time.Time, cutoff time.Time) []time.Time {
	kept := failures[:0]
	for _, at := range failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
