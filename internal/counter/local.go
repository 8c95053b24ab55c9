package counter

import (
	"context"
	"sync"
	"time"
)

const janitorInterval = 5 * time.Minute

// LocalStore is a mutex-guarded in-process counter map. Correct only within a
// single process; used for single-instance deployments and as the fallback
// when the distributed backend is unreachable.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	done    chan struct{}
	closed  bool
}

type localEntry struct {
	count     int64
	expiresAt time.Time
}

func NewLocalStore() *LocalStore {
	s := &LocalStore{
		entries: make(map[string]*localEntry),
		done:    make(chan struct{}),
	}

	go s.janitor()

	return s
}

func (s *LocalStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = &localEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, nil
}

func (s *LocalStore) Peek(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(time.Now()) {
		return 0, nil
	}

	return entry.count, nil
}

// Sweeps expired entries so abandoned window keys don't accumulate
func (s *LocalStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *LocalStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

func (s *LocalStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
}
