package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certhub/backend/internal/domain/dataset"
	"github.com/certhub/backend/internal/domain/shared"
)

const sweepInterval = time.Minute

type progressEntry struct {
	progress  dataset.Progress
	expiresAt time.Time
}

// InMemoryProgressStore implements dataset.ProgressStore in process. It suits
// single-instance deployments and tests.
type InMemoryProgressStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]progressEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryProgressStore creates a store and starts its expiry sweeper.
// Call Close to stop it.
func NewInMemoryProgressStore(ttl time.Duration) *InMemoryProgressStore {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	s := &InMemoryProgressStore{
		entries:  make(map[uuid.UUID]progressEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Set stores p and resets its expiry
func (s *InMemoryProgressStore) Set(_ context.Context, p dataset.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.VersionID] = progressEntry{progress: p, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Get returns shared.ErrNotFound for a missing or expired entry
func (s *InMemoryProgressStore) Get(_ context.Context, id uuid.UUID) (*dataset.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, shared.ErrNotFound
	}
	p := e.progress
	return &p, nil
}

// Delete removes the entry for id
func (s *InMemoryProgressStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryProgressStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryProgressStore) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryProgressStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

var _ dataset.ProgressStore = (*InMemoryProgressStore)(nil)
