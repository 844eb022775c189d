package polling

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store provides thread-safe storage for poll targets.
// Finished targets expire after the configured retention.
type Store struct {
	mu        sync.RWMutex
	targets   map[string]*Target
	expiry    map[string]time.Time
	retention time.Duration
}

// NewStore creates a new target store
func NewStore(retention time.Duration) *Store {
	return &Store{
		targets:   make(map[string]*Target),
		expiry:    make(map[string]time.Time),
		retention: retention,
	}
}

// Add stores a target
func (s *Store) Add(target *Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if target.ID == "" {
		return fmt.Errorf("target ID cannot be empty")
	}
	if existing, ok := s.targets[target.ID]; ok && !existing.Finished {
		return ErrAlreadyPolling
	}

	now := time.Now()
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	target.UpdatedAt = now
	s.targets[target.ID] = target
	delete(s.expiry, target.ID)

	return nil
}

// Get returns a copy of the target with the given ID
func (s *Store) Get(id string) (Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, exists := s.targets[id]
	if !exists {
		return Target{}, fmt.Errorf("target not found: %s", id)
	}
	if expiry, ok := s.expiry[id]; ok && time.Now().After(expiry) {
		return Target{}, fmt.Errorf("target expired: %s", id)
	}

	return *target, nil
}

// Update applies fn to the stored target under the store lock.
// fn must not block.
func (s *Store) Update(id string, fn func(*Target)) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, exists := s.targets[id]
	if !exists {
		return Target{}, fmt.Errorf("target not found: %s", id)
	}

	fn(target)
	target.UpdatedAt = time.Now()

	return *target, nil
}

// Finish marks the target as no longer polled, starts its retention period
// and returns its final state. The snapshot is taken before expiry applies,
// so it is complete even with a zero retention.
func (s *Store) Finish(id string) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.targets[id]
	if !ok {
		return Target{}, fmt.Errorf("target not found: %s", id)
	}
	target.Finished = true
	target.UpdatedAt = time.Now()
	s.expiry[id] = target.UpdatedAt.Add(s.retention)

	return *target, nil
}

// List returns copies of all non-expired targets, newest first
func (s *Store) List() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]Target, 0, len(s.targets))
	for id, target := range s.targets {
		if expiry, ok := s.expiry[id]; ok && now.After(expiry) {
			continue
		}
		out = append(out, *target)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// Active returns copies of the targets that are still being polled
func (s *Store) Active() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Target
	for _, target := range s.targets {
		if !target.Finished {
			active = append(active, *target)
		}
	}

	return active
}

// CleanExpired removes expired targets from storage
func (s *Store) CleanExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.targets, id)
			delete(s.expiry, id)
		}
	}
}
