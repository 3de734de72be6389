// Package mirror holds the last snapshot read from the contracts.
//
// The store is written only by the reader (Replace, after a complete
// snapshot) and by the session on disconnect (Clear). Everything else
// reads copies.
package mirror

import (
	"sync"
	"time"

	"voting-token-client/internal/domain"
	"voting-token-client/internal/observability"
)

// Store is an in-memory snapshot holder, replaced wholesale on refresh.
type Store struct {
	mu       sync.RWMutex
	snap     *domain.Snapshot
	version  uint64
	loadedAt time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{snap: domain.EmptySnapshot()}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// View calls fn with the current snapshot under the read lock. fn must not
// retain or modify it.
func (s *Store) View(fn func(*domain.Snapshot)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.snap)
}

// HasVoted reports the mirrored vote status for a round.
func (s *Store) HasVoted(roundID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.HasVoted(roundID)
}

// Replace swaps in a copy of snap and returns the new version.
func (s *Store) Replace(snap *domain.Snapshot) uint64 {
	if snap == nil {
		snap = domain.EmptySnapshot()
	}
	cp := snap.Clone()
	now := time.Now()

	s.mu.Lock()
	s.snap = cp
	s.version++
	s.loadedAt = now
	version := s.version
	s.mu.Unlock()

	observability.UpdateMirror(version, len(cp.Rounds), now.Unix())
	return version
}

// Clear resets the store to the empty snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.snap = domain.EmptySnapshot()
	s.version++
	s.loadedAt = time.Time{}
	version := s.version
	s.mu.Unlock()

	observability.UpdateMirror(version, 0, 0)
}

// Version increments on every Replace and Clear.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// LoadedAt returns when the current snapshot was stored. Zero when empty.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
