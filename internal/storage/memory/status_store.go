// Package memory provides in-process implementations of the storage
// interfaces for single-node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/store"
)

// DefaultTTL is how long a record stays readable after its last write.
const DefaultTTL = 24 * time.Hour

type entry struct {
	rec       generation.ProgressRecord
	expiresAt time.Time
}

// StatusStore keeps progress records in a map guarded by an RWMutex.
// Records are copied on the way in and out.
type StatusStore struct {
	mu      sync.RWMutex
	records map[string]entry
	ttl     time.Duration
	clock   clock.Clock
}

var _ store.StatusStore = (*StatusStore)(nil)

// NewStatusStore constructs a StatusStore. A non-positive ttl selects
// DefaultTTL and a nil clock selects the system clock.
func NewStatusStore(ttl time.Duration, clk clock.Clock) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &StatusStore{
		records: make(map[string]entry),
		ttl:     ttl,
		clock:   clk,
	}
}

// Get returns the live record for clientID.
func (s *StatusStore) Get(_ context.Context, clientID string) (generation.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[clientID]
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return generation.ProgressRecord{}, store.ErrNotFound
	}
	return e.rec.Clone(), nil
}

// Put overwrites the record for rec.ClientID.
func (s *StatusStore) Put(_ context.Context, rec generation.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ClientID] = entry{
		rec:       rec.Clone(),
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes the record for clientID.
func (s *StatusStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.records, clientID)
	s.mu.Unlock()
	return nil
}

// Sweep drops every record that expired at or before now.
func (s *StatusStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many records are held, expired or not.
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
