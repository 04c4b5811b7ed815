// Package flowcache provides a process-local TTL cache of flow lists keyed
// by context id. It backs the chat engine's optimistic merges and refreshes
// lists from the backend when they are invalidated.
package flowcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/myflowhq/flowsync/internal/domain"
)

// DefaultTTL is how long a cached list stays fresh.
const DefaultTTL = 5 * time.Minute

// refreshTimeout bounds a single background refresh call.
const refreshTimeout = 10 * time.Second

// LoadFunc fetches the authoritative flow list for a context. It runs on
// background refreshes triggered by Invalidate.
type LoadFunc func(ctx context.Context, contextID string) ([]domain.Flow, error)

type entry struct {
	flows     []domain.Flow
	expiresAt time.Time
}

// Store is an in-memory TTL cache of flow lists. It is safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	load    LoadFunc
	logger  *slog.Logger
}

// New creates a store. load may be nil, in which case Invalidate only
// evicts instead of refreshing. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, load LoadFunc, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		load:    load,
		logger:  logger,
	}
}

// GetList returns a copy of the cached list for a context. It reports false
// when nothing is cached or the entry has expired.
func (s *Store) GetList(contextID string) ([]domain.Flow, bool) {
	s.mu.RLock()
	e, ok := s.entries[contextID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent SetList may have
		// refreshed the entry in the meantime.
		if cur, still := s.entries[contextID]; still && time.Now().After(cur.expiresAt) {
			delete(s.entries, contextID)
		}
		s.mu.Unlock()
		return nil, false
	}
	out := make([]domain.Flow, len(e.flows))
	copy(out, e.flows)
	return out, true
}

// SetList replaces the cached list for a context and restarts its TTL.
func (s *Store) SetList(contextID string, flows []domain.Flow) {
	cp := make([]domain.Flow, len(flows))
	copy(cp, flows)
	s.mu.Lock()
	s.entries[contextID] = entry{flows: cp, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// Invalidate marks a context's list out of date. With a loader configured
// the stale list keeps serving reads while a background refresh replaces
// it; without one the entry is evicted immediately.
func (s *Store) Invalidate(contextID string) {
	if s.load == nil {
		s.mu.Lock()
		delete(s.entries, contextID)
		s.mu.Unlock()
		return
	}
	go s.refresh(contextID)
}

// Clear drops every cached list.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len returns the number of cached lists, counting expired entries that
// have not been swept yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) refresh(contextID string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	flows, err := s.load(ctx, contextID)
	if err != nil {
		s.logger.Warn("[flowcache] refresh failed", "context_id", contextID, "error", err)
		return
	}
	s.SetList(contextID, flows)
	s.logger.Debug("[flowcache] list refreshed", "context_id", contextID, "count", len(flows))
}

// StartSweeper runs a background goroutine that periodically evicts expired
// entries until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					s.logger.Debug("[flowcache] swept expired entries", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Store) sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
