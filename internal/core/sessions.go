package core

// sessions.go keeps one RecordTable per browser session.
//
// Tables live in memory only. A background sweeper closes tables that have
// not been used for the configured TTL so abandoned sessions do not hold
// datasets forever.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a session id has no table.
var ErrSessionNotFound = errors.New("session not found")

// TableFactory creates the table for a new session.
type TableFactory func() *RecordTable

// Sessions is a registry of tables keyed by session id.
type Sessions struct {
	newTable TableFactory

	mu     sync.RWMutex
	tables map[string]*RecordTable
}

// NewSessions creates an empty registry that builds tables with factory.
func NewSessions(factory TableFactory) *Sessions {
	return &Sessions{
		newTable: factory,
		tables:   make(map[string]*RecordTable),
	}
}

// Get returns the table for id.
func (s *Sessions) Get(id string) (*RecordTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	return t, ok
}

// Create registers a new table under id, replacing and closing any table
// already registered there.
func (s *Sessions) Create(id string) *RecordTable {
	t := s.newTable()

	s.mu.Lock()
	old, exists := s.tables[id]
	s.tables[id] = t
	s.mu.Unlock()

	if exists {
		old.Close()
	}
	return t
}

// Remove closes and drops the table for id.
func (s *Sessions) Remove(id string) error {
	s.mu.Lock()
	t, ok := s.tables[id]
	delete(s.tables, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	t.Close()
	return nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

// Sweep closes tables idle for longer than ttl as of now.
// Returns the number of sessions removed.
func (s *Sessions) Sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	var expired []*RecordTable
	for id, t := range s.tables {
		if now.Sub(t.LastUsed()) > ttl {
			expired = append(expired, t)
			delete(s.tables, id)
		}
	}
	s.mu.Unlock()

	for _, t := range expired {
		t.Close()
	}
	return len(expired)
}

// Close closes every table and empties the registry.
func (s *Sessions) Close() {
	s.mu.Lock()
	tables := s.tables
	s.tables = make(map[string]*RecordTable)
	s.mu.Unlock()

	for _, t := range tables {
		t.Close()
	}
}

// StartSweeper removes idle sessions every interval until ctx is cancelled.
// Run it in its own goroutine.
func (s *Sessions) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", ttl.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case now := <-ticker.C:
			if removed := s.Sweep(now, ttl); removed > 0 {
				slog.Info("expired idle sessions",
					"removed", removed,
					"active", s.Len(),
				)
			}
		}
	}
}
