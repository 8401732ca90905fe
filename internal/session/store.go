package session

import (
	"sync"
	"time"
)

// minCleanupInterval is the smallest allowed TTL to prevent degenerate ticker intervals.
const minCleanupInterval = time.Millisecond

// Record pairs a session's history with its eviction bookkeeping.
type Record struct {
	ID       string
	History  *History
	LastUsed time.Time
}

// Store is a thread-safe in-memory session registry with TTL eviction.
// Single-process only; a session that goes quiet for longer than the TTL is
// evicted by the background cleaner.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	ttl      time.Duration
	done     chan struct{} // closed by Close() to stop the cleanup goroutine
}

// NewStore creates a store with the given inactivity TTL and starts the
// eviction goroutine. Call Close() when the store is no longer needed.
func NewStore(ttl time.Duration) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	s := &Store{
		sessions: make(map[string]*Record),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// GetOrCreate returns the session's history, creating it (with the given
// system message) on first use.
func (s *Store) GetOrCreate(id, system string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		rec = &Record{ID: id, History: NewHistory(system)}
		s.sessions[id] = rec
	}
	rec.LastUsed = time.Now()
	return rec.History
}

// Get returns the session's history, or nil when the session does not exist.
// Reading refreshes the TTL.
func (s *Store) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil
	}
	rec.LastUsed = time.Now()
	return rec.History
}

// CompactSession folds the session's old segments and reports the stats.
// Unknown sessions return zero stats.
func (s *Store) CompactSession(id string, keepLast int) CompactStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return CompactStats{}
	}
	msgs, stats := Compact(rec.History.Messages(), keepLast)
	rec.History.Replace(msgs)
	rec.LastUsed = time.Now()
	return stats
}

// Delete explicitly removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
}

// cleanupLoop periodically removes sessions that have exceeded the TTL.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			cutoff := time.Now().Add(-s.ttl)
			for id, rec := range s.sessions {
				if rec.LastUsed.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
