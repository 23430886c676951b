package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright/fdkit/internal/core"
)

// Store manages session records in memory.
type Store struct {
	sessions map[string]*Record
	order    []string // Track insertion order for eviction
	maxSize  int
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewStore creates a new session store. Records beyond maxSize evict oldest
// first; records older than ttl go away on Prune.
func NewStore(maxSize int, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Record),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		ttl:      ttl,
	}
}

// Create registers a new running session for the given command and returns it.
func (s *Store) Create(argv []string, dir string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:        uuid.NewString(),
		Argv:      argv,
		Dir:       dir,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	// Evict oldest if at capacity
	if len(s.sessions) >= s.maxSize && len(s.order) > 0 {
		oldest := s.order[0]
		delete(s.sessions, oldest)
		s.order = s.order[1:]
	}

	s.sessions[rec.ID] = rec
	s.order = append(s.order, rec.ID)

	return rec
}

// Get retrieves a session by ID.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	// Return copy to prevent race conditions
	recCopy := *rec
	return &recCopy, nil
}

// Update modifies a session using an update function.
func (s *Store) Update(id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}

	fn(rec)
	return nil
}

// List returns all sessions in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.sessions))
	for _, id := range s.order {
		result = append(result, *s.sessions[id])
	}
	return result
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops finished sessions older than the store's TTL and returns how
// many were removed. Running sessions are never pruned.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-s.ttl)
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		rec := s.sessions[id]
		if rec.Status != StatusRunning && !rec.FinishedAt.IsZero() && rec.FinishedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}
