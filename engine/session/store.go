// Package session stores per-session conversation transcripts with TTL
// eviction. Appends for the same session id are serialized so the
// first-turn greeting check never races.
package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arogyalabs/carefind/engine/domain"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// Store holds append-only transcripts keyed by session id.
type Store struct {
	cache *gocache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache: gocache.New(ttl, ttl/2),
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-session mutex, creating it on first use. Lock
// entries are tiny and bounded by active session count, so they are never
// reaped.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) history(id string) []domain.Turn {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil
	}
	return v.([]domain.Turn)
}

// Append adds turns to a session transcript, refreshing its TTL.
func (s *Store) Append(id string, turns ...domain.Turn) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	s.cache.SetDefault(id, append(s.history(id), turns...))
}

// AppendIfEmpty adds turns only when the session has no transcript yet.
// Returns true when the turns were written. The per-session lock makes the
// check-then-write atomic.
func (s *Store) AppendIfEmpty(id string, turns ...domain.Turn) bool {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	if len(s.history(id)) > 0 {
		return false
	}
	s.cache.SetDefault(id, turns)
	return true
}

// History returns a copy of the session transcript, empty if expired or
// unknown.
func (s *Store) History(id string) []domain.Turn {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	h := s.history(id)
	out := make([]domain.Turn, len(h))
	copy(out, h)
	return out
}

// Len returns the number of turns in a session transcript.
func (s *Store) Len(id string) int {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	return len(s.history(id))
}
