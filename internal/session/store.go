package session

import (
	"sync"

	"github.com/vipguy/Bing4/internal/model"
)

// Store is the ordered, newest-first collection of generation sessions.
// Pollers write to it from their own goroutines, so every access is guarded.
type Store struct {
	mu       sync.RWMutex
	sessions []model.Session // newest first
	index    map[string]int  // id -> position in sessions
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// InsertFront adds s as the newest session. A record with the same id is
// dropped first so ids stay unique.
func (s *Store) InsertFront(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[sess.ID]; ok {
		s.sessions = append(s.sessions[:pos], s.sessions[pos+1:]...)
	}
	s.sessions = append([]model.Session{sess}, s.sessions...)
	s.reindex()
}

// Replace overwrites the record with sess.ID in full. No field of the prior
// record survives. Returns false, changing nothing, when the id is unknown.
func (s *Store) Replace(sess model.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[sess.ID]
	if !ok {
		return false
	}
	s.sessions[pos] = sess
	return true
}

// Reload discards local state and adopts list in the order given
func (s *Store) Reload(list []model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make([]model.Session, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, sess := range list {
		if seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true
		s.sessions = append(s.sessions, sess)
	}
	s.reindex()
}

// List returns a snapshot of all sessions, newest first
func (s *Store) List() []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Get returns the session with id
func (s *Store) Get(id string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return model.Session{}, false
	}
	return s.sessions[pos], true
}

// Len returns the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// reindex rebuilds the id index. Caller holds the write lock.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.sessions))
	for i, sess := range s.sessions {
		s.index[sess.ID] = i
	}
}
