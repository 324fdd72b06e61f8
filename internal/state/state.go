package state

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/filter"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Session is one loaded dataset and the filter selection applied to it
type Session struct {
	ID         string
	Source     string
	Dataset    *dashboard.Dataset
	Filters    *filter.Set
	Created    time.Time
	LastAccess time.Time
}

// Store holds live sessions keyed by id
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a dataset under a fresh id with the default filters
func (s *Store) Create(source string, ds *dashboard.Dataset) Session {
	base, _ := ds.Filters()
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Source:     source,
		Dataset:    ds,
		Filters:    base,
		Created:    now,
		LastAccess: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return *sess
}

// Get returns a copy of the session and marks it as accessed
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.LastAccess = s.now()
	return *sess, nil
}

// SetFilters replaces the filter selection of a session
func (s *Store) SetFilters(id string, set *filter.Set) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.Filters = set
	sess.LastAccess = s.now()
	return *sess, nil
}

// Delete drops a session. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// List returns all sessions, oldest first
func (s *Store) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Purge removes sessions idle for longer than maxIdle and returns how many
// were removed
func (s *Store) Purge(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
