// Package conversation holds per-user chat history for the lifetime of the
// process. History is never evicted and is lost on restart.
package conversation

import "sync"

// Store maps user IDs to ordered conversation histories. The map itself is
// guarded by a mutex that is never held across network calls; callers that
// need the whole append/read sequence for one user to be serialized against
// concurrent events take LockUser for the duration of the event.
type Store struct {
	mu        sync.Mutex
	histories map[string][]Entry
	userLocks map[string]*sync.Mutex
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		histories: make(map[string][]Entry),
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Append adds an entry to the end of the user's history, creating the
// history if the user is unseen.
func (s *Store) Append(userID string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[userID] = append(s.histories[userID], e)
}

// History returns a snapshot copy of the user's history in insertion order.
// An unseen user gets an empty history, not an error.
func (s *Store) History(userID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.histories[userID]
	out := make([]Entry, len(h))
	copy(out, h)
	return out
}

// Len returns the number of entries recorded for the user.
func (s *Store) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories[userID])
}

// LockUser acquires the per-user lock and returns the unlock function.
// Concurrent events for the same user are serialized by holding this lock
// across the whole event; events for different users do not contend.
func (s *Store) LockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
