package submission

import (
	"sync"
	"time"
)

// Store holds every live session under two indices: byUser for the
// collection phase and byListing for moderation correlation. One record,
// two keys; Complete moves a session from the first index to pending
// status, Resolve removes it for good. Field mutation is serialized per
// session via Session.mu, so the store mutex only guards index membership.
type Store struct {
	mu        sync.RWMutex
	byUser    map[int64]*Session
	byListing map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		byUser:    make(map[int64]*Session),
		byListing: make(map[string]*Session),
	}
}

// Create registers a fresh collecting session for the user, silently
// replacing any submission the user had in progress. A pending record the
// same user already has in moderation is keyed by listing id and is not
// touched.
func (s *Store) Create(sess *Session) {
	sess.Stage = StageWaitingPhotos
	sess.Status = StatusCollecting
	sess.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byUser[sess.UserID]; ok {
		delete(s.byListing, old.ListingID)
	}
	s.byUser[sess.UserID] = sess
	s.byListing[sess.ListingID] = sess
}

// Get returns the user's collecting session, or nil.
func (s *Store) Get(userID int64) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUser[userID]
}

// Complete flips the user's session from collecting to pending moderation
// and drops it from the user index, all in one critical section. The caller
// passes the session it finished collecting; if the user key meanwhile
// points at a different session (the seller restarted mid-completion),
// nothing changes and nil is returned, so a restart can never enqueue the
// fresh, empty session nor lose the finished one.
func (s *Store) Complete(userID int64, expected *Session) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok || sess != expected {
		return nil
	}
	delete(s.byUser, userID)
	sess.Status = StatusPending
	return sess
}

// Resolve looks up a pending record by listing id and unconditionally
// removes it. The lookup and removal form one critical section, so a
// listing id can be resolved at most once; later calls report a miss.
func (s *Store) Resolve(listingID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byListing[listingID]
	if !ok || sess.Status != StatusPending {
		return nil, false
	}
	delete(s.byListing, listingID)
	return sess, true
}

// Remove discards the user's collecting session, if any.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byUser[userID]; ok {
		delete(s.byUser, userID)
		delete(s.byListing, sess.ListingID)
	}
}

// Counts reports how many sessions are collecting and how many are pending
// moderation.
func (s *Store) Counts() (collecting, pending int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collecting = len(s.byUser)
	pending = len(s.byListing) - collecting
	return collecting, pending
}
