package session

import (
	"context"
	"sync"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
)

// Store holds the per-client auth state. It is owned by one Controller and
// read by everyone else; all mutation goes through the Controller.
type Store struct {
	mu sync.Mutex

	status       AuthStatus
	lastLoggedIn bool
	userID       string
	email        string

	// gen is bumped by every finalize and every grace schedule so a grace
	// re-check can tell whether it is still current.
	gen uint64

	pendingSignOut func(ctx context.Context)
	postLoginDone  bool
}

// NewStore returns a store in the Unauthenticated state.
func NewStore() *Store {
	return &Store{status: Unauthenticated()}
}

func (s *Store) Status() AuthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastLoggedIn is the last definitive login value.
func (s *Store) LastLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoggedIn
}

// UserID is the cached id of the last seen user, or "".
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Email is the identity currently shown to the user, or "".
func (s *Store) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Store) setIdentity(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID != "" {
		s.userID = u.ID
	}
	s.email = u.Email
}

func (s *Store) setUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

func (s *Store) clearEmail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = ""
}

func (s *Store) stashSignOut(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSignOut = fn
}

// claimPostLogin reports true exactly once per store.
func (s *Store) claimPostLogin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postLoginDone {
		return false
	}
	s.postLoginDone = true
	return true
}
