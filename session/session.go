// Package session tracks which user is acting. A Session is an ordinary value:
// the application builds one and passes it to whatever needs the current user.
package session

import (
	"sync"

	"github.com/cppla/campusbbs/models"
)

// Session holds at most one current user.
type Session struct {
	mu   sync.RWMutex
	user *models.User
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// For returns a session already bound to u.
func For(u *models.User) *Session {
	s := New()
	s.StartSession(u)
	return s
}

// StartSession replaces the current user unconditionally.
func (s *Session) StartSession(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// ClearSession drops the current user, if any.
func (s *Session) ClearSession() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// Login is StartSession.
func (s *Session) Login(u *models.User) { s.StartSession(u) }

// Logout is ClearSession.
func (s *Session) Logout() { s.ClearSession() }

// CurrentUser returns the bound user or nil.
func (s *Session) CurrentUser() *models.User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) IsLoggedIn() bool {
	return s.CurrentUser() != nil
}
