package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/campusbbs/models"
)

func TestSessionLifecycle(t *testing.T) {
	s := New()
	assert.False(t, s.IsLoggedIn())
	assert.Nil(t, s.CurrentUser())

	s.ClearSession()
	assert.False(t, s.IsLoggedIn())

	a := models.NewUser("1", "a", "")
	b := models.NewUser("2", "b", "")
	s.StartSession(a)
	assert.True(t, s.IsLoggedIn())
	assert.Same(t, a, s.CurrentUser())

	s.StartSession(b)
	assert.Same(t, b, s.CurrentUser())

	s.ClearSession()
	assert.False(t, s.IsLoggedIn())
}

func TestSessionsAreIndependent(t *testing.T) {
	a := For(models.NewUser("1", "a", ""))
	b := New()
	assert.True(t, a.IsLoggedIn())
	assert.False(t, b.IsLoggedIn())

	var nilSession *Session
	assert.False(t, nilSession.IsLoggedIn())
}

func TestLoginLogoutAliases(t *testing.T) {
	s := New()
	u := models.NewUser("1", "a", "")
	s.Login(u)
	assert.Same(t, u, s.CurrentUser())
	s.Logout()
	assert.False(t, s.IsLoggedIn())
}
