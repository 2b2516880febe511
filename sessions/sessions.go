// Package sessions defines how the issuer learns who the end user is.
// The authorization endpoint never authenticates users itself; it asks a
// Resolver supplied by the embedding application, which typically fronts a
// session cookie store or an SSO system.
package sessions

import (
	"errors"
	"net/http"
	"strings"
	"sync"
)

// ErrNoSession is returned when the request carries no authenticated
// user. The authorization endpoint maps it to 401.
var ErrNoSession = errors.New("sessions: no authenticated session")

// User is the authenticated end user behind an authorization request.
type User struct {
	ID    string
	Email string
	Name  string
}

// Resolver resolves the authenticated user from an incoming request.
// Implementations must return ErrNoSession (possibly wrapped) when the
// request is anonymous, and reserve other errors for infrastructure
// failures.
type Resolver interface {
	ResolveSession(r *http.Request) (*User, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(r *http.Request) (*User, error)

func (f ResolverFunc) ResolveSession(r *http.Request) (*User, error) {
	return f(r)
}

// StaticResolver maps bearer session tokens to users. It is intended for
// tests and local development; production deployments plug in their own
// Resolver.
type StaticResolver struct {
	mu       sync.RWMutex
	sessions map[string]*User
}

// NewStaticResolver creates an empty static resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{sessions: make(map[string]*User)}
}

// AddSession registers a session token for the given user.
func (s *StaticResolver) AddSession(sessionToken string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionToken] = user
}

// RemoveSession deletes a session token.
func (s *StaticResolver) RemoveSession(sessionToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionToken)
}

// ResolveSession looks up the user behind the request's bearer token.
func (s *StaticResolver) ResolveSession(r *http.Request) (*User, error) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return nil, ErrNoSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.sessions[strings.TrimPrefix(auth, prefix)]
	if !ok {
		return nil, ErrNoSession
	}
	return user, nil
}

var _ Resolver = (*StaticResolver)(nil)
var _ Resolver = (ResolverFunc)(nil)
