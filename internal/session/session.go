// Package session holds per-process authentication state with an explicit
// lifecycle: login populates it, logout or an unauthorized response clears it.
// It replaces ambient global token access; anything issuing requests receives
// a *Session.
package session

import (
	"net/http"
	"sync"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	token  string
	user   *model.User
	logger logging.Logger
}

func New(logger logging.Logger) *Session {
	return &Session{
		logger: logger.With(logging.Field{Key: "component", Value: "session"}),
	}
}

// Init stores the bearer token and user returned by a successful login.
func (s *Session) Init(token string, user *model.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if user != nil {
		s.logger.Info("session initialized", logging.Field{Key: "username", Value: user.Username})
	} else {
		s.logger.Info("session initialized")
	}
}

// Clear discards the token and user. Called on logout and on any 401 response.
func (s *Session) Clear() {
	s.mu.Lock()
	cleared := s.token != ""
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if cleared {
		s.logger.Info("session cleared")
	}
}

// Token returns the current bearer token, empty when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the current user, nil when unauthenticated.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Apply sets the Authorization header on req when a token is present.
func (s *Session) Apply(req *model.Request) {
	token := s.Token()
	if token == "" {
		return
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	req.Headers.Set("Authorization", "Bearer "+token)
}

// HandleUnauthorized clears the session in reaction to a 401 response.
func (s *Session) HandleUnauthorized() {
	s.logger.Warn("unauthorized response, dropping credentials")
	s.Clear()
}
