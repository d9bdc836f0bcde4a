package session_test

import (
	"testing"

	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
	"github.com/raysh454/redline/internal/session"
)

func TestApply_SetsBearerHeader(t *testing.T) {
	t.Parallel()
	s := session.New(logging.Nop{})
	s.Init("tok-123", &model.User{ID: 1, Username: "demo"})

	req := &model.Request{Method: "GET", URL: "http://example.test"}
	s.Apply(req)

	if got := req.Headers.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestApply_NoToken_LeavesRequestUntouched(t *testing.T) {
	t.Parallel()
	s := session.New(logging.Nop{})
	req := &model.Request{Method: "GET", URL: "http://example.test"}
	s.Apply(req)

	if req.Headers.Get("Authorization") != "" {
		t.Error("unauthenticated session must not set Authorization")
	}
}

func TestHandleUnauthorized_ClearsCredentials(t *testing.T) {
	t.Parallel()
	s := session.New(logging.Nop{})
	s.Init("tok", &model.User{ID: 1, Username: "demo"})

	s.HandleUnauthorized()

	if s.Authenticated() {
		t.Error("session still authenticated after 401")
	}
	if s.User() != nil {
		t.Error("user survived 401")
	}
}
