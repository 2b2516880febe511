package sessions

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticResolver(t *testing.T) {
	resolver := NewStaticResolver()
	resolver.AddSession("sess-123", &User{ID: "user-1", Email: "u@example.com"})

	t.Run("resolves known session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil)
		req.Header.Set("Authorization", "Bearer sess-123")

		user, err := resolver.ResolveSession(req)
		if err != nil {
			t.Fatalf("ResolveSession() error = %v", err)
		}
		if user.ID != "user-1" {
			t.Errorf("user.ID = %q, want user-1", user.ID)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil)
		req.Header.Set("Authorization", "Bearer nope")

		if _, err := resolver.ResolveSession(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("ResolveSession() error = %v, want ErrNoSession", err)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil)

		if _, err := resolver.ResolveSession(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("ResolveSession() error = %v, want ErrNoSession", err)
		}
	})

	t.Run("removed session", func(t *testing.T) {
		resolver.RemoveSession("sess-123")

		req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil)
		req.Header.Set("Authorization", "Bearer sess-123")

		if _, err := resolver.ResolveSession(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("ResolveSession() error = %v, want ErrNoSession", err)
		}
	})
}

func TestResolverFunc(t *testing.T) {
	called := false
	resolver := ResolverFunc(func(r *http.Request) (*User, error) {
		called = true
		return &User{ID: "fn-user"}, nil
	})

	user, err := resolver.ResolveSession(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if !called {
		t.Error("wrapped function was not called")
	}
	if user.ID != "fn-user" {
		t.Errorf("user.ID = %q, want fn-user", user.ID)
	}
}
