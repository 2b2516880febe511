package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{"enabled with logger", slog.Default(), true},
		{"disabled with logger", slog.Default(), false},
		{"enabled with nil logger", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestAuditor_LogEvent(t *testing.T) {
	t.Run("enabled logs event", func(t *testing.T) {
		var buf bytes.Buffer
		auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), true)

		auditor.LogEvent(Event{
			Type:     EventTokenIssued,
			UserID:   "user-123",
			ClientID: "client-abc",
		})

		out := buf.String()
		if !strings.Contains(out, "security_audit") {
			t.Error("log should contain security_audit message")
		}
		if !strings.Contains(out, EventTokenIssued) {
			t.Errorf("log should contain event type %s", EventTokenIssued)
		}
		if strings.Contains(out, "user-123") {
			t.Error("log must not contain the raw user ID")
		}
		if !strings.Contains(out, hashForLogging("user-123")) {
			t.Error("log should contain the hashed user ID")
		}
	})

	t.Run("disabled logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), false)

		auditor.LogEvent(Event{Type: EventTokenIssued, UserID: "user-123"})

		if buf.Len() != 0 {
			t.Errorf("disabled auditor wrote %q", buf.String())
		}
	})
}

func TestAuditor_LogCodeReplay(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), true)

	auditor.LogCodeReplay("user-1", "client-1", 3)

	out := buf.String()
	if !strings.Contains(out, EventCodeReplayDetected) {
		t.Error("log should contain replay event type")
	}
	if !strings.Contains(out, "tokens_revoked") {
		t.Error("log should record how many tokens were revoked")
	}
	if !strings.Contains(out, "critical") {
		t.Error("replay events should carry critical severity")
	}
}

func TestAuditor_LogAuthFailure(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), true)

	auditor.LogAuthFailure("user-1", "client-1", "192.0.2.1", "invalid_client_secret")

	out := buf.String()
	if !strings.Contains(out, EventAuthFailure) {
		t.Error("log should contain auth failure event type")
	}
	if !strings.Contains(out, "invalid_client_secret") {
		t.Error("log should contain the failure reason")
	}
	if !strings.Contains(out, "192.0.2.1") {
		t.Error("log should contain the client IP")
	}
}

func TestHashForLogging(t *testing.T) {
	h1 := hashForLogging("sensitive-value")
	h2 := hashForLogging("sensitive-value")
	h3 := hashForLogging("other-value")

	if h1 != h2 {
		t.Error("hash should be deterministic")
	}
	if h1 == h3 {
		t.Error("different inputs should hash differently")
	}
	if len(h1) != 16 {
		t.Errorf("hash length = %d, want 16", len(h1))
	}
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}
}
