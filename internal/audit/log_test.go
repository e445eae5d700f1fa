package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithIdentity(ctx, auth.Identity{ID: 42, Email: "admin@univ.edu", Role: auth.RoleAdmin})

	if err := LogEvent(ctx, "catalog.group.deleted", map[string]any{"group_id": 7}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "catalog.group.deleted" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != float64(42) {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	if entry["user_role"] != "ADMIN" {
		t.Fatalf("unexpected user role: %v", entry["user_role"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["group_id"] != float64(7) {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventAnonymousAndValidation(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
	if err := LogEvent(context.Background(), "auth.login.failed", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if _, ok := entry["user_id"]; ok {
		t.Fatal("anonymous event must not carry a user id")
	}
}

func TestLogEventRedactsSecrets(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	fields := map[string]any{"email": "s@univ.edu", "Password": "hunter22", "refresh_token": "eyJ..."}
	if err := LogEvent(context.Background(), "auth.refresh.failed", fields); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("hunter22")) || bytes.Contains(buf.Bytes(), []byte("eyJ")) {
		t.Fatalf("secret leaked into audit log: %s", buf.String())
	}
	if fields["Password"] != "hunter22" {
		t.Fatal("caller's map must not be modified")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	got := entry["fields"].(map[string]any)
	if got["email"] != "s@univ.edu" || got["Password"] != redacted {
		t.Fatalf("unexpected fields: %v", got)
	}
}
