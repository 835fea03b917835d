package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestWithContextAddsRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-9")
	log.WithContext(ctx).StateTransition("incidence", "inc-1", "abierta", "asignada", "user-9")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"msg": "state_transition", "request_id": "req-1", "user_id": "user-9", "from": "abierta", "to": "asignada",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
}

func TestUpstreamFailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).UpstreamFailure("gotenberg", "convert", errors.New("502"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "WARN" || entry["upstream"] != "gotenberg" || entry["error"] != "502" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
