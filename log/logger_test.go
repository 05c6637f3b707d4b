package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWithOutputWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New().WithOutput(&buf)

	l.Info("request detected", map[string]any{"kind": "url-visit"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "request detected" {
		t.Fatalf("message = %v, want %q", entry["message"], "request detected")
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
}

func TestWithRequestAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	l := New().WithOutput(&buf).WithRequest("req-123", "url-visit")

	l.Warn("forward delivery failed", nil)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Fatalf("expected request_id field in %q", out)
	}
	if !strings.Contains(out, `"kind":"url-visit"`) {
		t.Fatalf("expected kind field in %q", out)
	}
}

func TestSugaredLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	s := New().WithOutput(&buf).Sugar()

	s.Infof("resolved %s after %d ms", "req-1", 42)

	if !strings.Contains(buf.String(), "resolved req-1 after 42 ms") {
		t.Fatalf("unexpected sugared output: %q", buf.String())
	}
}
