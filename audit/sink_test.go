package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openclaw/conductor/audit"
)

func mustOpen(t *testing.T, path string) *audit.Sink {
	t.Helper()
	s, err := audit.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSinkAppendWritesJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s := mustOpen(t, path)

	if err := s.Append(audit.EventStarted, map[string]any{"wrapped_command": "claude"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(data[:len(data)-1], &line); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", data, err)
	}
	if line["event"] != audit.EventStarted {
		t.Errorf("event = %v, want %q", line["event"], audit.EventStarted)
	}
	if line["wrapped_command"] != "claude" {
		t.Errorf("wrapped_command = %v, want claude", line["wrapped_command"])
	}
	if _, ok := line["ts"]; !ok {
		t.Error("expected ts field")
	}
}

func TestSinkAppendIsOrderPreservingAndAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s := mustOpen(t, path)

	events := []string{audit.EventRequestDetected, audit.EventAutoApproved, audit.EventInjection}
	for _, e := range events {
		if err := s.Append(e, nil); err != nil {
			t.Fatalf("Append(%s) failed: %v", e, err)
		}
	}
	_ = s.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var got []string
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		got = append(got, line["event"].(string))
	}
	if len(got) != len(events) {
		t.Fatalf("got %d lines, want %d", len(got), len(events))
	}
	for i, e := range events {
		if got[i] != e {
			t.Errorf("line %d = %q, want %q", i, got[i], e)
		}
	}
}

func TestSinkOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.jsonl")
	s := mustOpen(t, path)
	if err := s.Append(audit.EventStarted, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestNopSinkDiscardsRecords(t *testing.T) {
	var n audit.NopSink
	if err := n.Append(audit.EventStarted, map[string]any{"x": 1}); err != nil {
		t.Fatalf("NopSink.Append returned error: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("NopSink.Close returned error: %v", err)
	}
}

func TestNilSinkAppendIsSafe(t *testing.T) {
	var s *audit.Sink
	if err := s.Append(audit.EventStarted, nil); err != nil {
		t.Fatalf("nil *Sink Append should be a no-op, got: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil *Sink Close should be a no-op, got: %v", err)
	}
}
