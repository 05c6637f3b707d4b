package interceptor

import (
	"sync"
	"testing"
	"time"
)

func TestAnalysisBufferFlushesOnSize(t *testing.T) {
	var mu sync.Mutex
	var flushed []string

	b := newAnalysisBuffer(8, time.Hour, func(text string) {
		mu.Lock()
		flushed = append(flushed, text)
		mu.Unlock()
	})
	t.Cleanup(b.Stop)

	b.Append([]byte("12345678"))

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || flushed[0] != "12345678" {
		t.Fatalf("flushed = %v, want one flush of the full chunk", flushed)
	}
}

func TestAnalysisBufferFlushesOnInterval(t *testing.T) {
	flushedCh := make(chan string, 1)

	b := newAnalysisBuffer(1<<20, 20*time.Millisecond, func(text string) {
		flushedCh <- text
	})
	t.Cleanup(b.Stop)

	b.Append([]byte("hello"))

	select {
	case got := <-flushedCh:
		if got != "hello" {
			t.Fatalf("flushed = %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for interval flush")
	}
}

func TestAnalysisBufferEmptyFlushIsNoop(t *testing.T) {
	calls := 0
	b := newAnalysisBuffer(8, time.Hour, func(string) { calls++ })
	t.Cleanup(b.Stop)

	b.Flush()

	if calls != 0 {
		t.Fatalf("expected no flush callback on empty buffer, got %d", calls)
	}
}

func TestAnalysisBufferResetsAfterFlush(t *testing.T) {
	var flushed []string
	b := newAnalysisBuffer(4, time.Hour, func(text string) {
		flushed = append(flushed, text)
	})
	t.Cleanup(b.Stop)

	b.Append([]byte("abcd"))
	b.Append([]byte("ef"))
	b.Flush()

	if len(flushed) != 2 {
		t.Fatalf("flushed = %v, want 2 entries", flushed)
	}
	if flushed[0] != "abcd" || flushed[1] != "ef" {
		t.Fatalf("flushed = %v, want [abcd ef]", flushed)
	}
}
