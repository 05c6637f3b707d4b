package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openclaw/conductor/analyzer"
	"github.com/openclaw/conductor/audit"
	"github.com/openclaw/conductor/executor"
	"github.com/openclaw/conductor/forwarder"
	"github.com/openclaw/conductor/gateway"
	"github.com/openclaw/conductor/injector"
	"github.com/openclaw/conductor/interceptor"
	"github.com/openclaw/conductor/orchestrator"
	"github.com/openclaw/conductor/types"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(context.Context, string) (analyzer.Result, error) {
	return analyzer.Result{}, nil
}

type fakeStdin struct{}

func (fakeStdin) Inject([]byte) error { return nil }

type fakePlane struct{}

func (fakePlane) Status(context.Context) (bool, error) { return true, nil }
func (fakePlane) Start(context.Context) error          { return nil }
func (fakePlane) Dispatch(_ context.Context, action types.BrowserAction, _ time.Duration) (types.ActionResult, error) {
	return types.Ok(action, "data", ""), nil
}
func (fakePlane) Close() error { return nil }

func newTestGateway(t *testing.T, defaultTimeout time.Duration) *gateway.Gateway {
	t.Helper()
	gw := gateway.New(defaultTimeout, nil)

	o, err := orchestrator.New(
		interceptor.Config{Command: "true"},
		orchestrator.Config{ConfidenceThreshold: 0.5, AuthTimeout: time.Minute},
		orchestrator.Dependencies{
			Analyzer:    fakeAnalyzer{},
			Forwarder:   forwarder.New(nil, time.Hour, nil, nil),
			Executor:    executor.New(fakePlane{}, time.Second, false),
			Injector:    injector.New(fakeStdin{}),
			Audit:       audit.NopSink{},
			OnRequested: gw.OnRequested,
			OnResolved:  gw.OnResolved,
		},
	)
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	gw.Attach(o)
	return gw
}

func rpcCall(t *testing.T, ts *httptest.Server, method string, params any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestStatusEmpty(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.status", nil)
	if out["error"] != nil {
		t.Fatalf("unexpected error: %v", out["error"])
	}
	result := out["result"].(map[string]any)
	if result["pendingCount"].(float64) != 0 {
		t.Fatalf("pendingCount = %v, want 0", result["pendingCount"])
	}
}

func TestResolveUnknownIDReturnsError(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.resolve", map[string]any{"id": "does-not-exist", "decision": "approve"})
	errObj, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error, got %v", out)
	}
	if errObj["code"] != "UnknownRequestId" {
		t.Fatalf("code = %v, want UnknownRequestId", errObj["code"])
	}
}

func TestUnknownMethod(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.bogus", nil)
	errObj, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error, got %v", out)
	}
	if errObj["code"] != "UnknownMethod" {
		t.Fatalf("code = %v, want UnknownMethod", errObj["code"])
	}
}

func TestRequestRequiresSummaryOrURL(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.request", map[string]any{})
	errObj, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error, got %v", out)
	}
	if errObj["code"] != "InvalidParams" {
		t.Fatalf("code = %v, want InvalidParams", errObj["code"])
	}
}

// TestRequestResolveRoundTrip drives conductor.request from one goroutine
// (it blocks until resolved) and resolves it from another via
// conductor.resolve, then checks the blocked call observed the decision.
func TestRequestResolveRoundTrip(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	done := make(chan map[string]any, 1)
	go func() {
		done <- rpcCall(t, ts, "conductor.request", map[string]any{"summary": "open dashboard", "url": "https://example.com"})
	}()

	var id string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status := rpcCall(t, ts, "conductor.status", nil)
		result := status["result"].(map[string]any)
		pending := result["pending"].([]any)
		if len(pending) == 1 {
			id = pending[0].(map[string]any)["id"].(string)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("timed out waiting for request to appear pending")
	}

	resolveOut := rpcCall(t, ts, "conductor.resolve", map[string]any{"id": id, "decision": "approve", "resolver": "operator-1"})
	if resolveOut["error"] != nil {
		t.Fatalf("resolve error: %v", resolveOut["error"])
	}

	select {
	case out := <-done:
		result := out["result"].(map[string]any)
		if result["decision"] != "approve" {
			t.Fatalf("decision = %v, want approve", result["decision"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for conductor.request to return")
	}
}

func TestStats(t *testing.T) {
	gw := newTestGateway(t, time.Minute)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.stats", nil)
	if out["error"] != nil {
		t.Fatalf("unexpected error: %v", out["error"])
	}
	result := out["result"].(map[string]any)
	if result["RequestsDetected"].(float64) != 0 {
		t.Fatalf("RequestsDetected = %v, want 0", result["RequestsDetected"])
	}
}

func TestRequestTimesOut(t *testing.T) {
	gw := newTestGateway(t, 20*time.Millisecond)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	out := rpcCall(t, ts, "conductor.request", map[string]any{"summary": "slow operator"})
	result := out["result"].(map[string]any)
	if result["decision"] != "deny" {
		t.Fatalf("decision = %v, want deny", result["decision"])
	}
	if result["resolvedBy"] != types.ResolvedByTimeout {
		t.Fatalf("resolvedBy = %v, want %v", result["resolvedBy"], types.ResolvedByTimeout)
	}
}
