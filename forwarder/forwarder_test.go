package forwarder_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openclaw/conductor/forwarder"
	"github.com/openclaw/conductor/types"
)

// stubTarget records every Send call for testing.
type stubTarget struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (s *stubTarget) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errFailedSend
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubTarget) Close() error { return nil }

func (s *stubTarget) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

var errFailedSend = stubSendError{}

type stubSendError struct{}

func (stubSendError) Error() string { return "stub send failed" }

func newRequest(id string) *types.Request {
	now := time.Now()
	return &types.Request{
		ID:        id,
		Kind:      types.KindURLVisit,
		Summary:   "visit dashboard",
		URL:       "https://example.com/dashboard",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
}

func waitForAuth(t *testing.T, ch <-chan types.Authorization) types.Authorization {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for authorization")
		return types.Authorization{}
	}
}

func TestRequestAuthorizationDeliversToAllTargets(t *testing.T) {
	t1, t2 := &stubTarget{}, &stubTarget{}
	f := forwarder.New([]forwarder.Target{t1, t2}, time.Hour, nil, nil)
	defer f.Stop()

	f.RequestAuthorization(newRequest("req-00000001"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(t1.snapshot()) == 1 && len(t2.snapshot()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(t1.snapshot()) != 1 || len(t2.snapshot()) != 1 {
		t.Fatalf("expected both targets to receive the prompt, got %v / %v", t1.snapshot(), t2.snapshot())
	}
}

func TestHandleInboundMatchesByRequestID(t *testing.T) {
	f := forwarder.New(nil, time.Hour, nil, nil)
	defer f.Stop()

	req := newRequest("abcd1234-rest-of-uuid")
	authCh := make(chan types.Authorization, 1)
	f.OnAuthorization(func(a types.Authorization) { authCh <- a })
	f.RequestAuthorization(req)

	f.HandleInbound("sms", "+15555550100", "yes, approving abcd1234 go ahead")

	auth := waitForAuth(t, authCh)
	if auth.RequestID != req.ID {
		t.Fatalf("RequestID = %q, want %q", auth.RequestID, req.ID)
	}
	if auth.ResolvedBy != "sms:+15555550100" {
		t.Fatalf("ResolvedBy = %q, want sms:+15555550100", auth.ResolvedBy)
	}
}

func TestHandleInboundSoleRequestApproval(t *testing.T) {
	f := forwarder.New(nil, time.Hour, nil, nil)
	defer f.Stop()

	req := newRequest("only-pending-request")
	authCh := make(chan types.Authorization, 1)
	f.OnAuthorization(func(a types.Authorization) { authCh <- a })
	f.RequestAuthorization(req)

	f.HandleInbound("sms", "+1", "yes")

	auth := waitForAuth(t, authCh)
	if auth.Decision != types.DecisionApprove {
		t.Fatalf("Decision = %v, want approve", auth.Decision)
	}
}

func TestHandleInboundApproveWithInstructions(t *testing.T) {
	f := forwarder.New(nil, time.Hour, nil, nil)
	defer f.Stop()

	req := newRequest("only-pending-request")
	authCh := make(chan types.Authorization, 1)
	f.OnAuthorization(func(a types.Authorization) { authCh <- a })
	f.RequestAuthorization(req)

	f.HandleInbound("sms", "+1", "yes only screenshot please")

	auth := waitForAuth(t, authCh)
	if auth.Decision != types.DecisionApproveWithInstructions {
		t.Fatalf("Decision = %v, want approve-with-instructions", auth.Decision)
	}
	if auth.Instructions != "only screenshot please" {
		t.Fatalf("Instructions = %q, want %q", auth.Instructions, "only screenshot please")
	}
}

func TestHandleInboundDenial(t *testing.T) {
	f := forwarder.New(nil, time.Hour, nil, nil)
	defer f.Stop()

	req := newRequest("only-pending-request")
	authCh := make(chan types.Authorization, 1)
	f.OnAuthorization(func(a types.Authorization) { authCh <- a })
	f.RequestAuthorization(req)

	f.HandleInbound("sms", "+1", "no")

	auth := waitForAuth(t, authCh)
	if auth.Decision != types.DecisionDeny {
		t.Fatalf("Decision = %v, want deny", auth.Decision)
	}
}

func TestHandleInboundAmbiguousMessageIsIgnored(t *testing.T) {
	f := forwarder.New(nil, time.Hour, nil, nil)
	defer f.Stop()

	f.RequestAuthorization(newRequest("request-one"))
	f.RequestAuthorization(newRequest("request-two"))

	called := false
	f.OnAuthorization(func(types.Authorization) { called = true })

	f.HandleInbound("sms", "+1", "yes")

	time.Sleep(50 * time.Millisecond)
	if called {
		t.Fatal("expected ambiguous approval with two pending requests and no id match to be ignored")
	}
}

func TestTimeoutResolvesAsDeny(t *testing.T) {
	f := forwarder.New(nil, 20*time.Millisecond, nil, nil)
	defer f.Stop()

	req := newRequest("timeout-request")
	authCh := make(chan types.Authorization, 1)
	f.OnAuthorization(func(a types.Authorization) { authCh <- a })
	f.RequestAuthorization(req)

	auth := waitForAuth(t, authCh)
	if auth.Decision != types.DecisionDeny {
		t.Fatalf("Decision = %v, want deny", auth.Decision)
	}
	if auth.ResolvedBy != types.ResolvedByTimeout {
		t.Fatalf("ResolvedBy = %q, want %q", auth.ResolvedBy, types.ResolvedByTimeout)
	}
}

func TestCancelSuppressesLaterTimeout(t *testing.T) {
	f := forwarder.New(nil, 20*time.Millisecond, nil, nil)
	defer f.Stop()

	req := newRequest("rpc-resolved-request")
	called := false
	f.OnAuthorization(func(types.Authorization) { called = true })
	f.RequestAuthorization(req)

	f.Cancel(req.ID)
	time.Sleep(50 * time.Millisecond)

	if called {
		t.Fatal("expected no authorization callback after Cancel")
	}
}

func TestStopCancelsTimersAndClearsSubscribers(t *testing.T) {
	f := forwarder.New(nil, 20*time.Millisecond, nil, nil)

	req := newRequest("stop-request")
	called := false
	f.OnAuthorization(func(types.Authorization) { called = true })
	f.RequestAuthorization(req)

	f.Stop()
	time.Sleep(50 * time.Millisecond)

	if called {
		t.Fatal("expected no authorization callback after Stop")
	}
}
