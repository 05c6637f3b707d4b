// Package forwarder delivers authorization prompts to operator endpoints
// and relays the operator's reply back to the orchestrator.
package forwarder

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/conductor/log"
	"github.com/openclaw/conductor/metrics"
	"github.com/openclaw/conductor/types"
)

// DefaultTimeout is the default authorization wait, matching auth.timeoutMs.
const DefaultTimeout = 120 * time.Second

// sendTimeout bounds each best-effort delivery so a hung target cannot
// stall RequestAuthorization or NotifyResult indefinitely.
const sendTimeout = 10 * time.Second

type pendingEntry struct {
	request *types.Request
	timer   *time.Timer
}

// Forwarder tracks its own pending set, separate from the orchestrator's,
// so it can match inbound messages and fire its own timeout independent
// of orchestrator scheduling.
type Forwarder struct {
	targets   []Target
	timeout   time.Duration
	logger    *log.Logger
	collector *metrics.Collector

	mu          sync.Mutex
	pending     map[string]*pendingEntry
	subscribers map[int]func(types.Authorization)
	nextSubID   int
}

// New creates a Forwarder over the given targets. timeout defaults to
// DefaultTimeout (auth.timeoutMs default) when zero. collector may be nil;
// Collector's Inc methods are nil-receiver safe.
func New(targets []Target, timeout time.Duration, logger *log.Logger, collector *metrics.Collector) *Forwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Forwarder{
		targets:     targets,
		timeout:     timeout,
		logger:      logger,
		collector:   collector,
		pending:     make(map[string]*pendingEntry),
		subscribers: make(map[int]func(types.Authorization)),
	}
}

// RequestAuthorization formats the operator prompt, best-effort delivers
// it to every configured target in parallel, registers a timeout timer,
// and inserts the request into the Forwarder's own pending set.
func (f *Forwarder) RequestAuthorization(req *types.Request) {
	msg := formatAuthorizationRequest(req)
	f.broadcast(msg)

	timer := time.AfterFunc(f.timeout, func() { f.handleTimeout(req.ID) })

	f.mu.Lock()
	f.pending[req.ID] = &pendingEntry{request: req, timer: timer}
	f.mu.Unlock()
}

// NotifyResult is a best-effort informational send summarizing the
// outcome, with the payload preview truncated to 200 characters.
func (f *Forwarder) NotifyResult(req *types.Request, success bool, payload string) {
	f.broadcast(formatResultNotification(req, success, payload))
}

func (f *Forwarder) broadcast(text string) {
	for _, tg := range f.targets {
		go func(tg Target) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := tg.Send(ctx, text); err != nil {
				f.collector.IncForwardDeliveryFailure()
				if f.logger != nil {
					f.logger.Warn("forward delivery failed", map[string]any{"error": err.Error()})
				}
			}
		}(tg)
	}
}

// OnAuthorization subscribes to resolved authorizations and returns a
// cleanup function that unsubscribes.
func (f *Forwarder) OnAuthorization(cb func(types.Authorization)) func() {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subscribers[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

// Stop cancels all timers and clears subscribers and the pending set.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.pending {
		entry.timer.Stop()
	}
	f.pending = make(map[string]*pendingEntry)
	f.subscribers = make(map[int]func(types.Authorization))
}

// Cancel removes id from the Forwarder's own pending set and stops its
// timer without emitting an authorization, silently discarding its entry.
// Used when another resolution path (RPC) wins the race for id, so the
// Forwarder's own timeout or a later inbound message cannot also resolve
// it.
func (f *Forwarder) Cancel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.pending[id]; ok {
		entry.timer.Stop()
		delete(f.pending, id)
	}
}

func (f *Forwarder) handleTimeout(id string) {
	f.mu.Lock()
	entry, ok := f.pending[id]
	if ok {
		delete(f.pending, id)
	}
	f.mu.Unlock()

	if !ok {
		return
	}

	f.emit(types.Authorization{
		RequestID:  id,
		Decision:   types.DecisionDeny,
		ResolvedBy: types.ResolvedByTimeout,
		ResolvedAt: time.Now(),
	})
}

// approval/denial vocabularies per the documented inbound matching rules.
var approvalExact = map[string]bool{"yes": true, "approve": true, "go": true, "y": true}
var denialExact = map[string]bool{"no": true, "deny": true, "n": true}

// HandleInbound implements the messaging-path decision matching: lowercase
// and trim the text, find a matching pending request (by id substring, or
// by being the sole pending request given an approval/denial word), and
// resolve it. Only the first matched pending request is resolved per
// inbound message.
func (f *Forwarder) HandleInbound(channel, from, text string) {
	trimmedOriginal := strings.TrimSpace(text)
	clean := strings.ToLower(trimmedOriginal)

	isApproval := approvalExact[clean] || strings.HasPrefix(clean, "yes ") || strings.HasPrefix(clean, "approve ")
	isDenial := denialExact[clean] || strings.HasPrefix(clean, "no ")

	f.mu.Lock()
	var matchedID string
	for id, entry := range f.pending {
		if strings.Contains(clean, strings.ToLower(entry.request.ShortID())) {
			matchedID = id
			break
		}
	}
	matchesID := matchedID != ""

	resolveID := matchedID
	if resolveID == "" && len(f.pending) == 1 && (isApproval || isDenial) {
		for id := range f.pending {
			resolveID = id
		}
	}

	if resolveID == "" {
		f.mu.Unlock()
		return
	}

	entry := f.pending[resolveID]
	entry.timer.Stop()
	delete(f.pending, resolveID)
	f.mu.Unlock()

	decision := types.DecisionDeny
	if isApproval || (matchesID && !isDenial) {
		decision = types.DecisionApprove
	}

	var instructions string
	switch {
	case strings.HasPrefix(clean, "yes "):
		instructions = strings.TrimSpace(trimmedOriginal[len("yes "):])
	case strings.HasPrefix(clean, "approve "):
		instructions = strings.TrimSpace(trimmedOriginal[len("approve "):])
	}
	if instructions != "" {
		decision = types.DecisionApproveWithInstructions
	}

	f.emit(types.Authorization{
		RequestID:    resolveID,
		Decision:     decision,
		Instructions: instructions,
		ResolvedBy:   channel + ":" + from,
		ResolvedAt:   time.Now(),
	})
}

func (f *Forwarder) emit(auth types.Authorization) {
	f.mu.Lock()
	subs := make([]func(types.Authorization), 0, len(f.subscribers))
	for _, cb := range f.subscribers {
		subs = append(subs, cb)
	}
	f.mu.Unlock()

	for _, cb := range subs {
		f.safeCall(cb, auth)
	}
}

// safeCall invokes cb, swallowing any panic so a throwing subscriber
// cannot propagate into forwarder state.
func (f *Forwarder) safeCall(cb func(types.Authorization), auth types.Authorization) {
	defer func() { _ = recover() }()
	cb(auth)
}
