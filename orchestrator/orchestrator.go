// Package orchestrator joins the Interceptor, Analyzer, Forwarder,
// Executor, and Injector into the end-to-end control loop: every flush
// is analyzed, every detected request is auto-decided or routed to a
// human operator, and every resolution ends in exactly one injection and
// one history record.
package orchestrator

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openclaw/conductor/analyzer"
	"github.com/openclaw/conductor/audit"
	"github.com/openclaw/conductor/executor"
	"github.com/openclaw/conductor/forwarder"
	"github.com/openclaw/conductor/injector"
	"github.com/openclaw/conductor/interceptor"
	"github.com/openclaw/conductor/log"
	"github.com/openclaw/conductor/metrics"
	"github.com/openclaw/conductor/types"
)

// analyzeTimeout bounds a single Analyze call so a hung remote backend
// cannot stall the flush loop indefinitely; the remote backend is
// expected to fall back to rules well inside this window.
const analyzeTimeout = 30 * time.Second

// Config carries the orchestrator's policy knobs, sourced from
// conductor.yaml's analyzer/auth/browser sections.
type Config struct {
	ConfidenceThreshold float64
	AuthTimeout         time.Duration
	AutoDenyPatterns    []string
	AutoApprovePatterns []string
}

// Dependencies are the collaborators the orchestrator wires together.
// Analyzer, Forwarder, Executor, and Injector are required; Audit and
// Metrics may be nil (NopSink / nil Collector are both safe defaults).
// OnRequested and OnResolved are optional hooks, regardless of origin
// (analyzer detection or Gateway conductor.request): OnRequested fires for
// every accepted request, auto-decided ones included; OnResolved fires for
// every request that leaves the pending map — the Gateway wires these to
// its conductor.requested/conductor.resolved event broadcast.
type Dependencies struct {
	Analyzer analyzer.Analyzer
	Forwarder *forwarder.Forwarder
	Executor *executor.Executor
	Injector *injector.Injector
	Audit    audit.Appender
	Metrics  *metrics.Collector
	Logger   *log.Logger

	OnRequested func(*types.Request)
	OnResolved  func(types.Authorization)
}

type pendingRequest struct {
	request *types.Request

	// timer and waker are only set for requests created via CreateRequest
	// (the Gateway's conductor.request path), which owns its own timeout
	// and wakes a blocked RPC caller on resolution. Forwarder-routed
	// requests leave both nil: the Forwarder owns their timeout, and
	// nothing is blocked waiting on them.
	timer *time.Timer
	waker chan types.Authorization
}

// Orchestrator owns the Pending map and History list. It is the single
// point of "at-most-once resolve": a request id is atomically removed
// from Pending before any execution or injection occurs for it.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	interceptor *interceptor.Interceptor
	unsubscribe func()

	autoDeny    []*regexp.Regexp
	autoApprove []*regexp.Regexp

	mu      sync.Mutex
	pending map[string]*pendingRequest
	history []types.HistoryEntry

	exitCode   atomic.Int64
	exitSignal atomic.Value // string
}

// New builds an Orchestrator and the Interceptor it drives. icfg
// configures the wrapped worker process; cfg carries policy knobs.
func New(icfg interceptor.Config, cfg Config, deps Dependencies) (*Orchestrator, error) {
	autoDeny, err := compileGlobs(cfg.AutoDenyPatterns)
	if err != nil {
		return nil, err
	}
	autoApprove, err := compileGlobs(cfg.AutoApprovePatterns)
	if err != nil {
		return nil, err
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopSink{}
	}

	o := &Orchestrator{
		cfg:         cfg,
		deps:        deps,
		autoDeny:    autoDeny,
		autoApprove: autoApprove,
		pending:     make(map[string]*pendingRequest),
	}
	o.exitSignal.Store("")

	o.interceptor = interceptor.New(icfg, interceptor.Events{
		OnFlush: o.handleFlush,
		OnExit:  o.handleExit,
		OnError: o.handleError,
	})
	o.unsubscribe = deps.Forwarder.OnAuthorization(o.handleAuthorization)

	return o, nil
}

// Start spawns the wrapped worker process.
func (o *Orchestrator) Start(ctx context.Context) error {
	_ = o.deps.Audit.Append(audit.EventStarted, nil)
	return o.interceptor.Start(ctx)
}

// InjectRaw writes data directly to the wrapped worker's stdin. Exported
// so a caller can build an injector.Stdin that forwards here, closing the
// construction-order gap between building Dependencies.Injector and this
// Orchestrator creating its own Interceptor internally.
func (o *Orchestrator) InjectRaw(data []byte) error {
	return o.interceptor.Inject(data)
}

// Done returns a channel closed once the wrapped worker process exits.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.interceptor.Done()
}

// ExitCode returns the wrapped worker's exit code, valid after Done()
// closes.
func (o *Orchestrator) ExitCode() int {
	return int(o.exitCode.Load())
}

// ExitSignal returns the signal that terminated the wrapped worker, or
// "" if it exited normally. Valid after Done() closes.
func (o *Orchestrator) ExitSignal() string {
	return o.exitSignal.Load().(string)
}

// Stop cancels all timers, closes the audit sink, and signals the
// wrapped worker to terminate with a 5-second escalation to a forced
// kill, per the conductor's stop() semantics.
func (o *Orchestrator) Stop() error {
	o.unsubscribe()
	o.deps.Forwarder.Stop()
	o.mu.Lock()
	for _, pr := range o.pending {
		if pr.timer != nil {
			pr.timer.Stop()
		}
	}
	o.mu.Unlock()
	err := o.interceptor.Stop()
	_ = o.deps.Audit.Close()
	return err
}

// handleFlush is the Interceptor's OnFlush callback: analyze, apply
// auto-rules, and either drop, fast-path decide, or route to the
// operator.
func (o *Orchestrator) handleFlush(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	result, err := o.deps.Analyzer.Analyze(ctx, text)
	if err != nil {
		if o.deps.Logger != nil {
			o.deps.Logger.Warn("analyzer error", map[string]any{"error": err.Error()})
		}
		return
	}
	if !result.Detected || result.Confidence < o.cfg.ConfidenceThreshold {
		return
	}

	req := result.Request
	req.ExpiresAt = req.CreatedAt.Add(o.cfg.AuthTimeout)

	o.deps.Metrics.IncRequestsDetected()
	_ = o.deps.Audit.Append(audit.EventRequestDetected, map[string]any{
		"requestId": req.ID,
		"kind":      string(req.Kind),
		"summary":   req.Summary,
	})
	if o.deps.OnRequested != nil {
		o.deps.OnRequested(req)
	}

	switch {
	case matchesAny(o.autoDeny, req.URL):
		o.autoDecide(req, types.ResolvedByAutoDeny)
	case matchesAny(o.autoApprove, req.URL):
		o.autoDecide(req, types.ResolvedByAutoApprove)
	default:
		o.forwardToOperator(req)
	}
}

// autoDecide handles the auto-deny and auto-approve fast paths, which
// never touch the pending map or the Forwarder.
func (o *Orchestrator) autoDecide(req *types.Request, resolvedBy string) {
	now := time.Now()
	auth := &types.Authorization{
		RequestID:  req.ID,
		ResolvedBy: resolvedBy,
		ResolvedAt: now,
	}

	var inj types.Injection
	if resolvedBy == types.ResolvedByAutoDeny {
		auth.Decision = types.DecisionDeny
		inj = o.deps.Injector.InjectDenial(req, "denied by auto-rule")
		o.deps.Metrics.IncAutoDenied()
		_ = o.deps.Audit.Append(audit.EventAutoDenied, map[string]any{"requestId": req.ID})
	} else {
		auth.Decision = types.DecisionApprove
		ctx := context.Background()
		results, err := o.deps.Executor.Run(ctx, req, "")
		if err != nil && o.deps.Logger != nil {
			o.deps.Logger.Warn("executor error", map[string]any{"requestId": req.ID, "error": err.Error()})
		}
		inj = o.deps.Injector.InjectResults(req, results)
		o.deps.Metrics.IncAutoApproved()
		_ = o.deps.Audit.Append(audit.EventAutoApproved, map[string]any{"requestId": req.ID})
	}

	if !inj.Success {
		o.deps.Metrics.IncInjectionFailure()
	}
	_ = o.deps.Audit.Append(audit.EventInjection, map[string]any{"requestId": req.ID, "success": inj.Success})

	o.appendHistory(types.HistoryEntry{
		Request:       *req,
		Authorization: auth,
		Injection:     inj,
		CompletedAt:   time.Now(),
	})
}

// forwardToOperator inserts req into the pending map and routes it to the
// Forwarder, entering the awaiting state.
func (o *Orchestrator) forwardToOperator(req *types.Request) {
	o.mu.Lock()
	o.pending[req.ID] = &pendingRequest{request: req}
	o.mu.Unlock()

	o.deps.Metrics.IncForwarded()
	o.deps.Forwarder.RequestAuthorization(req)
}

// handleAuthorization is the Forwarder's OnAuthorization callback; it
// fires for both operator-message resolutions and the Forwarder's own
// timeout. A request id absent from the pending map means another path
// (an RPC Resolve call) already won the race, so this is a no-op late
// duplicate.
func (o *Orchestrator) handleAuthorization(auth types.Authorization) {
	pr, ok := o.takePending(auth.RequestID)
	if !ok {
		return
	}
	o.resolve(pr, auth)
}

// Resolve is the RPC resolution path: it atomically claims the pending
// entry, cancels the Forwarder's own pending entry for the same id so it
// cannot also fire a duplicate resolution, and runs the same resolve
// path as a messaging decision. It serves both operator-forwarded
// requests and Gateway-created ones (conductor.resolve answering a
// conductor.request).
func (o *Orchestrator) Resolve(id string, decision types.Decision, instructions, resolvedBy string) error {
	pr, ok := o.takePending(id)
	if !ok {
		return ErrUnknownRequestID
	}
	o.deps.Forwarder.Cancel(id)

	o.resolve(pr, types.Authorization{
		RequestID:    id,
		Decision:     decision,
		Instructions: instructions,
		ResolvedBy:   resolvedBy,
		ResolvedAt:   time.Now(),
	})
	return nil
}

// CreateRequest inserts a server-initiated request directly into the
// pending map, bypassing the analyzer and the Forwarder's operator
// broadcast — the Gateway's conductor.request path. It owns its own
// timeout timer (on expiry: deny, resolvedBy timeout) and returns a channel that
// receives the eventual Authorization once Resolve is called for this
// id or the timeout fires, whichever comes first.
func (o *Orchestrator) CreateRequest(req *types.Request, timeout time.Duration) <-chan types.Authorization {
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = req.CreatedAt.Add(timeout)
	}
	pr := &pendingRequest{
		request: req,
		waker:   make(chan types.Authorization, 1),
	}

	o.mu.Lock()
	o.pending[req.ID] = pr
	o.mu.Unlock()

	pr.timer = time.AfterFunc(timeout, func() { o.handleCreateRequestTimeout(req.ID) })

	o.deps.Metrics.IncForwarded()
	_ = o.deps.Audit.Append(audit.EventRequestDetected, map[string]any{
		"requestId": req.ID,
		"kind":      string(req.Kind),
		"summary":   req.Summary,
	})
	if o.deps.OnRequested != nil {
		o.deps.OnRequested(req)
	}
	return pr.waker
}

func (o *Orchestrator) handleCreateRequestTimeout(id string) {
	pr, ok := o.takePending(id)
	if !ok {
		return
	}
	o.resolve(pr, types.Authorization{
		RequestID:  id,
		Decision:   types.DecisionDeny,
		ResolvedBy: types.ResolvedByTimeout,
		ResolvedAt: time.Now(),
	})
}

func (o *Orchestrator) takePending(id string) (*pendingRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pr, ok := o.pending[id]
	if ok {
		delete(o.pending, id)
		if pr.timer != nil {
			pr.timer.Stop()
		}
	}
	return pr, ok
}

// resolve executes (if approved), injects, notifies, and records history
// for a request that has just left the pending map via exactly one path.
// If pr was created via CreateRequest, its waker is woken with auth so a
// blocked Gateway RPC call can return.
func (o *Orchestrator) resolve(pr *pendingRequest, auth types.Authorization) {
	req := pr.request
	o.deps.Metrics.IncResolved()
	_ = o.deps.Audit.Append(audit.EventAuthorizationReceived, map[string]any{
		"requestId":  req.ID,
		"decision":   string(auth.Decision),
		"resolvedBy": auth.ResolvedBy,
	})

	var inj types.Injection
	switch {
	case auth.IsApproval():
		ctx := context.Background()
		results, err := o.deps.Executor.Run(ctx, req, auth.Instructions)
		if err != nil && o.deps.Logger != nil {
			o.deps.Logger.Warn("executor error", map[string]any{"requestId": req.ID, "error": err.Error()})
		}
		inj = o.deps.Injector.InjectResults(req, results)
		o.deps.Forwarder.NotifyResult(req, inj.Success, inj.Payload)
	case auth.ResolvedBy == types.ResolvedByTimeout:
		inj = o.deps.Injector.InjectTimeout(req)
		o.deps.Metrics.IncTimedOut()
	default:
		inj = o.deps.Injector.InjectDenial(req, "operator denied")
	}

	if !inj.Success {
		o.deps.Metrics.IncInjectionFailure()
	}
	_ = o.deps.Audit.Append(audit.EventInjection, map[string]any{"requestId": req.ID, "success": inj.Success})

	authCopy := auth
	o.appendHistory(types.HistoryEntry{
		Request:       *req,
		Authorization: &authCopy,
		Injection:     inj,
		CompletedAt:   time.Now(),
	})

	if pr.waker != nil {
		pr.waker <- auth
	}
	if o.deps.OnResolved != nil {
		o.deps.OnResolved(auth)
	}
}

func (o *Orchestrator) appendHistory(entry types.HistoryEntry) {
	o.mu.Lock()
	o.history = append(o.history, entry)
	o.mu.Unlock()
}

// Metrics returns a point-in-time snapshot of the process counters, for
// the Gateway's conductor.stats method. Safe to call even when no
// Collector was configured (deps.Metrics nil), returning a zero Snapshot.
func (o *Orchestrator) Metrics() metrics.Snapshot {
	if o.deps.Metrics == nil {
		return metrics.Snapshot{}
	}
	return o.deps.Metrics.Snapshot()
}

// Status reports the pending requests and counts, for the Gateway's
// conductor.status method.
func (o *Orchestrator) Status() (pending []types.Request, pendingCount, historyCount int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pending = make([]types.Request, 0, len(o.pending))
	for _, pr := range o.pending {
		pending = append(pending, *pr.request)
	}
	return pending, len(o.pending), len(o.history)
}

// History returns up to limit entries, most recent last, optionally
// starting after sinceID (exclusive). limit<=0 defaults to 50.
func (o *Orchestrator) History(limit int, sinceID string) []types.HistoryEntry {
	if limit <= 0 {
		limit = 50
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.history
	if sinceID != "" {
		for i, e := range entries {
			if e.Request.ID == sinceID {
				entries = entries[i+1:]
				break
			}
		}
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]types.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

func (o *Orchestrator) handleExit(code int, signal string) {
	o.exitCode.Store(int64(code))
	o.exitSignal.Store(signal)
}

func (o *Orchestrator) handleError(err error) {
	if o.deps.Logger != nil {
		o.deps.Logger.Error("interceptor error", map[string]any{"error": err.Error()})
	}
}
