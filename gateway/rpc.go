package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw/conductor/orchestrator"
	"github.com/openclaw/conductor/types"
)

// rpcRequest is the JSON body every gateway call sends: {method, params}.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcResponse is the JSON body every gateway call receives back. Exactly
// one of Result/Error is set.
type rpcResponse struct {
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

func writeRPC(w http.ResponseWriter, result any, rerr *rpcError) {
	w.Header().Set("Content-Type", "application/json")
	if rerr != nil {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(rpcResponse{Result: result, Error: rerr})
}

func (g *Gateway) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, nil, errInvalidParams("malformed request body: "+err.Error()))
		return
	}

	g.mu.RLock()
	orch := g.orch
	g.mu.RUnlock()
	if orch == nil {
		writeRPC(w, nil, &rpcError{Code: "NotReady", Message: "gateway not attached to an orchestrator yet"})
		return
	}

	switch req.Method {
	case "conductor.request":
		g.handleRequest(w, r, orch, req.Params)
	case "conductor.resolve":
		g.handleResolve(w, r, orch, req.Params)
	case "conductor.status":
		g.handleStatus(w, orch)
	case "conductor.history":
		g.handleHistory(w, orch, req.Params)
	case "conductor.stats":
		g.handleStats(w, orch)
	default:
		writeRPC(w, nil, errUnknownMethod(req.Method))
	}
}

type requestParams struct {
	Kind       string `json:"kind"`
	Summary    string `json:"summary"`
	URL        string `json:"url"`
	Service    string `json:"service"`
	DataNeeded string `json:"dataNeeded"`
	TimeoutMs  int    `json:"timeoutMs"`
}

// handleRequest implements conductor.request: it creates a request
// directly in the pending map (bypassing the analyzer entirely) and
// blocks until conductor.resolve answers it or its own timeout fires,
// returning the final decision to the caller.
func (g *Gateway) handleRequest(w http.ResponseWriter, r *http.Request, orch *orchestrator.Orchestrator, raw json.RawMessage) {
	var params requestParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			writeRPC(w, nil, errInvalidParams("malformed params: "+err.Error()))
			return
		}
	}
	if params.Summary == "" && params.URL == "" {
		writeRPC(w, nil, errInvalidParams("at least one of summary or url is required"))
		return
	}

	kind := types.Kind(params.Kind)
	if kind == "" {
		kind = types.KindUnknown
	}
	timeout := g.defaultTimeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	now := time.Now()
	req := &types.Request{
		ID:         uuid.NewString(),
		Kind:       kind,
		Summary:    params.Summary,
		URL:        params.URL,
		Service:    params.Service,
		DataNeeded: params.DataNeeded,
		CreatedAt:  now,
		ExpiresAt:  now.Add(timeout),
	}

	waker := orch.CreateRequest(req, timeout)

	select {
	case auth := <-waker:
		writeRPC(w, map[string]any{
			"id":           req.ID,
			"decision":     auth.Decision,
			"instructions": auth.Instructions,
			"resolvedBy":   auth.ResolvedBy,
		}, nil)
	case <-r.Context().Done():
		// Caller disconnected; the pending entry is untouched and will
		// still resolve via a later conductor.resolve or its own timeout.
	}
}

type resolveParams struct {
	ID           string `json:"id"`
	Decision     string `json:"decision"`
	Instructions string `json:"instructions"`
	Resolver     string `json:"resolver"`
}

var allowedDecisions = map[types.Decision]bool{
	types.DecisionApprove:                true,
	types.DecisionDeny:                    true,
	types.DecisionApproveWithInstructions: true,
}

// handleResolve implements conductor.resolve.
func (g *Gateway) handleResolve(w http.ResponseWriter, r *http.Request, orch *orchestrator.Orchestrator, raw json.RawMessage) {
	var params resolveParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeRPC(w, nil, errInvalidParams("malformed params: "+err.Error()))
		return
	}
	if params.ID == "" {
		writeRPC(w, nil, errInvalidParams("id is required"))
		return
	}
	decision := types.Decision(params.Decision)
	if !allowedDecisions[decision] {
		writeRPC(w, nil, errInvalidParams("decision must be one of approve, deny, approve-with-instructions"))
		return
	}
	if decision == types.DecisionApproveWithInstructions && params.Instructions == "" {
		writeRPC(w, nil, errInvalidParams("approve-with-instructions requires instructions"))
		return
	}

	resolver := params.Resolver
	if resolver == "" {
		resolver = "rpc:" + r.RemoteAddr
	} else {
		resolver = "rpc:" + resolver
	}

	if err := orch.Resolve(params.ID, decision, params.Instructions, resolver); err != nil {
		writeRPC(w, nil, errUnknownRequestID())
		return
	}
	writeRPC(w, map[string]any{"ok": true}, nil)
}

// handleStatus implements conductor.status.
func (g *Gateway) handleStatus(w http.ResponseWriter, orch *orchestrator.Orchestrator) {
	pending, pendingCount, historyCount := orch.Status()
	writeRPC(w, map[string]any{
		"pending":      pending,
		"pendingCount": pendingCount,
		"historyCount": historyCount,
	}, nil)
}

type historyParams struct {
	Limit   int    `json:"limit"`
	SinceID string `json:"sinceID"`
}

// handleHistory implements conductor.history.
func (g *Gateway) handleHistory(w http.ResponseWriter, orch *orchestrator.Orchestrator, raw json.RawMessage) {
	var params historyParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			writeRPC(w, nil, errInvalidParams("malformed params: "+err.Error()))
			return
		}
	}
	writeRPC(w, orch.History(params.Limit, params.SinceID), nil)
}

// handleStats implements conductor.stats.
func (g *Gateway) handleStats(w http.ResponseWriter, orch *orchestrator.Orchestrator) {
	writeRPC(w, orch.Metrics(), nil)
}
