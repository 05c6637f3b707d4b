// Package gateway implements the Conductor's RPC facade: an alternative
// resolution path that lets an external UI create, resolve, and observe
// requests through the Orchestrator's pending map, the same one that
// operator-messaging decisions resolve against.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openclaw/conductor/log"
	"github.com/openclaw/conductor/orchestrator"
	"github.com/openclaw/conductor/types"
)

// Gateway serves the conductor.* JSON-RPC methods over HTTP and
// broadcasts conductor.requested/conductor.resolved events to WebSocket
// subscribers. It has no authorizing logic of its own: every method call
// is a thin translation onto the Orchestrator's Resolve/Status/History/
// CreateRequest surface.
type Gateway struct {
	defaultTimeout time.Duration
	logger         *log.Logger

	hub      *hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	srv      *http.Server

	mu   sync.RWMutex
	orch *orchestrator.Orchestrator
}

// New creates a Gateway. defaultTimeout is used for conductor.request
// calls that omit timeoutMs.
func New(defaultTimeout time.Duration, logger *log.Logger) *Gateway {
	g := &Gateway{
		defaultTimeout: defaultTimeout,
		logger:         logger,
		hub:            newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", g.handleRPC)
	mux.HandleFunc("/events", g.handleEvents)
	g.mux = mux
	return g
}

// Handler returns the gateway's HTTP handler (the /rpc and /events
// routes), for tests and for embedding under a larger mux.
func (g *Gateway) Handler() http.Handler {
	return g.mux
}

// Attach gives the gateway its orchestrator reference. Call once, after
// constructing the orchestrator with this gateway's OnRequested/
// OnResolved methods wired into its Dependencies — the gateway needs to
// exist first so those method values can be passed in.
func (g *Gateway) Attach(orch *orchestrator.Orchestrator) {
	g.mu.Lock()
	g.orch = orch
	g.mu.Unlock()
}

// OnRequested is the Orchestrator's OnRequested hook: it broadcasts a
// conductor.requested event to every connected subscriber.
func (g *Gateway) OnRequested(req *types.Request) {
	g.hub.broadcast(event{
		Type: "conductor.requested",
		Data: requestedEvent{
			ID:          req.ID,
			Kind:        string(req.Kind),
			Summary:     req.Summary,
			URL:         req.URL,
			Service:     req.Service,
			DataNeeded:  req.DataNeeded,
			CreatedAtMs: req.CreatedAt.UnixMilli(),
			ExpiresAtMs: req.ExpiresAt.UnixMilli(),
		},
	})
}

// OnResolved is the Orchestrator's OnResolved hook: it broadcasts a
// conductor.resolved event to every connected subscriber.
func (g *Gateway) OnResolved(auth types.Authorization) {
	g.hub.broadcast(event{
		Type: "conductor.resolved",
		Data: resolvedEvent{
			ID:           auth.RequestID,
			Decision:     string(auth.Decision),
			Instructions: auth.Instructions,
			ResolvedBy:   auth.ResolvedBy,
			Ts:           auth.ResolvedAt.UnixMilli(),
		},
	})
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("gateway websocket upgrade failed", map[string]any{"error": err.Error()})
		}
		return
	}

	c := &wsClient{conn: conn, send: make(chan event, 32)}
	g.hub.register(c)
	go c.writePump()
	c.readPump(g.hub)
}

// Serve starts the HTTP server on addr and blocks until ctx is
// cancelled or the server fails, giving a 5-second graceful-shutdown
// window the same as the Orchestrator's Stop() escalation.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	g.srv = &http.Server{Addr: addr, Handler: g.mux}

	errCh := make(chan error, 1)
	go func() { errCh <- g.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return g.srv.Shutdown(shutdownCtx)
	}
}
