package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// event is one conductor.requested / conductor.resolved broadcast frame.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// requestedEvent is the payload of a conductor.requested broadcast.
type requestedEvent struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Summary     string `json:"summary"`
	URL         string `json:"url,omitempty"`
	Service     string `json:"service,omitempty"`
	DataNeeded  string `json:"dataNeeded,omitempty"`
	CreatedAtMs int64  `json:"createdAtMs"`
	ExpiresAtMs int64  `json:"expiresAtMs"`
}

// resolvedEvent is the payload of a conductor.resolved broadcast.
type resolvedEvent struct {
	ID           string `json:"id"`
	Decision     string `json:"decision"`
	Instructions string `json:"instructions,omitempty"`
	ResolvedBy   string `json:"resolvedBy,omitempty"`
	Ts           int64  `json:"ts"`
}

// hub fans out events to every connected subscriber. A slow or dead
// subscriber never blocks the others: its send buffer drops the event.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

func (h *hub) broadcast(evt event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
		}
	}
}

// wsClient is one subscriber's connection, with a buffered outgoing queue
// so handleEvents' caller never blocks on a slow reader.
type wsClient struct {
	conn *websocket.Conn
	send chan event
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to drain the connection and notice its close; the
// event stream is one-directional (server to subscriber).
func (c *wsClient) readPump(h *hub) {
	defer h.unregister(c)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
