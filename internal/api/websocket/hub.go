package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	apimw "kbservice/internal/api/middleware"
	"kbservice/internal/auth"
	"kbservice/internal/model"
)

const writeWait = 10 * time.Second

// Hub pushes KB change events to every connected websocket client.
type Hub struct {
	events    <-chan model.KBEvent
	authOn    bool
	keyHashes []string
	log       *slog.Logger
	upgrader  gws.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn    *gws.Conn
	writeMu sync.Mutex
}

type Options struct {
	Events      <-chan model.KBEvent
	AuthEnabled bool
	KeyHashes   []string
	Logger      *slog.Logger
}

func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events:    opts.Events,
		authOn:    opts.AuthEnabled,
		keyHashes: opts.KeyHashes,
		log:       logger.With("component", "ws"),
		upgrader: gws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Start pumps events to clients until ctx is done or the event channel closes.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-h.events:
				if !ok {
					return
				}
				h.broadcast(map[string]any{
					"type": ev.Type,
					"data": map[string]any{
						"id":  ev.ID,
						"key": ev.Key,
					},
				})
			}
		}
	}()
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.authOn && !auth.VerifyAny(apimw.APIKeyFromRequest(r), h.keyHashes) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}
	h.register(c)
	defer h.unregister(c)
	defer conn.Close()

	_ = c.write(map[string]any{"type": "ack", "ok": true, "ref_id": "connected"})
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(b, &req); err != nil {
			_ = c.write(map[string]any{"type": "error", "code": "BAD_PAYLOAD", "message": "invalid JSON"})
			continue
		}
		switch msgType, _ := req["type"].(string); msgType {
		case "ping":
			_ = c.write(map[string]any{"type": "pong"})
		default:
			_ = c.write(map[string]any{"type": "error", "code": "UNKNOWN_TYPE", "message": "unsupported message type"})
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) broadcast(msg map[string]any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.write(msg); err != nil {
			h.log.Debug("websocket write failed", "error", err)
		}
	}
}

func (c *client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}
