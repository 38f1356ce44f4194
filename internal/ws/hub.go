package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ChatRelay/internal/lib/sl"
	"ChatRelay/pkg/metrics"
)

// Options tune the websocket endpoints.
type Options struct {
	MaxMessageSize int64
	AllowedOrigins []string
}

// Hub maintains the set of active WebSocket clients and forwards their
// events to the router.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	log        *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger, opts Options) *Hub {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 1 << 20
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		opts:       opts,
		log:        log.With(sl.Module("ws.hub")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetDispatcher sets the receiver of inbound client events.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.ConnectionOpened(client.Role())

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			if ok {
				metrics.ConnectionClosed(client.Role())
				h.forward(Inbound{Conn: client, Agent: client.agent, Type: EventDisconnect})
			}
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClientMessage parses and forwards an incoming message from a client.
// End-user connections may only send widget events.
func (h *Hub) HandleClientMessage(c *Client, raw []byte) {
	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message",
			slog.String("conn_id", c.id),
			sl.Err(err),
		)
		metrics.RecordDropped("unknown", "unparsable")
		return
	}

	if event.Type == EventDisconnect {
		metrics.RecordDropped(event.Type, "reserved")
		return
	}

	if c.agent == "" && !endUserEvents[event.Type] {
		h.log.Warn("event not allowed for end-user connection",
			slog.String("conn_id", c.id),
			slog.String("type", event.Type),
		)
		metrics.RecordDropped(MetricLabel(event.Type), "forbidden")
		return
	}

	h.forward(Inbound{Conn: c, Agent: c.agent, Type: event.Type, Data: event.Data})
}

func (h *Hub) forward(ev Inbound) {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Submit(ev)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, agent string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", sl.Err(err))
		return
	}

	client := newClient(h, conn, agent)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
