package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ChatRelay/internal/lib/sl"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

const (
	RoleEndUser = "end_user"
	RoleAgent   = "agent"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrSendFull   = errors.New("send buffer full")
)

// Client represents a single WebSocket connection, either from an end-user
// widget or from an agent's admin panel.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	agent string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, agent string) *Client {
	return &Client{
		id:    uuid.NewString(),
		hub:   hub,
		conn:  conn,
		agent: agent,
		send:  make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Role() string {
	if c.agent != "" {
		return RoleAgent
	}
	return RoleEndUser
}

// Push queues an event for the write pump. It never blocks: a full buffer or
// a closed connection is reported as an error.
func (c *Client) Push(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
// It handles ping/pong keepalive and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read", slog.String("conn_id", c.id), sl.Err(err))
			}
			break
		}
		c.hub.HandleClientMessage(c, raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authenticator validates a token and returns the agent username.
type Authenticator interface {
	ValidateToken(token string) (string, error)
}

// ServeWs handles WebSocket upgrade requests from end-user widgets.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	hub.serve(w, r, "")
}

// ServeAdminWs handles WebSocket upgrade requests from agents. The token is
// read from the query string.
func ServeAdminWs(hub *Hub, auth Authenticator, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || auth == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	username, err := auth.ValidateToken(token)
	if err != nil {
		hub.log.Warn("agent websocket rejected", sl.Err(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	hub.serve(w, r, username)
}
