package registry

import (
	"sync"

	"ChatRelay/internal/ws"
)

// Group is the set of agent connections that receive chat list broadcasts.
type Group struct {
	mu      sync.RWMutex
	members map[string]ws.Conn
}

func NewGroup() *Group {
	return &Group{members: make(map[string]ws.Conn)}
}

func (g *Group) Join(conn ws.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.members[conn.ID()] = conn
}

func (g *Group) Leave(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.members, connID)
}

func (g *Group) Members() []ws.Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := make([]ws.Conn, 0, len(g.members))
	for _, conn := range g.members {
		conns = append(conns, conn)
	}
	return conns
}
