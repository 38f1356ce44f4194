package registry

import (
	"sync"

	"ChatRelay/internal/ws"
)

type subscription struct {
	userID string
	conn   ws.Conn
}

// Subscriptions maps an agent connection to the one end-user it observes.
type Subscriptions struct {
	mu    sync.RWMutex
	items map[string]subscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{items: make(map[string]subscription)}
}

// Subscribe points conn at userID, replacing any previous target.
func (s *Subscriptions) Subscribe(conn ws.Conn, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[conn.ID()] = subscription{userID: userID, conn: conn}
}

func (s *Subscriptions) UnsubscribeAll(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, connID)
}

// Target returns the end-user observed by the connection.
func (s *Subscriptions) Target(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.items[connID]
	return sub.userID, ok
}

// SubscribersOf scans all subscriptions for the ones pointing at userID.
func (s *Subscriptions) SubscribersOf(userID string) []ws.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []ws.Conn
	for _, sub := range s.items {
		if sub.userID == userID {
			conns = append(conns, sub.conn)
		}
	}
	return conns
}
