// Package registry holds the router's transient in-memory state: end-user
// sessions, agent subscriptions and the agent broadcast group.
package registry

import (
	"sync"

	"ChatRelay/internal/ws"
)

// session is one end-user identity. conn is nil while the user is offline.
type session struct {
	userID      string
	displayName string
	conn        ws.Conn
}

// Sessions maps end-user identifiers to their session. Entries are never
// removed; only the live connection comes and goes.
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]*session)}
}

// Upsert creates or updates a session and installs conn as its single live
// connection. The previously live connection, if any, is returned.
func (s *Sessions) Upsert(userID, displayName string, conn ws.Conn) ws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[userID]
	if !ok {
		s.items[userID] = &session{userID: userID, displayName: displayName, conn: conn}
		return nil
	}
	prev := item.conn
	item.displayName = displayName
	item.conn = conn
	return prev
}

// DisplayName returns the session's name and whether the session exists.
func (s *Sessions) DisplayName(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[userID]
	if !ok {
		return "", false
	}
	return item.displayName, true
}

// Rename changes the display name of an existing session.
func (s *Sessions) Rename(userID, displayName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[userID]
	if !ok {
		return false
	}
	item.displayName = displayName
	return true
}

func (s *Sessions) MarkDisconnected(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[userID]; ok {
		item.conn = nil
	}
}

// MarkDisconnectedByConnection clears the session whose live connection has
// the given id. A superseded connection matches nothing.
func (s *Sessions) MarkDisconnectedByConnection(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, item := range s.items {
		if item.conn != nil && item.conn.ID() == connID {
			item.conn = nil
			return userID, true
		}
	}
	return "", false
}

func (s *Sessions) LiveConnection(userID string) ws.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, ok := s.items[userID]; ok {
		return item.conn
	}
	return nil
}
