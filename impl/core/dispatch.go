package core

import (
	"log/slog"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/ws"
)

// deliver pushes msg to the user's live connection and to every agent
// watching the user, skipping the connection with id except.
func (c *Core) deliver(msg *entity.Message, except string) {
	userType := ws.PushChatMessage
	if msg.IsImage() {
		userType = ws.PushImage
	}
	c.push(c.sessions.LiveConnection(msg.UserID), userType, msg)
	c.deliverToAgents(msg, except)
}

func (c *Core) deliverToAgents(msg *entity.Message, except string) {
	agentType := ws.PushAdminMessage
	if msg.IsImage() {
		agentType = ws.PushAdminImage
	}
	for _, conn := range c.subs.SubscribersOf(msg.UserID) {
		if conn.ID() == except {
			continue
		}
		c.push(conn, agentType, msg)
	}
}

// push is fire-and-forget: a missing or stale connection is not an error,
// the message stays in history for replay.
func (c *Core) push(conn ws.Conn, eventType string, data interface{}) {
	if conn == nil {
		return
	}
	if err := conn.Push(&ws.Event{Type: eventType, Data: data}); err != nil {
		c.log.With(
			slog.String("conn_id", conn.ID()),
			slog.String("type", eventType),
		).Debug("push skipped", sl.Err(err))
	}
}
