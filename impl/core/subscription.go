package core

import (
	"context"
	"log/slog"

	"ChatRelay/entity"
	"ChatRelay/internal/ws"
)

// RequestHistory points an agent connection at userID and replays the full
// history to it. Unless the chat already ends with an opened marker, one is
// appended and shown to the other agents watching the user first.
func (c *Core) RequestHistory(ctx context.Context, conn ws.Conn, userID string) {
	c.subs.Subscribe(conn, userID)

	messages, err := c.history.Find(ctx, userID)
	if err != nil {
		c.storeFailed("history.find", err,
			slog.String("user_id", userID),
			slog.String("conn_id", conn.ID()),
		)
		return
	}

	if c.unknownChat(userID, messages) {
		c.log.With(slog.String("user_id", userID)).Debug("history requested for unknown chat")
		c.push(conn, ws.PushChatHistory, entity.History{UserID: userID, Messages: []entity.Message{}})
		return
	}

	if n := len(messages); n == 0 || messages[n-1].Marker != entity.MarkerOpened {
		opened := c.systemMessage(userID, entity.MarkerOpened, textChatOpened)
		c.appendMessage(ctx, opened)
		c.deliverToAgents(opened, conn.ID())
		messages = append(messages, *opened)
	}

	c.push(conn, ws.PushChatHistory, entity.History{UserID: userID, Messages: messages})
}

// unknownChat reports a user that never joined and has no stored history.
func (c *Core) unknownChat(userID string, messages []entity.Message) bool {
	if len(messages) > 0 {
		return false
	}
	_, known := c.sessions.DisplayName(userID)
	return !known
}
