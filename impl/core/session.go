package core

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/ws"
)

const textChatStarted = "chat started"

// Join registers conn as the live connection of an end-user and returns the
// identifier and the display name in effect. A missing identifier is minted.
func (c *Core) Join(ctx context.Context, conn ws.Conn, userID, displayName string) (string, string) {
	if userID == "" {
		userID = uuid.NewString()
	}

	if c.profiles != nil {
		override, err := c.profiles.DisplayName(ctx, userID)
		if err != nil {
			c.storeFailed("profile.get", err, slog.String("user_id", userID))
		} else if override != "" {
			displayName = override
		}
	}

	if prev := c.sessions.Upsert(userID, displayName, conn); prev != nil && conn != nil && prev.ID() != conn.ID() {
		c.log.With(
			slog.String("user_id", userID),
			slog.String("conn_id", prev.ID()),
		).Debug("connection superseded")
	}

	messages, err := c.history.Find(ctx, userID)
	if err != nil {
		c.storeFailed("history.find", err, slog.String("user_id", userID))
	} else if len(messages) == 0 {
		started := c.systemMessage(userID, entity.MarkerStarted, textChatStarted)
		c.appendMessage(ctx, started)
		c.deliverToAgents(started, "")
		if c.notifier != nil {
			go c.notifier.NotifyNewChat(userID, displayName)
		}
		c.log.With(
			slog.String("user_id", userID),
			slog.String("username", displayName),
		).Info("chat started")
	}

	c.push(conn, ws.PushSession, entity.SessionInfo{UserID: userID, DisplayName: displayName})
	c.broadcastSummary(ctx)

	return userID, displayName
}

// UpdateDisplayName renames a user everywhere: the session, every stored
// message, the persisted override and the user's own widget.
func (c *Core) UpdateDisplayName(ctx context.Context, userID, displayName string) {
	c.sessions.Rename(userID, displayName)

	if err := c.history.RenameUser(ctx, userID, displayName); err != nil {
		c.storeFailed("history.rename", err, slog.String("user_id", userID))
	}
	if c.profiles != nil {
		if err := c.profiles.SetDisplayName(ctx, userID, displayName); err != nil {
			c.storeFailed("profile.set", err, slog.String("user_id", userID))
		}
	}

	c.push(c.sessions.LiveConnection(userID), ws.PushNameUpdated, entity.SessionInfo{UserID: userID, DisplayName: displayName})
	c.broadcastSummary(ctx)
}

// Disconnect forgets everything tied to a closed connection. Sessions and
// history survive.
func (c *Core) Disconnect(ctx context.Context, conn ws.Conn) {
	c.subs.UnsubscribeAll(conn.ID())
	c.admins.Leave(conn.ID())

	userID, ok := c.sessions.MarkDisconnectedByConnection(conn.ID())
	if !ok {
		return
	}
	c.log.With(
		slog.String("user_id", userID),
		slog.String("conn_id", conn.ID()),
	).Debug("user disconnected")
	c.broadcastSummary(ctx)
}

// AdminConnect adds an agent connection to the chat list broadcast group
// and sends it the current list.
func (c *Core) AdminConnect(ctx context.Context, conn ws.Conn) {
	c.admins.Join(conn)

	summaries, err := c.Summarize(ctx)
	if err != nil {
		c.log.With(slog.String("conn_id", conn.ID())).Error("summarize chats", sl.Err(err))
		return
	}
	c.push(conn, ws.PushUserList, summaries)
}
