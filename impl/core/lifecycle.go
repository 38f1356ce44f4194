package core

import (
	"context"
	"log/slog"

	"ChatRelay/entity"
	"ChatRelay/internal/ws"
	"ChatRelay/pkg/metrics"
)

const (
	textChatOpened   = "chat opened"
	textChatReopened = "chat reopened"
	textChatClosed   = "chat closed"
)

// reopenIfClosed appends a reopened marker when the last lifecycle marker
// closed the chat. The marker is shown to agents only.
func (c *Core) reopenIfClosed(ctx context.Context, userID string) bool {
	messages, err := c.history.Find(ctx, userID)
	if err != nil {
		c.storeFailed("history.find", err, slog.String("user_id", userID))
		return false
	}
	if !entity.IsClosed(messages) {
		return false
	}

	reopened := c.systemMessage(userID, entity.MarkerReopened, textChatReopened)
	c.appendMessage(ctx, reopened)
	c.deliverToAgents(reopened, "")

	c.log.With(slog.String("user_id", userID)).Info("chat reopened")
	return true
}

// Close ends a conversation on behalf of agent. The user is notified and
// must join again to continue. Closing an already closed chat adds no
// second marker but is still counted.
func (c *Core) Close(ctx context.Context, userID, agent string) {
	messages, err := c.history.Find(ctx, userID)
	if err != nil {
		c.storeFailed("history.find", err, slog.String("user_id", userID))
	} else if c.unknownChat(userID, messages) {
		c.log.With(
			slog.String("user_id", userID),
			slog.String("agent", agent),
		).Warn("close requested for unknown chat")
		return
	}

	if err != nil || !entity.IsClosed(messages) {
		closed := c.systemMessage(userID, entity.MarkerClosed, textChatClosed)
		c.appendMessage(ctx, closed)
		c.deliverToAgents(closed, "")
	}

	c.push(c.sessions.LiveConnection(userID), ws.PushChatClosed, map[string]string{"userId": userID})
	c.countClosure(ctx, userID, agent)
	c.sessions.MarkDisconnected(userID)

	c.log.With(
		slog.String("user_id", userID),
		slog.String("agent", agent),
	).Info("chat closed")
	c.broadcastSummary(ctx)
}

// countClosure is best effort: a failed increment is logged, not retried.
func (c *Core) countClosure(ctx context.Context, userID, agent string) {
	if agent == "" {
		c.log.With(slog.String("user_id", userID)).Warn("chat closed without agent, not counted")
		return
	}
	metrics.ChatClosuresTotal.WithLabelValues(agent).Inc()

	if c.perf == nil {
		return
	}
	if _, err := c.perf.IncrementClosures(ctx, agent, c.today()); err != nil {
		c.storeFailed("performance.increment", err,
			slog.String("user_id", userID),
			slog.String("agent", agent),
		)
	}
}
