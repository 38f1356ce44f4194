package core

import (
	"context"
	"log/slog"

	"ChatRelay/entity"
	"ChatRelay/pkg/metrics"
)

// UserMessage handles a text message sent from the chat widget.
func (c *Core) UserMessage(ctx context.Context, p entity.UserMessagePayload) {
	msg := c.newMessage(p.UserID, entity.SenderFromRole(p.Sender))
	msg.Text = p.Message
	c.receive(ctx, msg)
}

// UserImage handles an attachment sent from the chat widget.
func (c *Core) UserImage(ctx context.Context, p entity.ImagePayload) {
	msg := c.newMessage(p.UserID, entity.SenderFromRole(p.Sender))
	msg.Image = p.Image
	c.receive(ctx, msg)
}

// AgentMessage handles an agent's reply to a user.
func (c *Core) AgentMessage(ctx context.Context, p entity.AgentMessagePayload) {
	msg := c.newMessage(p.UserID, entity.SenderAgent)
	msg.Text = p.Message

	c.appendMessage(ctx, msg)
	c.deliver(msg, "")
	c.broadcastSummary(ctx)
}

// receive stores and fans out a widget message, reopening a closed chat
// first and appending the bot reply right after it.
func (c *Core) receive(ctx context.Context, msg *entity.Message) {
	if msg.Sender == entity.SenderEndUser {
		c.reopenIfClosed(ctx, msg.UserID)
	}

	c.appendMessage(ctx, msg)
	c.deliver(msg, "")

	if c.bot != nil {
		if reply, ok := c.bot.Reply(msg); ok {
			botMsg := c.newMessage(msg.UserID, entity.SenderBot)
			botMsg.Text = reply
			c.appendMessage(ctx, botMsg)
			c.deliver(botMsg, "")
		}
	}

	c.broadcastSummary(ctx)
}

func (c *Core) newMessage(userID string, sender entity.Sender) *entity.Message {
	name, _ := c.sessions.DisplayName(userID)
	return &entity.Message{
		UserID:      userID,
		DisplayName: name,
		Sender:      sender,
	}
}

func (c *Core) systemMessage(userID string, marker entity.Marker, text string) *entity.Message {
	msg := c.newMessage(userID, entity.SenderSystem)
	msg.Marker = marker
	msg.Text = text
	if marker == entity.MarkerClosed {
		msg.Status = entity.StatusClosed
	}
	return msg
}

// appendMessage stamps and stores msg. A failed write is logged and the
// message is still delivered live.
func (c *Core) appendMessage(ctx context.Context, msg *entity.Message) {
	msg.CreatedAt = c.now()
	if err := c.history.Append(ctx, msg); err != nil {
		c.storeFailed("history.append", err,
			slog.String("user_id", msg.UserID),
			slog.String("sender", string(msg.Sender)),
		)
		return
	}
	metrics.RecordMessage(string(msg.Sender))
}
