package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/ws"
	"ChatRelay/pkg/metrics"
)

// Run executes queued work one item at a time until ctx is done.
func (c *Core) Run(ctx context.Context) {
	c.log.Info("router started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("router stopped")
			return
		case fn := <-c.inbox:
			c.exec(ctx, fn)
		}
	}
}

func (c *Core) exec(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			c.log.With(
				slog.Any("panic", r),
			).Error("router handler")
		}
	}()
	fn(ctx)
}

// Submit queues an inbound transport event for the router.
func (c *Core) Submit(ev ws.Inbound) {
	c.inbox <- func(ctx context.Context) {
		c.handleLogged(ctx, ev)
	}
}

// Call runs fn on the router goroutine and waits for its result.
func (c *Core) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	select {
	case c.inbox <- func(ctx context.Context) { done <- fn(ctx) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) handleLogged(ctx context.Context, ev ws.Inbound) {
	err := c.Handle(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrUnknownEvent):
		metrics.RecordDropped(ws.MetricLabel(ev.Type), "malformed")
		c.log.With(
			slog.String("type", ev.Type),
		).Warn("event dropped", sl.Err(err))
	default:
		c.log.With(
			slog.String("type", ev.Type),
		).Error("handle event", sl.Err(err))
	}
}

// validatable is implemented by every inbound payload.
type validatable interface {
	Validate() error
}

func decode(ev ws.Inbound, payload validatable) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("%w: %s: empty payload", ErrMalformedEvent, ev.Type)
	}
	if err := json.Unmarshal(ev.Data, payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Type, err)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Type, err)
	}
	return nil
}

// Handle routes one inbound event to completion. It must only be called
// from the router goroutine, or from tests that own the Core.
func (c *Core) Handle(ctx context.Context, ev ws.Inbound) error {
	if c.history == nil {
		return fmt.Errorf("%w: history store not configured", ErrStoreFailure)
	}

	start := time.Now()
	defer func() {
		metrics.RecordEvent(ws.MetricLabel(ev.Type), time.Since(start).Seconds())
	}()

	switch ev.Type {
	case ws.EventUserJoined:
		var p entity.JoinPayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		_, _ = c.Join(ctx, ev.Conn, p.UserID, p.DisplayName)
		return nil

	case ws.EventChatMessage:
		var p entity.UserMessagePayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		c.UserMessage(ctx, p)
		return nil

	case ws.EventImage:
		var p entity.ImagePayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		c.UserImage(ctx, p)
		return nil

	case ws.EventAgentMessage:
		var p entity.AgentMessagePayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		c.AgentMessage(ctx, p)
		return nil

	case ws.EventAdminConnected:
		if ev.Conn == nil {
			return fmt.Errorf("%w: %s: no connection", ErrMalformedEvent, ev.Type)
		}
		c.AdminConnect(ctx, ev.Conn)
		return nil

	case ws.EventRequestHistory:
		var p entity.HistoryRequestPayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		if ev.Conn == nil {
			return fmt.Errorf("%w: %s: no connection", ErrMalformedEvent, ev.Type)
		}
		c.RequestHistory(ctx, ev.Conn, p.UserID)
		return nil

	case ws.EventCloseChat:
		var p entity.ClosePayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		agent := p.AgentUsername
		if agent == "" {
			agent = ev.Agent
		}
		c.Close(ctx, p.UserID, agent)
		return nil

	case ws.EventRenameUser:
		var p entity.RenamePayload
		if err := decode(ev, &p); err != nil {
			return err
		}
		c.UpdateDisplayName(ctx, p.UserID, p.DisplayName)
		return nil

	case ws.EventDisconnect:
		if ev.Conn != nil {
			c.Disconnect(ctx, ev.Conn)
		}
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}
