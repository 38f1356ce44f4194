package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
)

// History returns the stored conversation of userID. It reads the store
// directly and may run concurrently with the router.
func (c *Core) History(ctx context.Context, userID string) ([]entity.Message, error) {
	if c.history == nil {
		return nil, fmt.Errorf("%w: history store not configured", ErrStoreFailure)
	}
	messages, err := c.history.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", ErrStoreFailure, err)
	}
	return messages, nil
}

// ResetConversation deletes the history of userID. A non-empty status only
// deletes messages carrying that status.
func (c *Core) ResetConversation(ctx context.Context, userID, status string) (int64, error) {
	var deleted int64
	err := c.Call(ctx, func(ctx context.Context) error {
		n, err := c.history.DeleteWhere(ctx, userID, entity.MessageFilter{Status: status})
		if err != nil {
			c.storeFailed("history.delete", err, slog.String("user_id", userID))
			return fmt.Errorf("%w: delete: %v", ErrStoreFailure, err)
		}
		deleted = n
		c.broadcastSummary(ctx)
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.log.With(
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.Int64("deleted", deleted),
	).Info("conversation reset")
	return deleted, nil
}

// CloseChat closes a conversation from the REST API.
func (c *Core) CloseChat(ctx context.Context, userID, agent string) error {
	return c.Call(ctx, func(ctx context.Context) error {
		c.Close(ctx, userID, agent)
		return nil
	})
}

// Performance returns the closure counters of day, or of today when day is
// empty.
func (c *Core) Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error) {
	if day == "" {
		day = c.today()
	}
	if _, err := time.Parse(entity.DayLayout, day); err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", day, err)
	}
	if c.perf == nil {
		return []entity.PerformanceCounter{}, nil
	}
	counters, err := c.perf.Performance(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: performance: %v", ErrStoreFailure, err)
	}
	return counters, nil
}

// Init starts the history retention job. Messages older than days are
// deleted once a day; days <= 0 disables it.
func (c *Core) Init(ctx context.Context, days int) {
	if days <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			c.purge(ctx, days)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *Core) purge(ctx context.Context, days int) {
	before := c.now().AddDate(0, 0, -days)
	var deleted int64
	err := c.Call(ctx, func(ctx context.Context) error {
		n, err := c.history.DeleteWhere(ctx, "", entity.MessageFilter{Before: before})
		if err != nil {
			c.storeFailed("history.delete", err)
			return err
		}
		deleted = n
		if n > 0 {
			c.broadcastSummary(ctx)
		}
		return nil
	})
	if err != nil {
		c.log.Error("history cleanup", sl.Err(err))
		return
	}
	c.log.With(
		slog.Time("before", before),
		slog.Int64("deleted", deleted),
	).Info("history cleanup")
}
