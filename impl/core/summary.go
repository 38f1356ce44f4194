package core

import (
	"context"
	"fmt"
	"sort"

	"ChatRelay/entity"
	"ChatRelay/internal/ws"
)

// Summarize recomputes the chat list from scratch, most recent activity
// first. Ties keep first-contact order.
func (c *Core) Summarize(ctx context.Context) ([]entity.ConversationSummary, error) {
	if c.history == nil {
		return nil, fmt.Errorf("%w: history store not configured", ErrStoreFailure)
	}
	digests, err := c.history.Digests(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: digests: %v", ErrStoreFailure, err)
	}

	sort.SliceStable(digests, func(i, j int) bool {
		return digests[i].FirstAt.Before(digests[j].FirstAt)
	})
	sort.SliceStable(digests, func(i, j int) bool {
		return digests[i].LastActivity.After(digests[j].LastActivity)
	})

	summaries := make([]entity.ConversationSummary, 0, len(digests))
	for _, d := range digests {
		name := d.DisplayName
		if live, ok := c.sessions.DisplayName(d.UserID); ok && live != "" {
			name = live
		}
		summaries = append(summaries, entity.ConversationSummary{
			UserID:           d.UserID,
			DisplayName:      name,
			LastActivityTime: d.LastActivity,
			LastMessage:      d.LastText,
			IsClosed:         d.IsClosed(),
			Online:           c.sessions.LiveConnection(d.UserID) != nil,
		})
	}
	return summaries, nil
}

func (c *Core) broadcastSummary(ctx context.Context) {
	members := c.admins.Members()
	if len(members) == 0 {
		return
	}

	summaries, err := c.Summarize(ctx)
	if err != nil {
		c.storeFailed("history.digests", err)
		return
	}
	for _, conn := range members {
		c.push(conn, ws.PushUserList, summaries)
	}
}
