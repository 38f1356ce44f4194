package chats

import (
	"ChatRelay/entity"
	"context"
)

type Core interface {
	Summarize(ctx context.Context) ([]entity.ConversationSummary, error)
	History(ctx context.Context, userID string) ([]entity.Message, error)
	ResetConversation(ctx context.Context, userID, status string) (int64, error)
	CloseChat(ctx context.Context, userID, agent string) error
}
