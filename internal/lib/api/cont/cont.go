package cont

import (
	"context"

	"ChatRelay/entity"
)

type ctxKey string

const userDataKey ctxKey = "agent"

func PutUser(ctx context.Context, user *entity.AgentAuth) context.Context {
	return context.WithValue(ctx, userDataKey, user)
}

func GetUser(ctx context.Context) *entity.AgentAuth {
	v := ctx.Value(userDataKey)
	if user, ok := v.(*entity.AgentAuth); ok {
		return user
	}
	return nil
}
