package repository

import (
	"context"
)

// ChatBindingRepository maps a messenger chat to the session it is talking in.
// SessionFor returns domain.ErrNotFound when the chat has no binding.
type ChatBindingRepository interface {
	Bind(ctx context.Context, chatID int64, sessionID string) error
	SessionFor(ctx context.Context, chatID int64) (string, error)
	Unbind(ctx context.Context, chatID int64) error
}
