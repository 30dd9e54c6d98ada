package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
)

var _ repository.ChatBindingRepository = (*ChatBindingRepo)(nil)

// ChatBindingRepo maps Telegram chats to session ids.
type ChatBindingRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewChatBindingRepo(client RedisClient, ttl time.Duration) *ChatBindingRepo {
	return &ChatBindingRepo{client: client, ttl: ttl}
}

func (s *ChatBindingRepo) bindingKey(chatID int64) string {
	return fmt.Sprintf("tg_session:%d", chatID)
}

func (s *ChatBindingRepo) Bind(ctx context.Context, chatID int64, sessionID string) error {
	return s.client.Set(ctx, s.bindingKey(chatID), sessionID, s.ttl)
}

func (s *ChatBindingRepo) SessionFor(ctx context.Context, chatID int64) (string, error) {
	id, err := s.client.Get(ctx, s.bindingKey(chatID))
	if errors.Is(err, ErrCacheMiss) {
		metrics.IncCacheRequest("binding", "miss")
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	metrics.IncCacheRequest("binding", "hit")
	// sliding expiry
	_ = s.client.Expire(ctx, s.bindingKey(chatID), s.ttl)
	return id, nil
}

func (s *ChatBindingRepo) Unbind(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.bindingKey(chatID))
}
