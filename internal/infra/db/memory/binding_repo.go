package memory

import (
	"context"
	"sync"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
)

var _ repository.ChatBindingRepository = (*BindingRepo)(nil)

// BindingRepo keeps chat to session bindings in process memory.
type BindingRepo struct {
	mu sync.RWMutex
	m  map[int64]string
}

func NewBindingRepo() *BindingRepo {
	return &BindingRepo{m: make(map[int64]string)}
}

func (r *BindingRepo) Bind(ctx context.Context, chatID int64, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[chatID] = sessionID
	return nil
}

func (r *BindingRepo) SessionFor(ctx context.Context, chatID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.m[chatID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

func (r *BindingRepo) Unbind(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, chatID)
	return nil
}
