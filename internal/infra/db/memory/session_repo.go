// Package memory is the process-local session store used in development and
// single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
)

var _ repository.CareerSessionRepository = (*SessionRepo)(nil)

type SessionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.CareerSession
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{store: make(map[string]*model.CareerSession)}
}

func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.CareerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *SessionRepo) Save(ctx context.Context, s *model.CareerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.store[s.ID]; ok {
		if cur.Version != s.Version {
			return domain.ErrConflict
		}
		if len(s.Messages) < len(cur.Messages) {
			return domain.ErrConflict
		}
	} else if s.Version != 0 {
		return domain.ErrConflict
	}
	s.Version++
	r.store[s.ID] = s.Clone()
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.store, id)
	return nil
}

// DeleteIdle removes sessions inactive since before cutoff.
func (r *SessionRepo) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.store {
		if s.LastActive.Before(cutoff) {
			delete(r.store, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store)
}
