package repository

import (
	"context"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
)

// CareerSessionRepository persists career sessions.
//
// FindByID returns domain.ErrNotFound for unknown ids. Save is versioned: the
// stored version must equal s.Version (0 for a new record), otherwise it fails
// with domain.ErrConflict. On success s.Version is incremented. Messages are
// append-only; a store never rewrites or drops an existing message.
type CareerSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.CareerSession, error)
	Save(ctx context.Context, s *model.CareerSession) error
	Delete(ctx context.Context, id string) error
}

// SessionLocker serializes turns on one session id. The returned unlock func
// is safe to call more than once.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}
