// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
)

var _ repository.SessionLocker = (*RedisLocker)(nil)

// RedisLocker is a SessionLocker shared by every instance using the same
// Redis. The lock expires after ttl so a crashed holder cannot wedge a session;
// versioned saves catch a holder that outlives its lease.
type RedisLocker struct {
	cli   RedisClient
	ttl   time.Duration
	retry time.Duration
	log   *zerolog.Logger
}

func NewLocker(c RedisClient, ttl time.Duration, logger *zerolog.Logger) *RedisLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisLocker{cli: c, ttl: ttl, retry: 50 * time.Millisecond, log: logger}
}

func lockKey(sessionID string) string { return "session_lock:" + sessionID }

// Lock polls SETNX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKey(sessionID)
	token := uuid.NewString()

	t := time.NewTicker(l.retry)
	defer t.Stop()
	for {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl)
		if err == nil && ok {
			break
		}
		if err != nil {
			l.log.Warn().Err(err).Str("session_id", sessionID).Msg("lock attempt failed")
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrSessionBusy, ctx.Err())
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be cancelled
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := l.cli.DelIfEquals(uctx, key, token); err != nil {
				l.log.Warn().Err(err).Str("session_id", sessionID).Msg("unlock failed; lock will expire")
			}
		})
	}, nil
}
