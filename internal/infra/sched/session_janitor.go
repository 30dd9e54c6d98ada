package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
)

// IdleSweeper is implemented by session stores that can drop idle sessions.
// DeleteIdle returns the ids it removed.
type IdleSweeper interface {
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

// SessionJanitor periodically deletes sessions idle for longer than ttl.
type SessionJanitor struct {
	interval time.Duration
	ttl      time.Duration
	store    IdleSweeper
	log      *zerolog.Logger
}

func NewSessionJanitor(interval, ttl time.Duration, store IdleSweeper, logger *zerolog.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	jLog := logger.With().Str("component", "SessionJanitor").Logger()
	return &SessionJanitor{
		interval: interval,
		ttl:      ttl,
		store:    store,
		log:      &jLog,
	}
}

func (w *SessionJanitor) Run(ctx context.Context) error {
	w.log.Info().Dur("ttl", w.ttl).Msg("Starting session janitor")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session janitor")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass.
func (w *SessionJanitor) Sweep(ctx context.Context) int64 {
	ids, err := w.store.DeleteIdle(ctx, time.Now().Add(-w.ttl))
	if err != nil {
		w.log.Error().Err(err).Msg("session janitor error")
		return 0
	}
	n := int64(len(ids))
	if n > 0 {
		metrics.AddSessionsPurged(n)
		w.log.Info().Int64("count", n).Msg("idle sessions deleted")
	}
	return n
}
