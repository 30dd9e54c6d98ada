package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/security"
)

var _ repository.CareerSessionRepository = (*CachedSessionRepo)(nil)

// SessionStore is the durable store behind the cache. DeleteIdle returns the
// ids it removed so their cached copies can be evicted.
type SessionStore interface {
	repository.CareerSessionRepository
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

// CachedSessionRepo is a read-through cache in front of a session store. The
// cache is refreshed after every successful write, so a cached copy never runs
// ahead of the store; a stale copy only costs a version conflict. Message
// content is sealed with the store's sealer before it reaches Redis.
type CachedSessionRepo struct {
	inner  SessionStore
	client RedisClient
	sealer security.Sealer
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewCachedSessionRepo(inner SessionStore, client RedisClient, sealer security.Sealer, ttl time.Duration, logger *zerolog.Logger) *CachedSessionRepo {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if sealer == nil {
		sealer = security.Plaintext{}
	}
	return &CachedSessionRepo{inner: inner, client: client, sealer: sealer, ttl: ttl, log: logger}
}

func sessionKey(id string) string { return "career_session:" + id }

func (c *CachedSessionRepo) FindByID(ctx context.Context, id string) (*model.CareerSession, error) {
	data, err := c.client.Get(ctx, sessionKey(id))
	if err == nil {
		s, derr := c.decode(id, data)
		if derr == nil {
			metrics.IncCacheRequest("session", "hit")
			return s, nil
		}
		c.log.Warn().Err(derr).Str("session_id", id).Msg("dropping undecodable cached session")
		_ = c.client.Del(ctx, sessionKey(id))
	} else if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn().Err(err).Msg("session cache read failed")
	}
	metrics.IncCacheRequest("session", "miss")

	s, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, s)
	return s, nil
}

func (c *CachedSessionRepo) Save(ctx context.Context, s *model.CareerSession) error {
	if err := c.inner.Save(ctx, s); err != nil {
		// the cached copy may be the stale one
		_ = c.client.Del(ctx, sessionKey(s.ID))
		return err
	}
	c.store(ctx, s)
	return nil
}

func (c *CachedSessionRepo) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, sessionKey(id)); err != nil {
		c.log.Warn().Err(err).Msg("session cache delete failed")
	}
	return c.inner.Delete(ctx, id)
}

// DeleteIdle purges idle sessions from the store and evicts their cached copies.
func (c *CachedSessionRepo) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := c.inner.DeleteIdle(ctx, cutoff)
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = sessionKey(id)
		}
		if derr := c.client.Del(ctx, keys...); derr != nil {
			c.log.Warn().Err(derr).Int("count", len(keys)).Msg("session cache eviction failed")
		}
	}
	return ids, err
}

func (c *CachedSessionRepo) store(ctx context.Context, s *model.CareerSession) {
	data, err := c.encode(s)
	if err != nil {
		c.log.Warn().Err(err).Msg("session cache encode failed")
		_ = c.client.Del(ctx, sessionKey(s.ID))
		return
	}
	if err := c.client.Set(ctx, sessionKey(s.ID), data, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("session cache write failed")
		_ = c.client.Del(ctx, sessionKey(s.ID))
	}
}

func (c *CachedSessionRepo) encode(s *model.CareerSession) ([]byte, error) {
	if !c.sealer.Enabled() {
		return json.Marshal(s)
	}
	cp := s.Clone()
	for i := range cp.Messages {
		ct, err := c.sealer.Seal(cp.ID, cp.Messages[i].Content)
		if err != nil {
			return nil, fmt.Errorf("seal message %d: %w", i, err)
		}
		cp.Messages[i].Content = ct
	}
	return json.Marshal(cp)
}

func (c *CachedSessionRepo) decode(id, data string) (*model.CareerSession, error) {
	var s model.CareerSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	if s.ID != id {
		return nil, fmt.Errorf("cached session id %q does not match key", s.ID)
	}
	for i := range s.Messages {
		pt, err := c.sealer.Open(id, s.Messages[i].Content)
		if err != nil {
			return nil, fmt.Errorf("open message %d: %w", i, err)
		}
		s.Messages[i].Content = pt
	}
	return &s, nil
}
