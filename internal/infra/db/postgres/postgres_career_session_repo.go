// File: internal/infra/db/postgres/postgres_career_session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/security"
)

var _ repository.CareerSessionRepository = (*CareerSessionRepo)(nil)

// CareerSessionRepo keeps session rows in career_sessions and the append-only
// log in career_messages, ordered by seq. Message content is sealed when an
// encryption key is configured.
type CareerSessionRepo struct {
	pool   *pgxpool.Pool
	tm     repository.TransactionManager
	sealer security.Sealer
}

func NewCareerSessionRepo(pool *pgxpool.Pool, tm repository.TransactionManager, sealer security.Sealer) *CareerSessionRepo {
	if sealer == nil {
		sealer = security.Plaintext{}
	}
	return &CareerSessionRepo{pool: pool, tm: tm, sealer: sealer}
}

func (r *CareerSessionRepo) FindByID(ctx context.Context, id string) (*model.CareerSession, error) {
	return r.findByID(ctx, nil, id)
}

func (r *CareerSessionRepo) findByID(ctx context.Context, tx repository.Tx, id string) (*model.CareerSession, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	const qs = `
SELECT id, state, name, stream, selected_role, version, created_at, last_active
  FROM career_sessions WHERE id = $1;`
	var s model.CareerSession
	var state string
	err = exec.QueryRow(ctx, qs, id).Scan(
		&s.ID, &state, &s.Profile.Name, &s.Profile.Stream, &s.Profile.SelectedRole,
		&s.Version, &s.CreatedAt, &s.LastActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.State = model.State(state)

	const qm = `
SELECT id, role, content, tokens, encrypted, created_at
  FROM career_messages WHERE session_id = $1 ORDER BY seq ASC;`
	rows, err := exec.Query(ctx, qm, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		var role string
		var encrypted bool
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Tokens, &encrypted, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan msg: %w", err)
		}
		if m.Role, err = model.ParseRole(role); err != nil {
			return nil, err
		}
		if encrypted {
			if m.Content, err = r.sealer.Open(s.ID, m.Content); err != nil {
				return nil, fmt.Errorf("decrypt msg: %w", err)
			}
		}
		m.Timestamp = m.Timestamp.UTC()
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastActive = s.LastActive.UTC()
	return &s, nil
}

// Save writes the session row guarded by its version and appends the
// messages the store has not seen yet.
func (r *CareerSessionRepo) Save(ctx context.Context, s *model.CareerSession) error {
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		exec, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}

		next := s.Version + 1
		if s.Version == 0 {
			const qi = `
INSERT INTO career_sessions (id, state, name, stream, selected_role, version, created_at, last_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING;`
			tag, err := exec.Exec(ctx, qi, s.ID, string(s.State), s.Profile.Name, s.Profile.Stream,
				s.Profile.SelectedRole, next, s.CreatedAt, s.LastActive)
			if err != nil {
				return fmt.Errorf("insert session: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrConflict
			}
		} else {
			const qu = `
UPDATE career_sessions
   SET state = $3, name = $4, stream = $5, selected_role = $6, version = $7, last_active = $8
 WHERE id = $1 AND version = $2;`
			tag, err := exec.Exec(ctx, qu, s.ID, s.Version, string(s.State), s.Profile.Name,
				s.Profile.Stream, s.Profile.SelectedRole, next, s.LastActive)
			if err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrConflict
			}
		}

		var stored int
		const qc = `SELECT COUNT(*) FROM career_messages WHERE session_id = $1;`
		if err := exec.QueryRow(ctx, qc, s.ID).Scan(&stored); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		if stored > len(s.Messages) {
			return domain.ErrConflict
		}
		return r.appendMessages(ctx, exec, s.ID, stored, s.Messages[stored:])
	})
	if err != nil {
		return err
	}
	s.Version++
	return nil
}

func (r *CareerSessionRepo) appendMessages(ctx context.Context, exec executor, sessionID string, seq int, msgs []model.Message) error {
	const q = `
INSERT INTO career_messages (session_id, seq, id, role, content, tokens, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	for i, m := range msgs {
		content, err := r.sealer.Seal(sessionID, m.Content)
		if err != nil {
			return fmt.Errorf("encrypt msg: %w", err)
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := exec.Exec(ctx, q, sessionID, seq+i, m.ID, string(m.Role), content, m.Tokens, r.sealer.Enabled(), ts); err != nil {
			return fmt.Errorf("insert message %d: %w", seq+i, err)
		}
	}
	return nil
}

func (r *CareerSessionRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM career_sessions WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteIdle removes sessions inactive since before cutoff and returns their ids.
func (r *CareerSessionRepo) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `DELETE FROM career_sessions WHERE last_active < $1 RETURNING id;`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
