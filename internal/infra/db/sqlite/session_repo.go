// Package sqlite is a single-file session store built on the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/security"
)

//go:embed schema.sql
var schemaSQL string

var _ repository.CareerSessionRepository = (*SessionRepo)(nil)

type SessionRepo struct {
	db     *sql.DB
	sealer security.Sealer
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, sealer security.Sealer) (*SessionRepo, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps version checks and appends serialized
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if sealer == nil {
		sealer = security.Plaintext{}
	}
	return &SessionRepo{db: db, sealer: sealer}, nil
}

func (r *SessionRepo) Close() error { return r.db.Close() }

func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.CareerSession, error) {
	const qs = `
SELECT id, state, name, stream, selected_role, version, created_at, last_active
  FROM career_sessions WHERE id = ?`
	var s model.CareerSession
	var state string
	var created, active int64
	err := r.db.QueryRowContext(ctx, qs, id).Scan(
		&s.ID, &state, &s.Profile.Name, &s.Profile.Stream, &s.Profile.SelectedRole,
		&s.Version, &created, &active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.State = model.State(state)
	s.CreatedAt = fromNanos(created)
	s.LastActive = fromNanos(active)

	const qm = `
SELECT id, role, content, tokens, encrypted, created_at
  FROM career_messages WHERE session_id = ? ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, qm, id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var role string
		var encrypted bool
		var ts int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Tokens, &encrypted, &ts); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if m.Role, err = model.ParseRole(role); err != nil {
			return nil, err
		}
		if encrypted {
			if m.Content, err = r.sealer.Open(s.ID, m.Content); err != nil {
				return nil, fmt.Errorf("decrypt msg: %w", err)
			}
		}
		m.Timestamp = fromNanos(ts)
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return &s, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *model.CareerSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	next := s.Version + 1
	var res sql.Result
	if s.Version == 0 {
		res, err = tx.ExecContext(ctx, `
INSERT INTO career_sessions (id, state, name, stream, selected_role, version, created_at, last_active)
VALUES (?,?,?,?,?,?,?,?) ON CONFLICT (id) DO NOTHING`,
			s.ID, string(s.State), s.Profile.Name, s.Profile.Stream, s.Profile.SelectedRole,
			next, s.CreatedAt.UnixNano(), s.LastActive.UnixNano())
	} else {
		res, err = tx.ExecContext(ctx, `
UPDATE career_sessions
   SET state = ?, name = ?, stream = ?, selected_role = ?, version = ?, last_active = ?
 WHERE id = ? AND version = ?`,
			string(s.State), s.Profile.Name, s.Profile.Stream, s.Profile.SelectedRole,
			next, s.LastActive.UnixNano(), s.ID, s.Version)
	}
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrConflict
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM career_messages WHERE session_id = ?`, s.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if stored > len(s.Messages) {
		return domain.ErrConflict
	}
	for i, m := range s.Messages[stored:] {
		content, err := r.sealer.Seal(s.ID, m.Content)
		if err != nil {
			return fmt.Errorf("encrypt msg: %w", err)
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO career_messages (session_id, seq, id, role, content, tokens, encrypted, created_at)
VALUES (?,?,?,?,?,?,?,?)`,
			s.ID, stored+i, m.ID, string(m.Role), content, m.Tokens, r.sealer.Enabled(), ts.UnixNano()); err != nil {
			return fmt.Errorf("insert message %d: %w", stored+i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.Version = next
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM career_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteIdle removes sessions inactive since before cutoff.
func (r *SessionRepo) DeleteIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM career_sessions WHERE last_active < ? RETURNING id`, cutoff.UnixNano())
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

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
