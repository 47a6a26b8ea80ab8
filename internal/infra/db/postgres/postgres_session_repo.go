package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo persists sessions and their append-only message transcripts.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, scenario_id, user_id, status, created_at, completed_at, data_json)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := r.pool.Exec(ctx, q, s.ID, s.ScenarioID, s.UserID, string(s.Status), s.CreatedAt, s.CompletedAt, nullableJSON(s.Data))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepo) FindSession(ctx context.Context, id string) (*model.Session, error) {
	const q = `
SELECT id, scenario_id, user_id, status, created_at, completed_at, data_json
FROM sessions WHERE id = $1;`
	var s model.Session
	var status string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.ScenarioID, &s.UserID, &status, &s.CreatedAt, &s.CompletedAt, &s.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	s.Status = model.SessionStatus(status)
	return &s, nil
}

// CompleteSession is idempotent: the WHERE clause keeps the first completion
// timestamp and makes a second call a no-op.
func (r *SessionRepo) CompleteSession(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE sessions SET status = 'completed', completed_at = $2
WHERE id = $1 AND status = 'active';`
	ct, err := r.pool.Exec(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Already completed, or unknown. Distinguish for the caller.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *SessionRepo) AppendMessage(ctx context.Context, m *model.Message) error {
	const q = `
INSERT INTO messages (id, session_id, role, content, created_at, metadata_json)
VALUES ($1,$2,$3,$4,$5,$6);`
	meta, err := marshalMeta(m.Meta)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = r.pool.Exec(ctx, q, m.ID, m.SessionID, m.Role, m.Content, m.Timestamp, meta)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign key violation
			return domain.ErrNotFound
		}
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *SessionRepo) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	const q = `
SELECT id, session_id, role, content, created_at, metadata_json
FROM messages WHERE session_id = $1 ORDER BY id;`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := unmarshalMeta(meta, &m.Meta); err != nil {
			return nil, fmt.Errorf("message metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
