package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// EnsureSchema creates the application tables when they do not exist yet.
// Migrations proper are out of scope for a single-instance deployment.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS scenarios (
    yaml_id     TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    config_json JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT PRIMARY KEY,
    scenario_id  TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'active',
    created_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    data_json    JSONB
);

CREATE TABLE IF NOT EXISTS messages (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL REFERENCES sessions (id),
    role          TEXT NOT NULL,
    content       TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    metadata_json JSONB
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, id);
`
	_, err := pool.Exec(ctx, ddl)
	return err
}
