package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/repository"
)

var _ repository.ScenarioSnapshotRepository = (*ScenarioRepo)(nil)

// ScenarioRepo stores the denormalized scenario snapshots used for fast
// catalog listing. The YAML definition on disk stays authoritative.
type ScenarioRepo struct {
	pool *pgxpool.Pool
}

func NewScenarioRepo(pool *pgxpool.Pool) *ScenarioRepo {
	return &ScenarioRepo{pool: pool}
}

func (r *ScenarioRepo) Upsert(ctx context.Context, sum *model.ScenarioSummary) error {
	const q = `
INSERT INTO scenarios (yaml_id, title, config_json, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (yaml_id) DO UPDATE SET
  title = EXCLUDED.title,
  config_json = EXCLUDED.config_json,
  updated_at = EXCLUDED.updated_at;`
	_, err := r.pool.Exec(ctx, q, sum.ID, sum.Title, sum.Config, sum.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert scenario snapshot: %w", err)
	}
	return nil
}

func (r *ScenarioRepo) List(ctx context.Context) ([]model.ScenarioSummary, error) {
	const q = `SELECT yaml_id, title, config_json, updated_at FROM scenarios ORDER BY yaml_id;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list scenario snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.ScenarioSummary
	for rows.Next() {
		var s model.ScenarioSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Config, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scenario snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalMeta(meta model.MessageMeta) ([]byte, error) {
	return json.Marshal(meta)
}

func unmarshalMeta(b []byte, meta *model.MessageMeta) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, meta)
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
