package repository

import (
	"context"

	"chattrain/internal/domain/model"
)

// ScenarioSnapshotRepository keeps a denormalized copy of each loaded
// scenario for catalog listing without filesystem access. The definition file
// always wins on conflict; this is a cache, not a source of truth.
type ScenarioSnapshotRepository interface {
	Upsert(ctx context.Context, sum *model.ScenarioSummary) error
	List(ctx context.Context) ([]model.ScenarioSummary, error)
}
