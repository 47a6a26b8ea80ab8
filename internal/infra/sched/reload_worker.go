package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chattrain/internal/content"
	"chattrain/internal/infra/metrics"
)

// ReloadWorker periodically refreshes cached scenarios whose definition
// files changed on disk, so edits become visible without waiting for the
// cache TTL or an explicit reload.
type ReloadWorker struct {
	interval time.Duration
	loader   *content.Loader
	log      *zerolog.Logger
}

func NewReloadWorker(interval time.Duration, loader *content.Loader, logger *zerolog.Logger) *ReloadWorker {
	l := logger.With().Str("component", "ReloadWorker").Logger()
	return &ReloadWorker{
		interval: interval,
		loader:   loader,
		log:      &l,
	}
}

func (w *ReloadWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reload worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reload worker")
			return ctx.Err()
		case <-ticker.C:
			ids := w.loader.ModifiedIDs()
			for _, id := range ids {
				if _, err := w.loader.Load(ctx, id); err != nil {
					w.log.Error().Err(err).Str("scenario_id", id).Msg("reload failed")
				}
			}
			if len(ids) > 0 {
				metrics.IncContentReload()
				w.log.Info().Int("count", len(ids)).Msg("modified scenarios refreshed")
			}
		}
	}
}
