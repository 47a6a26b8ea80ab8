package content

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chattrain/internal/domain"
	"chattrain/internal/domain/model"
	"chattrain/internal/domain/ports/repository"
	"chattrain/internal/infra/metrics"
)

const definitionFile = "scenario.yaml"

type cacheEntry struct {
	scenario *model.Scenario
	mtime    time.Time
	cachedAt time.Time
}

// Loader reads scenario definitions from the content root, one directory per
// scenario id with a scenario.yaml inside. Parsed results are cached by id
// and refreshed when the file's mtime changes or the entry outlives the TTL.
// The Loader exclusively owns the in-memory Scenario values; entries are
// replaced wholesale so concurrent readers never observe partial state.
type Loader struct {
	root      string
	ttl       time.Duration
	snapshots repository.ScenarioSnapshotRepository // optional
	log       *zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewLoader(root string, ttl time.Duration, snapshots repository.ScenarioSnapshotRepository, logger *zerolog.Logger) *Loader {
	l := logger.With().Str("component", "ScenarioLoader").Logger()
	return &Loader{
		root:      root,
		ttl:       ttl,
		snapshots: snapshots,
		log:       &l,
		cache:     make(map[string]cacheEntry),
	}
}

func (l *Loader) definitionPath(id string) string {
	return filepath.Join(l.root, id, definitionFile)
}

// Load returns the scenario for id, from cache while the definition file is
// unchanged and the entry is within TTL. Returns domain.ErrNotFound when no
// definition file exists, or the validator's *domain.SchemaError.
func (l *Loader) Load(ctx context.Context, id string) (*model.Scenario, error) {
	path := l.definitionPath(id)
	fi, err := os.Stat(path)
	if err != nil {
		metrics.IncScenarioLoadError("not_found")
		return nil, domain.ErrNotFound
	}

	l.mu.RLock()
	entry, ok := l.cache[id]
	l.mu.RUnlock()
	if ok && entry.mtime.Equal(fi.ModTime()) && time.Since(entry.cachedAt) < l.ttl {
		metrics.IncScenarioCacheHit()
		return entry.scenario, nil
	}
	metrics.IncScenarioCacheMiss()

	b, err := os.ReadFile(path)
	if err != nil {
		metrics.IncScenarioLoadError("io")
		return nil, domain.ErrNotFound
	}
	sc, err := ValidateYAML(b)
	if err != nil {
		metrics.IncScenarioLoadError("schema")
		return nil, err
	}
	if sc.ID != id {
		metrics.IncScenarioLoadError("schema")
		return nil, domain.NewSchemaError("id",
			"does not match its directory name "+id)
	}

	l.mu.Lock()
	l.cache[id] = cacheEntry{scenario: sc, mtime: fi.ModTime(), cachedAt: time.Now()}
	l.mu.Unlock()

	l.upsertSnapshot(ctx, sc)
	l.log.Debug().Str("scenario_id", id).Msg("scenario loaded from disk")
	return sc, nil
}

// upsertSnapshot writes the denormalized catalog row. Best-effort: the
// definition file remains authoritative, so failures are only logged.
func (l *Loader) upsertSnapshot(ctx context.Context, sc *model.Scenario) {
	if l.snapshots == nil {
		return
	}
	cfg, err := json.Marshal(sc)
	if err != nil {
		l.log.Warn().Err(err).Str("scenario_id", sc.ID).Msg("snapshot marshal failed")
		return
	}
	sum := &model.ScenarioSummary{ID: sc.ID, Title: sc.Title, Config: cfg, UpdatedAt: time.Now().UTC()}
	if err := l.snapshots.Upsert(ctx, sum); err != nil {
		l.log.Warn().Err(err).Str("scenario_id", sc.ID).Msg("snapshot upsert failed")
	}
}

// ListIDs enumerates scenario directories under the content root.
func (l *Loader) ListIDs() []string {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.root, e.Name(), definitionFile)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids
}

// ListAll loads every scenario under the content root. Scenarios that fail
// validation are logged and skipped so one malformed file cannot take the
// catalog offline.
func (l *Loader) ListAll(ctx context.Context) []*model.Scenario {
	var out []*model.Scenario
	for _, id := range l.ListIDs() {
		sc, err := l.Load(ctx, id)
		if err != nil {
			l.log.Warn().Err(err).Str("scenario_id", id).Msg("skipping invalid scenario")
			continue
		}
		out = append(out, sc)
	}
	return out
}

// Reload drops every cache entry, forcing the next Load of each scenario to
// re-read and re-validate its file.
func (l *Loader) Reload() {
	l.mu.Lock()
	l.cache = make(map[string]cacheEntry)
	l.mu.Unlock()
	metrics.IncContentReload()
	l.log.Info().Msg("scenario cache invalidated")
}

// ModifiedIDs returns cached scenario ids whose definition file no longer
// matches the cached entry (changed, expired, or deleted).
func (l *Loader) ModifiedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for id, entry := range l.cache {
		fi, err := os.Stat(l.definitionPath(id))
		if err != nil || !fi.ModTime().Equal(entry.mtime) || time.Since(entry.cachedAt) >= l.ttl {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DocumentInfo describes one document reference with its on-disk state.
type DocumentInfo struct {
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes"`
}

// Documents reports the scenario's document references together with
// existence and size, the check the pure validator cannot perform.
func (l *Loader) Documents(ctx context.Context, id string) ([]DocumentInfo, error) {
	sc, err := l.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(l.root, id)
	out := make([]DocumentInfo, 0, len(sc.Documents))
	for _, d := range sc.Documents {
		info := DocumentInfo{Filename: d.Filename, Title: d.Title}
		if fi, err := os.Stat(filepath.Join(dir, d.Filename)); err == nil && fi.Mode().IsRegular() {
			info.Exists = true
			info.SizeBytes = fi.Size()
		}
		out = append(out, info)
	}
	return out, nil
}

// Stats is the payload for the content health endpoint.
type Stats struct {
	ContentDir         string   `json:"content_dir"`
	AvailableScenarios int      `json:"available_scenarios"`
	CachedScenarios    int      `json:"cached_scenarios"`
	CachedIDs          []string `json:"cached_ids"`
	CacheTTLSeconds    float64  `json:"cache_ttl_seconds"`
}

func (l *Loader) Stats() Stats {
	l.mu.RLock()
	ids := make([]string, 0, len(l.cache))
	for id := range l.cache {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Strings(ids)
	return Stats{
		ContentDir:         l.root,
		AvailableScenarios: len(l.ListIDs()),
		CachedScenarios:    len(ids),
		CachedIDs:          ids,
		CacheTTLSeconds:    l.ttl.Seconds(),
	}
}

// Validate produces the authoring report for one scenario, including the
// document-existence check.
func (l *Loader) Validate(ctx context.Context, id string) Report {
	sc, err := l.Load(ctx, id)
	if err != nil {
		r := Report{ScenarioID: id, Valid: false}
		var se *domain.SchemaError
		switch {
		case errors.As(err, &se):
			r.Errors = append(r.Errors, se.Error())
		case errors.Is(err, domain.ErrNotFound):
			r.Errors = append(r.Errors, "scenario not found")
		default:
			r.Errors = append(r.Errors, err.Error())
		}
		return r
	}
	r := BuildReport(sc)
	docs, _ := l.Documents(ctx, id)
	for _, d := range docs {
		if !d.Exists {
			r.Valid = false
			r.Errors = append(r.Errors, "missing document: "+d.Filename)
		}
	}
	return r
}
