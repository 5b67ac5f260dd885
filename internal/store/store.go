// Package store persists scoring runs and their zone scores.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ScoreFilter specifies criteria for reading a run's scores.
type ScoreFilter struct {
	Kind   model.ScoreKind `json:"kind,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.Params) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Scores
	SaveScores(ctx context.Context, runID string, scores []model.ZoneScore) error
	GetScores(ctx context.Context, runID string, filter ScoreFilter) ([]model.ZoneScore, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by driver ("sqlite" or "postgres").
// poolCfg only applies to postgres and may be nil.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultLimit = 100

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// scoreValue splits a score into its stored kind and nullable value.
func scoreValue(s model.Score) (string, *float64) {
	v, ok := s.Float()
	if !ok {
		return string(s.Kind), nil
	}
	return string(s.Kind), &v
}
