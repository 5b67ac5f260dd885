package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/greenreach/internal/db"
	"github.com/sells-group/greenreach/internal/model"
)

// BritishNationalGrid is the SRID of the reference easting/northing data.
const BritishNationalGrid = 27700

const (
	runsTable   = "greenreach.runs"
	scoresTable = "greenreach.zone_scores"
)

var scoreColumns = []string{"run_id", "zone_id", "x", "y", "kind", "value", "geom"}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	srid    int
	closeFn func()
}

// PoolConfig holds optional connection pool tuning and the SRID written
// to the geometry column. Zero values take the defaults.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
	SRID     int
}

func (c *PoolConfig) withDefaults() PoolConfig {
	out := PoolConfig{MaxConns: 10, MinConns: 2, SRID: BritishNationalGrid}
	if c == nil {
		return out
	}
	if c.MaxConns > 0 {
		out.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		out.MinConns = c.MinConns
	}
	if c.SRID > 0 {
		out.SRID = c.SRID
	}
	return out
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pc := poolCfg.withDefaults()
	pgxCfg.MaxConns = pc.MaxConns
	pgxCfg.MinConns = pc.MinConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, srid: pc.SRID, closeFn: pool.Close}, nil
}

// point encodes a zone centroid as EWKB in the store's SRID.
func (s *PostgresStore) point(x, y float64) ([]byte, error) {
	return ewkb.Marshal(geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(s.srid), ewkb.NDR)
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS greenreach;

CREATE TABLE IF NOT EXISTS greenreach.runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	summary    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS greenreach.zone_scores (
	run_id  TEXT NOT NULL REFERENCES greenreach.runs(id) ON DELETE CASCADE,
	zone_id TEXT NOT NULL,
	x       DOUBLE PRECISION NOT NULL,
	y       DOUBLE PRECISION NOT NULL,
	kind    TEXT NOT NULL,
	value   DOUBLE PRECISION,
	geom    geometry(Point),
	PRIMARY KEY (run_id, zone_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON greenreach.runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON greenreach.runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_zone_scores_kind ON greenreach.zone_scores(run_id, kind);
CREATE INDEX IF NOT EXISTS idx_zone_scores_geom ON greenreach.zone_scores USING GIST (geom);
`

// migrationLock serializes concurrent migrations (e.g. overlapping deploys).
const migrationLock = 20250918

func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLock); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLock); err != nil {
			log.Warn("postgres: failed to release migration lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	log.Info("schema ready")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.Params) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO greenreach.runs (id, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE greenreach.runs SET summary = $1, status = $2, error = NULL, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE greenreach.runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, params, summary, error, created_at, updated_at FROM greenreach.runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, params, summary, error, created_at, updated_at FROM greenreach.runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveScores upserts the scores of runID with the zone centroid as a
// PostGIS point.
func (s *PostgresStore) SaveScores(ctx context.Context, runID string, scores []model.ZoneScore) error {
	if len(scores) == 0 {
		return nil
	}

	rows := make([][]any, len(scores))
	for i, zs := range scores {
		point, err := s.point(zs.X, zs.Y)
		if err != nil {
			return eris.Wrapf(err, "postgres: encode point for zone %s", zs.ZoneID)
		}
		kind, value := scoreValue(zs.Score)
		rows[i] = []any{runID, zs.ZoneID, zs.X, zs.Y, kind, value, point}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        scoresTable,
		Columns:      scoreColumns,
		ConflictKeys: []string{"run_id", "zone_id"},
	}, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save scores %s", runID)
	}

	zap.L().Debug("postgres: saved scores", zap.String("run_id", runID), zap.Int64("rows", n))
	return nil
}

func (s *PostgresStore) GetScores(ctx context.Context, runID string, filter ScoreFilter) ([]model.ZoneScore, error) {
	query := `SELECT zone_id, x, y, kind, value FROM greenreach.zone_scores WHERE run_id = $1`
	args := []any{runID}
	argIdx := 2

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	query += ` ORDER BY zone_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scores %s", runID)
	}
	defer rows.Close()

	var out []model.ZoneScore
	for rows.Next() {
		var (
			zs    model.ZoneScore
			kind  string
			value *float64
		)
		if err := rows.Scan(&zs.ZoneID, &zs.X, &zs.Y, &kind, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		if zs.Score, err = model.ParseScore(kind, value); err != nil {
			return nil, eris.Wrapf(err, "postgres: zone %s", zs.ZoneID)
		}
		out = append(out, zs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get scores iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r          model.Run
		status     string
		paramsJSON []byte
		summary    *[]byte
		errText    *string
	)
	if err := row.Scan(&r.ID, &status, &paramsJSON, &summary, &errText, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)

	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if summary != nil {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(*summary, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	if errText != nil {
		r.Error = *errText
	}
	return &r, nil
}
