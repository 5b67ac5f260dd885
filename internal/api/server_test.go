package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedRun stores one completed run with three scores.
func seedRun(t *testing.T, st store.Store) string {
	t.Helper()
	ctx := context.Background()
	run, err := st.CreateRun(ctx, model.Params{K: 5, Cutoff: 5000})
	require.NoError(t, err)
	require.NoError(t, st.SaveScores(ctx, run.ID, []model.ZoneScore{
		{ZoneID: "Z1", X: 1, Y: 1, Score: model.Finite(12)},
		{ZoneID: "Z2", X: 2, Y: 2, Score: model.ClosedForm(152)},
		{ZoneID: "Z3", X: 3, Y: 3, Score: model.Unreachable()},
	}))
	require.NoError(t, st.CompleteRun(ctx, run.ID, &model.RunSummary{
		Counts: model.ScoreCounts{Finite: 1, ClosedForm: 1, Unreachable: 1},
	}))
	return run.ID
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(newTestStore(t), Options{})

	rec := do(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "down.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	rec := do(t, NewRouter(st, Options{}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuns(t *testing.T) {
	st := newTestStore(t)
	id := seedRun(t, st)
	h := NewRouter(st, Options{})

	rec := do(t, h, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestListRuns_Empty(t *testing.T) {
	rec := do(t, NewRouter(newTestStore(t), Options{}), "/runs?status=failed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRuns_BadParams(t *testing.T) {
	h := NewRouter(newTestStore(t), Options{})

	for _, target := range []string{"/runs?status=bogus", "/runs?limit=abc", "/runs?limit=-1", "/runs?offset=-5"} {
		rec := do(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetRun(t *testing.T) {
	st := newTestStore(t)
	id := seedRun(t, st)

	rec := do(t, NewRouter(st, Options{}), "/runs/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var run model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.NotNil(t, run.Summary)
	assert.Equal(t, 1, run.Summary.Counts.Unreachable)
}

func TestGetRun_NotFound(t *testing.T) {
	rec := do(t, NewRouter(newTestStore(t), Options{}), "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"run not found"}`, rec.Body.String())
}

func TestGetScores(t *testing.T) {
	st := newTestStore(t)
	id := seedRun(t, st)
	h := NewRouter(st, Options{})

	rec := do(t, h, "/runs/"+id+"/scores")
	require.Equal(t, http.StatusOK, rec.Code)

	var scores []model.ZoneScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 3)
	assert.Equal(t, model.Unreachable(), scores[2].Score)

	rec = do(t, h, "/runs/"+id+"/scores?kind=closed_form")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "Z2", scores[0].ZoneID)

	rec = do(t, h, "/runs/"+id+"/scores?limit=1&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "Z3", scores[0].ZoneID)
}

func TestGetScores_Errors(t *testing.T) {
	st := newTestStore(t)
	id := seedRun(t, st)
	h := NewRouter(st, Options{})

	assert.Equal(t, http.StatusNotFound, do(t, h, "/runs/missing/scores").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs/"+id+"/scores?kind=infinite").Code)
}

func TestGetScoresGeoJSON(t *testing.T) {
	st := newTestStore(t)
	id := seedRun(t, st)

	rec := do(t, NewRouter(st, Options{}), "/runs/"+id+"/scores.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string           `json:"type"`
		Features []map[string]any `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 3)
}

func TestCORS(t *testing.T) {
	h := NewRouter(newTestStore(t), Options{AllowedOrigins: []string{"https://maps.example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://maps.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
