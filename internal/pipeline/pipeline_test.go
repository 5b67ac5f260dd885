package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/greenreach/internal/config"
	"github.com/sells-group/greenreach/internal/dataset"
	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/store"
)

type localResolver struct{}

func (localResolver) Resolve(_ context.Context, src, _ string) (string, error) {
	return src, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Stops A-B-C on one route; zone Z walks to A, zone W is well-served and
// sits one unit past C.
func fixtureSources(t *testing.T) dataset.Sources {
	t.Helper()
	dir := t.TempDir()
	return dataset.Sources{
		Stops: writeFile(t, dir, "bus-stops.csv",
			"Stop_Code_LBSL,Location_Easting,Location_Northing\nA,0,0\nB,1,0\nC,2,0\n"),
		Sequences: writeFile(t, dir, "bus-sequences.csv",
			"Route,Run,Sequence,Stop_Code_LBSL,Location_Easting,Location_Northing\n"+
				"1,1,1,A,0,0\n1,1,2,B,1,0\n1,1,3,C,2,0\n"),
		Councils: writeFile(t, dir, "london.csv", "LAName\nCamden\n"),
		Zones: writeFile(t, dir, "centroids.csv",
			"X,Y,objectid,lsoa11cd,lsoa11nm,globalid\n"+
				"-1,0,1,Z,Camden 001A,g1\n3,0,2,W,Camden 001B,g2\n"),
		GreenSpace: writeFile(t, dir, "green_space.csv",
			",LSOA_Code,GSDI_AvgArea,GSDI_Access,Area,Pcnt_PopArea_With_GOSpace_Access\n"+
				"0,Z,1,1,100,0.5\n1,W,4,4,900,1\n"),
	}
}

func testOptions() Options {
	return Options{
		Params: model.Params{
			WalkingSpeed:    1,
			TransitSpeed:    4,
			K:               1,
			Cutoff:          5000,
			UnderservedTier: 2,
			WellServedTier:  4,
			DuplicatePolicy: "min",
		},
		NetworkWorkers: 2,
		ReachWorkers:   2,
		HistogramBins:  10,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRun_WithoutStore(t *testing.T) {
	p := New(testOptions(), fixtureSources(t), localResolver{}, nil)

	out, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Run)

	z, ok := out.Result.Get("Z")
	require.True(t, ok)
	assert.Equal(t, model.Finite(2.5), z)

	w, ok := out.Result.Get("W")
	require.True(t, ok)
	assert.Equal(t, model.ClosedForm(330), w)

	assert.Equal(t, model.ScoreCounts{Finite: 1, ClosedForm: 1}, out.Summary.Counts)
	assert.Equal(t, 1, out.Summary.WellServed)
	assert.Equal(t, model.GraphStats{StopNodes: 3, ZoneNodes: 2, TransitEdges: 2, AccessEdges: 4}, out.Summary.Graph)
	assert.NotEmpty(t, out.Histogram)
}

func TestRun_Breakdown(t *testing.T) {
	p := New(testOptions(), fixtureSources(t), localResolver{}, nil)

	out, err := p.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, ph := range out.Summary.Breakdown {
		names = append(names, ph.Name)
	}
	assert.Equal(t, []string{PhaseLoad, PhaseIndex, PhaseGraph, PhaseCompute, PhaseAggregate}, names)
}

func TestRun_CutoffMakesZoneUnreachable(t *testing.T) {
	opts := testOptions()
	opts.Params.Cutoff = 2

	out, err := New(opts, fixtureSources(t), localResolver{}, nil).Run(context.Background())
	require.NoError(t, err)

	z, _ := out.Result.Get("Z")
	assert.Equal(t, model.Unreachable(), z)
}

func TestRun_PersistsToStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	out, err := New(testOptions(), fixtureSources(t), localResolver{}, st).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, out.Run)
	assert.Equal(t, model.RunStatusComplete, out.Run.Status)

	run, err := st.GetRun(ctx, out.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, out.Summary.Counts, run.Summary.Counts)

	scores, err := st.GetScores(ctx, run.ID, store.ScoreFilter{})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "W", scores[0].ZoneID)
	assert.Equal(t, 3.0, scores[0].X)
	assert.Equal(t, model.Finite(2.5), scores[1].Score)
}

func TestRun_FailureIsRecorded(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	src := fixtureSources(t)
	src.Stops = filepath.Join(t.TempDir(), "absent.csv")

	_, err := New(testOptions(), src, localResolver{}, st).Run(ctx)
	require.Error(t, err)

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "dataset: stops")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testOptions(), fixtureSources(t), localResolver{}, nil).Run(ctx)
	assert.Error(t, err)
}

func TestRun_BadPolicy(t *testing.T) {
	opts := testOptions()
	opts.Params.DuplicatePolicy = "max"

	_, err := New(opts, fixtureSources(t), localResolver{}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestBuildGraph(t *testing.T) {
	out, err := New(testOptions(), fixtureSources(t), localResolver{}, nil).BuildGraph(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.Equal(t, 5, out.Graph.NodeCount())
	assert.Equal(t, 1, out.Summary.WellServed)
	assert.Zero(t, out.Summary.Counts)
	assert.Len(t, out.Summary.Breakdown, 3)
}

func TestZoneScores(t *testing.T) {
	out, err := New(testOptions(), fixtureSources(t), localResolver{}, nil).Run(context.Background())
	require.NoError(t, err)

	zs := ZoneScores(out.Dataset, out.Result)
	require.Len(t, zs, 2)
	assert.Equal(t, model.ZoneScore{ZoneID: "Z", X: -1, Y: 0, Score: model.Finite(2.5)}, zs[1])
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Network: config.NetworkConfig{WalkingSpeed: 1.2, TransitSpeed: 5, K: 3, DuplicatePolicy: "last", Workers: 2},
		Reach:   config.ReachConfig{Cutoff: 900, UnderservedTier: 2, WellServedTier: 4, Workers: 8, HistogramBins: 20},
		Input:   config.InputConfig{Stops: "s.csv", ZonesShapefile: "z.zip"},
	}

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 1.2, opts.Params.WalkingSpeed)
	assert.Equal(t, "last", opts.Params.DuplicatePolicy)
	assert.Equal(t, 900.0, opts.Params.Cutoff)
	assert.Equal(t, 8, opts.ReachWorkers)
	assert.Equal(t, 20, opts.HistogramBins)

	src := SourcesFromConfig(cfg)
	assert.Equal(t, "s.csv", src.Stops)
	assert.Equal(t, "z.zip", src.ZonesShapefile)
}
