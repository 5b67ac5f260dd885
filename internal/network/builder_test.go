package network

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/spatial"
)

var testParams = Params{WalkingSpeed: 1, TransitSpeed: 4, K: 1}

func lineStops() []model.Stop {
	return []model.Stop{
		{ID: "A", X: 0, Y: 0},
		{ID: "B", X: 4, Y: 0},
		{ID: "C", X: 8, Y: 0},
	}
}

func runOf(route, run string, stops ...model.Stop) []model.RouteStop {
	rows := make([]model.RouteStop, len(stops))
	for i, s := range stops {
		rows[i] = model.RouteStop{Route: route, Run: run, Seq: i + 1, StopID: s.ID, X: s.X, Y: s.Y}
	}
	return rows
}

func newBuilder(t *testing.T, p Params, opts ...Option) *Builder {
	t.Helper()
	b, err := NewBuilder(p, opts...)
	require.NoError(t, err)
	return b
}

func TestNewBuilder_InvalidParams(t *testing.T) {
	_, err := NewBuilder(Params{WalkingSpeed: 0, TransitSpeed: 4, K: 1})
	assert.Error(t, err)

	_, err = NewBuilder(Params{WalkingSpeed: 1, TransitSpeed: -1, K: 1})
	assert.Error(t, err)

	_, err = NewBuilder(Params{WalkingSpeed: 1, TransitSpeed: 4, K: 0})
	assert.Error(t, err)
}

func TestAddRoutes_ConsecutiveEdges(t *testing.T) {
	b := newBuilder(t, testParams)
	stops := lineStops()
	require.NoError(t, b.AddStops(stops))

	n, err := b.AddRoutes(runOf("1", "1", stops...))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	g := b.Build()
	assert.Equal(t, 2, g.Stats().TransitEdges)

	w, ok := g.Weight("A", "B")
	require.True(t, ok)
	assert.InDelta(t, 1.0, w, 1e-9)
	w, ok = g.Weight("B", "C")
	require.True(t, ok)
	assert.InDelta(t, 1.0, w, 1e-9)

	_, ok = g.Weight("B", "A")
	assert.False(t, ok, "transit legs are one-way")
}

func TestAddRoutes_SequenceOrderNotRowOrder(t *testing.T) {
	b := newBuilder(t, testParams)
	stops := lineStops()
	require.NoError(t, b.AddStops(stops))

	rows := runOf("1", "1", stops...)
	rows[0], rows[2] = rows[2], rows[0]
	_, err := b.AddRoutes(rows)
	require.NoError(t, err)

	g := b.Build()
	_, ok := g.Weight("A", "B")
	assert.True(t, ok)
	_, ok = g.Weight("C", "B")
	assert.False(t, ok)
}

func TestAddRoutes_ShortRunsContributeNothing(t *testing.T) {
	b := newBuilder(t, testParams)
	stops := lineStops()
	require.NoError(t, b.AddStops(stops))

	n, err := b.AddRoutes(runOf("7", "1", stops[0]))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, b.Build().EdgeCount())
}

func TestAddRoutes_UnknownStop(t *testing.T) {
	b := newBuilder(t, testParams)
	require.NoError(t, b.AddStops(lineStops()[:2]))

	_, err := b.AddRoutes(runOf("1", "1", lineStops()...))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownStop))
}

func TestAddRoutes_GapSplitsRun(t *testing.T) {
	b := newBuilder(t, testParams)
	stops := lineStops()
	require.NoError(t, b.AddStops(stops))

	rows := runOf("1", "1", stops...)
	rows[1] = model.RouteStop{Route: "1", Run: "1", Seq: 2, Gap: true}
	n, err := b.AddRoutes(rows)
	require.NoError(t, err)
	assert.Zero(t, n)

	g := b.Build()
	_, ok := g.Weight("A", "C")
	assert.False(t, ok)
	assert.Zero(t, g.Stats().TransitEdges)
}

func TestAddRoutes_ZoneIsNotAStop(t *testing.T) {
	b := newBuilder(t, testParams)
	require.NoError(t, b.AddStops(lineStops()[:1]))
	require.NoError(t, b.AddZones([]model.Zone{{ID: "Z", X: 1, Y: 1}}))

	_, err := b.AddRoutes([]model.RouteStop{
		{Route: "1", Run: "1", Seq: 1, StopID: "A"},
		{Route: "1", Run: "1", Seq: 2, StopID: "Z"},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownStop))
}

func TestDuplicateNode(t *testing.T) {
	b := newBuilder(t, testParams)
	require.NoError(t, b.AddStops(lineStops()))

	err := b.AddZones([]model.Zone{{ID: "B"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateNode))

	err = b.AddStops([]model.Stop{{ID: "A"}})
	assert.True(t, eris.Is(err, ErrDuplicateNode))
}

func TestDuplicatePolicy(t *testing.T) {
	stops := []model.Stop{{ID: "A", X: 0, Y: 0}, {ID: "B", X: 8, Y: 0}}
	slow := runOf("1", "1", stops...)
	// Route 2 reports a shorter geometry for the same stop pair.
	fast := []model.RouteStop{
		{Route: "2", Run: "1", Seq: 1, StopID: "A", X: 0, Y: 0},
		{Route: "2", Run: "1", Seq: 2, StopID: "B", X: 4, Y: 0},
	}
	// Route 3 is inserted last and is slow again.
	last := runOf("3", "1", stops...)

	tests := []struct {
		policy Policy
		want   float64
	}{
		{PolicyMinWeight, 1},
		{PolicyLastWrite, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			b := newBuilder(t, testParams, WithPolicy(tt.policy))
			require.NoError(t, b.AddStops(stops))
			rows := append(append(append([]model.RouteStop{}, slow...), fast...), last...)
			_, err := b.AddRoutes(rows)
			require.NoError(t, err)

			g := b.Build()
			assert.Equal(t, 1, g.EdgeCount())
			w, ok := g.Weight("A", "B")
			require.True(t, ok)
			assert.InDelta(t, tt.want, w, 1e-9)
		})
	}
}

func TestAddAccess_TwoKEdgesPerZone(t *testing.T) {
	p := Params{WalkingSpeed: 1, TransitSpeed: 4, K: 2}
	b := newBuilder(t, p)
	stops := lineStops()
	zones := []model.Zone{
		{ID: "Z1", X: 4, Y: 2},
		{ID: "Z2", X: 0, Y: 3},
	}
	require.NoError(t, b.AddStops(stops))
	require.NoError(t, b.AddZones(zones))

	idx, err := spatial.NewIndex(stops)
	require.NoError(t, err)

	n, err := b.AddAccess(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, 2*p.K*len(zones), n)

	g := b.Build()
	assert.Equal(t, 2*p.K*len(zones), g.Stats().AccessEdges)

	w, ok := g.Weight("Z1", "B")
	require.True(t, ok)
	assert.InDelta(t, 2.0, w, 1e-9)
	back, ok := g.Weight("B", "Z1")
	require.True(t, ok)
	assert.InDelta(t, w, back, 1e-12)

	w, ok = g.Weight("Z2", "A")
	require.True(t, ok)
	assert.InDelta(t, 3.0, w, 1e-9)

	for _, e := range g.Edges() {
		if e.Via != ViaAccess {
			continue
		}
		fromKind := g.Kind(mustLookup(t, g, e.From))
		toKind := g.Kind(mustLookup(t, g, e.To))
		assert.NotEqual(t, fromKind, toKind, "access edge must join a stop and a zone")
	}
}

func TestAddAccess_KExceedsStops(t *testing.T) {
	b := newBuilder(t, Params{WalkingSpeed: 1, TransitSpeed: 4, K: 4})
	stops := lineStops()
	require.NoError(t, b.AddStops(stops))
	require.NoError(t, b.AddZones([]model.Zone{{ID: "Z", X: 1, Y: 1}}))

	idx, err := spatial.NewIndex(stops)
	require.NoError(t, err)

	_, err = b.AddAccess(context.Background(), idx)
	require.Error(t, err)
	assert.True(t, eris.Is(err, spatial.ErrNotEnoughStops))
}

func TestBuild_Deterministic(t *testing.T) {
	build := func() *Graph {
		b := newBuilder(t, Params{WalkingSpeed: 1, TransitSpeed: 4, K: 2}, WithWorkers(3))
		stops := lineStops()
		require.NoError(t, b.AddStops(stops))
		require.NoError(t, b.AddZones([]model.Zone{{ID: "Z1", X: 1, Y: 1}, {ID: "Z2", X: 7, Y: -1}}))
		_, err := b.AddRoutes(append(runOf("1", "1", stops...), runOf("1", "2", stops[2], stops[1], stops[0])...))
		require.NoError(t, err)
		idx, err := spatial.NewIndex(stops)
		require.NoError(t, err)
		_, err = b.AddAccess(context.Background(), idx)
		require.NoError(t, err)
		return b.Build()
	}

	g1, g2 := build(), build()
	assert.Equal(t, g1.Stats(), g2.Stats())
	assert.Equal(t, g1.Edges(), g2.Edges())
	assert.Equal(t, 5, g1.NodeCount())
	assert.Equal(t, model.GraphStats{StopNodes: 3, ZoneNodes: 2, TransitEdges: 4, AccessEdges: 8}, g1.Stats())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("MIN")
	require.NoError(t, err)
	assert.Equal(t, PolicyMinWeight, p)

	p, err = ParsePolicy("last")
	require.NoError(t, err)
	assert.Equal(t, PolicyLastWrite, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyMinWeight, p)

	_, err = ParsePolicy("sum")
	assert.Error(t, err)
}

func mustLookup(t *testing.T, g *Graph, id string) int {
	t.Helper()
	n, ok := g.Lookup(id)
	require.True(t, ok, id)
	return n
}
