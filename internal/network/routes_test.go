package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/greenreach/internal/model"
)

func TestGroupRuns(t *testing.T) {
	rows := []model.RouteStop{
		{Route: "2", Run: "1", Seq: 2, StopID: "y"},
		{Route: "1", Run: "2", Seq: 1, StopID: "b"},
		{Route: "2", Run: "1", Seq: 1, StopID: "x"},
		{Route: "1", Run: "1", Seq: 1, StopID: "a"},
	}

	runs := GroupRuns(rows)
	require.Len(t, runs, 3)
	assert.Equal(t, "1", runs[0].Route)
	assert.Equal(t, "1", runs[0].Run)
	assert.Equal(t, "2", runs[1].Run)
	assert.Equal(t, "2", runs[2].Route)
	require.Len(t, runs[2].Stops, 2)
	assert.Equal(t, "x", runs[2].Stops[0].StopID)
	assert.Equal(t, "y", runs[2].Stops[1].StopID)
}

// A run of N stops yields exactly N-1 transit edges weighted d/speed.
func TestAddRoutes_NMinusOneEdges(t *testing.T) {
	stops := make([]model.Stop, 6)
	for i := range stops {
		stops[i] = model.Stop{ID: string(rune('P' + i)), X: float64(i * i), Y: 1}
	}
	b := newBuilder(t, testParams)
	require.NoError(t, b.AddStops(stops))
	_, err := b.AddRoutes(runOf("9", "1", stops...))
	require.NoError(t, err)

	g := b.Build()
	assert.Equal(t, len(stops)-1, g.EdgeCount())
	for i := 1; i < len(stops); i++ {
		w, ok := g.Weight(stops[i-1].ID, stops[i].ID)
		require.True(t, ok)
		d := stops[i].X - stops[i-1].X
		assert.InDelta(t, d/testParams.TransitSpeed, w, 1e-9)
		assert.Greater(t, w, 0.0)
	}
}
