package spatial

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/greenreach/internal/model"
)

func gridStops() []model.Stop {
	var stops []model.Stop
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			stops = append(stops, model.Stop{
				ID: string(rune('a'+x)) + string(rune('0'+y)),
				X:  float64(x * 10),
				Y:  float64(y * 10),
			})
		}
	}
	return stops
}

func TestNewIndex_Empty(t *testing.T) {
	_, err := NewIndex(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stops")
}

func TestNearest_Basic(t *testing.T) {
	idx, err := NewIndex(gridStops())
	require.NoError(t, err)
	assert.Equal(t, 25, idx.Len())

	nn, err := idx.Nearest(geom.Coord{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, nn, 1)
	assert.Equal(t, "a0", nn[0].StopID)
	assert.InDelta(t, math.Sqrt2, nn[0].Distance, 1e-9)
}

func TestNearest_TooManyNeighbors(t *testing.T) {
	idx, err := NewIndex(gridStops()[:3])
	require.NoError(t, err)

	_, err = idx.Nearest(geom.Coord{0, 0}, 4)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotEnoughStops))

	_, err = idx.Nearest(geom.Coord{0, 0}, 0)
	require.Error(t, err)
}

func TestNearest_TiesFollowInputOrder(t *testing.T) {
	stops := []model.Stop{
		{ID: "far", X: 100, Y: 100},
		{ID: "east", X: 1, Y: 0},
		{ID: "north", X: 0, Y: 1},
		{ID: "west", X: -1, Y: 0},
		{ID: "south", X: 0, Y: -1},
	}
	idx, err := NewIndex(stops)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		nn, err := idx.Nearest(geom.Coord{0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, nn, 2)
		assert.Equal(t, "east", nn[0].StopID)
		assert.Equal(t, "north", nn[1].StopID)
	}
}

// Every query returns exactly k distinct stops in non-decreasing distance
// order, matching a brute-force scan.
func TestNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	stops := make([]model.Stop, 300)
	for i := range stops {
		stops[i] = model.Stop{ID: fmt.Sprintf("s%d", i), X: rng.Float64() * 1000, Y: rng.Float64() * 1000}
	}
	idx, err := NewIndex(stops)
	require.NoError(t, err)

	const k = 5
	for q := 0; q < 50; q++ {
		p := geom.Coord{rng.Float64() * 1000, rng.Float64() * 1000}
		nn, err := idx.Nearest(p, k)
		require.NoError(t, err)
		require.Len(t, nn, k)

		seen := map[int]bool{}
		for i, n := range nn {
			assert.False(t, seen[n.Stop], "duplicate stop")
			seen[n.Stop] = true
			if i > 0 {
				assert.LessOrEqual(t, nn[i-1].Distance, n.Distance)
			}
		}

		dists := make([]float64, len(stops))
		for i, s := range stops {
			dists[i] = math.Hypot(s.X-p[0], s.Y-p[1])
		}
		sort.Float64s(dists)
		for i := 0; i < k; i++ {
			assert.InDelta(t, dists[i], nn[i].Distance, 1e-9)
		}
	}
}

func TestNearestBulk(t *testing.T) {
	idx, err := NewIndex(gridStops())
	require.NoError(t, err)

	qs := []geom.Coord{{0, 0}, {40, 40}, {21, 19}, {11, 0}}
	res, err := idx.NearestBulk(context.Background(), qs, 2, 3)
	require.NoError(t, err)
	require.Len(t, res, len(qs))

	for i, q := range qs {
		single, err := idx.Nearest(q, 2)
		require.NoError(t, err)
		assert.Equal(t, single, res[i])
	}
	assert.Equal(t, "a0", res[0][0].StopID)
	assert.Equal(t, "e4", res[1][0].StopID)
}

func TestNearestBulk_NotEnoughStops(t *testing.T) {
	idx, err := NewIndex(gridStops()[:2])
	require.NoError(t, err)

	_, err = idx.NearestBulk(context.Background(), []geom.Coord{{0, 0}}, 3, 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotEnoughStops))
}

func TestNearestBulk_Cancelled(t *testing.T) {
	idx, err := NewIndex(gridStops())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = idx.NearestBulk(ctx, []geom.Coord{{0, 0}, {1, 1}}, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
