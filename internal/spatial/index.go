// Package spatial provides the nearest-stop index used to couple population
// zones to the transit network.
package spatial

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/sells-group/greenreach/internal/model"
)

// ErrNotEnoughStops is returned when a query asks for more neighbors than
// the index holds.
var ErrNotEnoughStops = eris.New("spatial: k exceeds number of stops")

// Neighbor is one result of a nearest-stop query.
type Neighbor struct {
	Stop     int     // position of the stop in the slice passed to NewIndex
	StopID   string  // stop identifier
	Distance float64 // Euclidean distance to the query point
}

// Index is a static k-d tree over stop coordinates. It is safe for
// concurrent queries once built.
type Index struct {
	tree  *kdtree.Tree
	stops []model.Stop
}

// NewIndex builds an index over stops. The input slice is not modified.
func NewIndex(stops []model.Stop) (*Index, error) {
	if len(stops) == 0 {
		return nil, eris.New("spatial: no stops to index")
	}

	pts := make(stopPoints, len(stops))
	for i, s := range stops {
		pts[i] = stopPoint{idx: i, c: geom.Coord{s.X, s.Y}}
	}

	owned := make([]model.Stop, len(stops))
	copy(owned, stops)

	return &Index{
		tree:  kdtree.New(pts, false),
		stops: owned,
	}, nil
}

// Len returns the number of indexed stops.
func (x *Index) Len() int { return len(x.stops) }

// Stop returns the indexed stop at position i.
func (x *Index) Stop(i int) model.Stop { return x.stops[i] }

// Nearest returns the k stops closest to q, sorted by ascending distance.
// Equal distances are ordered by stop input position.
func (x *Index) Nearest(q geom.Coord, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, eris.Errorf("spatial: k must be positive (got %d)", k)
	}
	if k > len(x.stops) {
		return nil, eris.Wrapf(ErrNotEnoughStops, "k=%d stops=%d", k, len(x.stops))
	}

	query := stopPoint{idx: -1, c: q}

	keep := kdtree.NewNKeeper(k)
	x.tree.NearestSet(keep, query)
	kth := 0.0
	for _, cd := range keep.Heap {
		if cd.Comparable != nil && cd.Dist > kth {
			kth = cd.Dist
		}
	}

	// The k-keeper drops arbitrary members of a tie at the boundary; collect
	// everything within the k-th distance so ties resolve by input order.
	within := kdtree.NewDistKeeper(kth)
	x.tree.NearestSet(within, query)

	found := make([]stopPoint, 0, len(within.Heap))
	for _, cd := range within.Heap {
		if cd.Comparable == nil {
			continue
		}
		found = append(found, cd.Comparable.(stopPoint))
	}
	out := make([]Neighbor, len(found))
	for i, p := range found {
		out[i] = Neighbor{
			Stop:     p.idx,
			StopID:   x.stops[p.idx].ID,
			Distance: xy.Distance(q, p.c),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Stop < out[j].Stop
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// NearestBulk answers Nearest for every query point, spreading the work over
// up to workers goroutines. Result i belongs to qs[i].
func (x *Index) NearestBulk(ctx context.Context, qs []geom.Coord, k, workers int) ([][]Neighbor, error) {
	if k > len(x.stops) {
		return nil, eris.Wrapf(ErrNotEnoughStops, "k=%d stops=%d", k, len(x.stops))
	}
	if workers < 1 {
		workers = 1
	}

	out := make([][]Neighbor, len(qs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, span := range Partition(len(qs), workers) {
		g.Go(func() error {
			for i := span.Start; i < span.End; i++ {
				if err := gCtx.Err(); err != nil {
					return eris.Wrap(err, "spatial: bulk query cancelled")
				}
				nn, err := x.Nearest(qs[i], k)
				if err != nil {
					return err
				}
				out[i] = nn
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
