package reach

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/network"
	"github.com/sells-group/greenreach/internal/spatial"
)

var (
	// ErrZoneNotInGraph is returned when the accessibility table names a
	// zone that has no population node in the graph.
	ErrZoneNotInGraph = eris.New("reach: zone not in graph")

	// ErrDuplicateZone is returned when the accessibility table lists a zone
	// more than once.
	ErrDuplicateZone = eris.New("reach: duplicate zone in accessibility table")
)

// Params configures the engine.
type Params struct {
	Cutoff          float64 // maximum travel time a search expands to
	UnderservedTier int     // both tiers at or below this use graph search
	WellServedTier  int     // average-area tier that marks a target zone
	Workers         int     // parallel searches; < 1 means 1
}

// Partition holds the scores one worker produced.
type Partition map[string]model.Score

// Engine scores zones against a read-only graph.
type Engine struct {
	graph  *network.Graph
	params Params
}

// NewEngine creates an Engine over g.
func NewEngine(g *network.Graph, p Params) *Engine {
	if p.Workers < 1 {
		p.Workers = 1
	}
	return &Engine{graph: g, params: p}
}

// Score runs every zone and aggregates the partitions into one Result.
func (e *Engine) Score(ctx context.Context, rows []model.GreenSpace) (*Result, error) {
	parts, err := e.Run(ctx, rows)
	if err != nil {
		return nil, err
	}
	return Aggregate(rows, parts...)
}

// Run scores every row of the accessibility table. Rows are split into
// disjoint contiguous partitions, one per worker; the graph and the
// well-served set are shared read-only.
func (e *Engine) Run(ctx context.Context, rows []model.GreenSpace) ([]Partition, error) {
	log := zap.L().With(zap.String("component", "reach.engine"))

	sources, err := e.resolve(rows)
	if err != nil {
		return nil, err
	}
	targets := e.targetSet(rows)

	spans := spatial.Partition(len(rows), e.params.Workers)
	parts := make([]Partition, len(spans))

	var done atomic.Int64
	progress := rate.Sometimes{First: 1, Every: 100, Interval: 10 * time.Second}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)

	for p, span := range spans {
		g.Go(func() error {
			var s searcher
			out := make(Partition, span.End-span.Start)
			for i := span.Start; i < span.End; i++ {
				if err := gCtx.Err(); err != nil {
					return eris.Wrap(err, "reach: cancelled")
				}
				out[rows[i].ZoneID] = e.scoreOne(&s, rows[i], sources[i], targets)
				n := done.Add(1)
				progress.Do(func() {
					log.Info("reach: progress", zap.Int64("done", n), zap.Int("total", len(rows)))
				})
			}
			parts[p] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (e *Engine) scoreOne(s *searcher, gs model.GreenSpace, src int, targets []bool) model.Score {
	if Classify(gs, e.params.UnderservedTier) == ClosedForm {
		return model.ClosedForm(ClosedFormScore(gs))
	}
	d, ok := s.nearest(e.graph, src, e.params.Cutoff, func(n int) bool { return targets[n] })
	if !ok {
		return model.Unreachable()
	}
	return model.Finite(d)
}

// resolve maps every row to its graph node, failing on unknown or repeated
// zones.
func (e *Engine) resolve(rows []model.GreenSpace) ([]int, error) {
	nodes := make([]int, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if _, dup := seen[r.ZoneID]; dup {
			return nil, eris.Wrapf(ErrDuplicateZone, "zone %q", r.ZoneID)
		}
		seen[r.ZoneID] = struct{}{}

		n, ok := e.graph.Lookup(r.ZoneID)
		if !ok || e.graph.Kind(n) != model.KindPopulation {
			return nil, eris.Wrapf(ErrZoneNotInGraph, "zone %q", r.ZoneID)
		}
		nodes[i] = n
	}
	return nodes, nil
}

// targetSet marks the graph nodes of well-served zones.
func (e *Engine) targetSet(rows []model.GreenSpace) []bool {
	targets := make([]bool, e.graph.NodeCount())
	for id := range WellServed(rows, e.params.WellServedTier) {
		if n, ok := e.graph.Lookup(id); ok {
			targets[n] = true
		}
	}
	return targets
}
