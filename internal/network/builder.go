package network

import (
	"cmp"
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/spatial"
)

var (
	// ErrDuplicateNode is returned when a stop or zone identifier is
	// registered twice, including a stop and a zone sharing one code.
	ErrDuplicateNode = eris.New("network: duplicate node identifier")

	// ErrUnknownStop is returned when an edge references a stop that was
	// never registered.
	ErrUnknownStop = eris.New("network: unknown stop")
)

// Params holds the speed constants and neighbor count used for edge weights.
type Params struct {
	WalkingSpeed float64
	TransitSpeed float64
	K            int
}

// Option configures a Builder.
type Option func(*Builder)

// WithPolicy sets how repeated edges between the same ordered pair resolve.
func WithPolicy(p Policy) Option {
	return func(b *Builder) { b.policy = p }
}

// WithWorkers sets the parallelism of the nearest-stop queries.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

type pair struct{ from, to int }

// Builder accumulates nodes and edges and freezes them into a Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	params  Params
	policy  Policy
	workers int

	ids    []string
	kinds  []model.NodeKind
	coords []geom.Coord
	lookup map[string]int
	zones  []int

	edges map[pair]Edge
}

// NewBuilder creates a Builder. Speeds must be positive and K at least one.
func NewBuilder(params Params, opts ...Option) (*Builder, error) {
	if params.WalkingSpeed <= 0 || params.TransitSpeed <= 0 {
		return nil, eris.Errorf("network: speeds must be positive (walking=%v transit=%v)",
			params.WalkingSpeed, params.TransitSpeed)
	}
	if params.K < 1 {
		return nil, eris.Errorf("network: k must be at least 1 (got %d)", params.K)
	}

	b := &Builder{
		params:  params,
		policy:  PolicyMinWeight,
		workers: 1,
		lookup:  make(map[string]int),
		edges:   make(map[pair]Edge),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) addNode(id string, kind model.NodeKind, c geom.Coord) error {
	if prev, ok := b.lookup[id]; ok {
		return eris.Wrapf(ErrDuplicateNode, "%s %q already registered as %s", kind, id, b.kinds[prev])
	}
	n := len(b.ids)
	b.ids = append(b.ids, id)
	b.kinds = append(b.kinds, kind)
	b.coords = append(b.coords, c)
	b.lookup[id] = n
	if kind == model.KindPopulation {
		b.zones = append(b.zones, n)
	}
	return nil
}

// AddStops registers transit stops as nodes.
func (b *Builder) AddStops(stops []model.Stop) error {
	for _, s := range stops {
		if err := b.addNode(s.ID, model.KindStop, geom.Coord{s.X, s.Y}); err != nil {
			return err
		}
	}
	return nil
}

// AddZones registers population zones as nodes.
func (b *Builder) AddZones(zones []model.Zone) error {
	for _, z := range zones {
		if err := b.addNode(z.ID, model.KindPopulation, geom.Coord{z.X, z.Y}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) stopNode(id string) (int, error) {
	n, ok := b.lookup[id]
	if !ok || b.kinds[n] != model.KindStop {
		return 0, eris.Wrapf(ErrUnknownStop, "stop %q", id)
	}
	return n, nil
}

func (b *Builder) addEdge(from, to int, w float64, via Provenance) {
	key := pair{from, to}
	if prev, ok := b.edges[key]; ok && b.policy == PolicyMinWeight && prev.Weight <= w {
		return
	}
	b.edges[key] = Edge{To: to, Weight: w, Via: via}
}

// AddRoutes adds one directed transit edge per consecutive stop pair of
// every (route, run) sequence, weighted by distance over transit speed.
// Sequences with fewer than two stops add nothing, and no edge crosses a
// gap row. Returns the number of edge insertions.
func (b *Builder) AddRoutes(rows []model.RouteStop) (int, error) {
	groups := GroupRuns(rows)

	added := 0
	for _, g := range groups {
		if len(g.Stops) < 2 {
			zap.L().Debug("network: skipping short run",
				zap.String("route", g.Route),
				zap.String("run", g.Run),
				zap.Int("stops", len(g.Stops)),
			)
			continue
		}
		for i := 1; i < len(g.Stops); i++ {
			prev, cur := g.Stops[i-1], g.Stops[i]
			if prev.Gap || cur.Gap {
				continue
			}
			u, err := b.stopNode(prev.StopID)
			if err != nil {
				return added, eris.Wrapf(err, "network: route %s run %s", g.Route, g.Run)
			}
			v, err := b.stopNode(cur.StopID)
			if err != nil {
				return added, eris.Wrapf(err, "network: route %s run %s", g.Route, g.Run)
			}
			d := xy.Distance(geom.Coord{prev.X, prev.Y}, geom.Coord{cur.X, cur.Y})
			b.addEdge(u, v, d/b.params.TransitSpeed, ViaTransit)
			added++
		}
	}
	return added, nil
}

// AddAccess links every registered zone to its K nearest stops in both
// directions, weighted by distance over walking speed.
func (b *Builder) AddAccess(ctx context.Context, idx *spatial.Index) (int, error) {
	if len(b.zones) == 0 {
		return 0, nil
	}

	qs := make([]geom.Coord, len(b.zones))
	for i, n := range b.zones {
		qs[i] = b.coords[n]
	}

	near, err := idx.NearestBulk(ctx, qs, b.params.K, b.workers)
	if err != nil {
		return 0, eris.Wrap(err, "network: nearest stops")
	}

	added := 0
	for i, z := range b.zones {
		for _, nb := range near[i] {
			s, err := b.stopNode(nb.StopID)
			if err != nil {
				return added, eris.Wrapf(err, "network: access edge for zone %q", b.ids[z])
			}
			w := nb.Distance / b.params.WalkingSpeed
			b.addEdge(z, s, w, ViaAccess)
			b.addEdge(s, z, w, ViaAccess)
			added += 2
		}
	}
	return added, nil
}

// Build freezes the accumulated nodes and edges. The Builder may keep being
// used afterwards; the returned Graph does not share its storage.
func (b *Builder) Build() *Graph {
	n := len(b.ids)
	g := &Graph{
		ids:     slices.Clone(b.ids),
		kinds:   slices.Clone(b.kinds),
		lookup:  make(map[string]int, n),
		offsets: make([]int, n+1),
		edges:   make([]Edge, 0, len(b.edges)),
	}
	for id, i := range b.lookup {
		g.lookup[id] = i
	}

	keys := make([]pair, 0, len(b.edges))
	for k := range b.edges {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, c pair) int {
		if r := cmp.Compare(a.from, c.from); r != 0 {
			return r
		}
		return cmp.Compare(a.to, c.to)
	})

	for _, k := range keys {
		e := b.edges[k]
		g.offsets[k.from+1]++
		g.edges = append(g.edges, e)
		switch e.Via {
		case ViaTransit:
			g.stats.TransitEdges++
		case ViaAccess:
			g.stats.AccessEdges++
		}
	}
	for i := 0; i < n; i++ {
		g.offsets[i+1] += g.offsets[i]
	}
	for _, k := range g.kinds {
		if k == model.KindStop {
			g.stats.StopNodes++
		} else {
			g.stats.ZoneNodes++
		}
	}
	return g
}
