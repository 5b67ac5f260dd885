// Package network builds the directed walking + transit graph that
// reachability searches run over.
package network

import (
	"sort"

	"github.com/sells-group/greenreach/internal/model"
)

// Provenance records which input produced an edge.
type Provenance uint8

const (
	ViaTransit Provenance = iota + 1 // consecutive stops of a route run
	ViaAccess                        // walking link between a zone and a stop
)

func (p Provenance) String() string {
	switch p {
	case ViaTransit:
		return "transit"
	case ViaAccess:
		return "access"
	default:
		return "unknown"
	}
}

// Edge is a directed, weighted link out of a node.
type Edge struct {
	To     int
	Weight float64
	Via    Provenance
}

// EdgeRecord is an edge with both endpoints resolved to identifiers.
type EdgeRecord struct {
	From   string
	To     string
	Weight float64
	Via    Provenance
}

// Graph is an immutable adjacency structure produced by Builder.Build.
// Nodes are dense integers; edges of node n are edges[offsets[n]:offsets[n+1]].
type Graph struct {
	ids     []string
	kinds   []model.NodeKind
	lookup  map[string]int
	offsets []int
	edges   []Edge
	stats   model.GraphStats
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Lookup resolves an identifier to its node.
func (g *Graph) Lookup(id string) (int, bool) {
	n, ok := g.lookup[id]
	return n, ok
}

// ID returns the identifier of node n.
func (g *Graph) ID(n int) string { return g.ids[n] }

// Kind returns whether node n is a stop or a population zone.
func (g *Graph) Kind(n int) model.NodeKind { return g.kinds[n] }

// Neighbors returns the outgoing edges of n ordered by target node. The
// returned slice is shared and must not be modified.
func (g *Graph) Neighbors(n int) []Edge {
	lo, hi := g.offsets[n], g.offsets[n+1]
	return g.edges[lo:hi:hi]
}

// Weight returns the weight of the directed edge from -> to.
func (g *Graph) Weight(from, to string) (float64, bool) {
	u, ok := g.lookup[from]
	if !ok {
		return 0, false
	}
	v, ok := g.lookup[to]
	if !ok {
		return 0, false
	}
	out := g.Neighbors(u)
	i := sort.Search(len(out), func(i int) bool { return out[i].To >= v })
	if i < len(out) && out[i].To == v {
		return out[i].Weight, true
	}
	return 0, false
}

// Stats returns node and edge counts by kind.
func (g *Graph) Stats() model.GraphStats { return g.stats }

// Edges lists every edge in node order.
func (g *Graph) Edges() []EdgeRecord {
	out := make([]EdgeRecord, 0, len(g.edges))
	for u := range g.ids {
		for _, e := range g.Neighbors(u) {
			out = append(out, EdgeRecord{From: g.ids[u], To: g.ids[e.To], Weight: e.Weight, Via: e.Via})
		}
	}
	return out
}
