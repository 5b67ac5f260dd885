package spatial

import (
	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// stopPoint is a kdtree.Comparable carrying the stop's input position.
type stopPoint struct {
	idx int
	c   geom.Coord
}

func (p stopPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(stopPoint)
	return p.c[d] - q.c[d]
}

func (p stopPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p stopPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(stopPoint)
	dx := p.c[0] - q.c[0]
	dy := p.c[1] - q.c[1]
	return dx*dx + dy*dy
}

type stopPoints []stopPoint

func (p stopPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p stopPoints) Len() int                              { return len(p) }
func (p stopPoints) Pivot(d kdtree.Dim) int                { return plane{Dim: d, stopPoints: p}.Pivot() }
func (p stopPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane orders stopPoints along one axis for tree construction.
type plane struct {
	kdtree.Dim
	stopPoints
}

func (p plane) Less(i, j int) bool { return p.stopPoints[i].c[p.Dim] < p.stopPoints[j].c[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.stopPoints = p.stopPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.stopPoints[i], p.stopPoints[j] = p.stopPoints[j], p.stopPoints[i] }
