package reach

import (
	"container/heap"

	"github.com/sells-group/greenreach/internal/network"
)

type pqItem struct {
	node int
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(pqItem)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestWithin runs Dijkstra from src and returns the settled distance of
// every node whose distance is at most cutoff. Nodes beyond the cutoff are
// absent from the result. Edge weights must be non-negative.
func ShortestWithin(g *network.Graph, src int, cutoff float64) map[int]float64 {
	var s searcher
	return s.run(g, src, cutoff, nil)
}

// searcher holds per-worker scratch space so the queue is reused across
// searches.
type searcher struct {
	pq priorityQueue
}

// run settles nodes in distance order up to cutoff. The search ends early
// when stop returns true for a freshly settled node.
func (s *searcher) run(g *network.Graph, src int, cutoff float64, stop func(node int, dist float64) bool) map[int]float64 {
	settled := make(map[int]float64)
	best := map[int]float64{src: 0}

	s.pq = s.pq[:0]
	heap.Push(&s.pq, pqItem{node: src, dist: 0})

	for s.pq.Len() > 0 {
		item := heap.Pop(&s.pq).(pqItem)
		if item.dist > cutoff {
			break
		}
		if _, done := settled[item.node]; done {
			continue
		}
		settled[item.node] = item.dist
		if stop != nil && stop(item.node, item.dist) {
			break
		}

		for _, e := range g.Neighbors(item.node) {
			if _, done := settled[e.To]; done {
				continue
			}
			nd := item.dist + e.Weight
			if nd > cutoff {
				continue
			}
			if old, ok := best[e.To]; ok && old <= nd {
				continue
			}
			best[e.To] = nd
			heap.Push(&s.pq, pqItem{node: e.To, dist: nd})
		}
	}
	return settled
}

// nearest returns the distance to the closest node accepted by isTarget
// within cutoff. Nodes settle in non-decreasing distance, so the first
// target settled is the minimum over every reachable target.
func (s *searcher) nearest(g *network.Graph, src int, cutoff float64, isTarget func(int) bool) (float64, bool) {
	var (
		found bool
		dist  float64
	)
	s.run(g, src, cutoff, func(n int, d float64) bool {
		if isTarget(n) {
			found, dist = true, d
		}
		return found
	})
	return dist, found
}
