// Package reach scores every population zone, either by a cutoff-bounded
// shortest-path search to the nearest well-served zone or by a closed-form
// adequacy formula.
package reach

import (
	"math"

	"github.com/sells-group/greenreach/internal/model"
)

// Method is the scoring path chosen for a zone.
type Method int

const (
	// GraphSearch scores an under-served zone by network travel time.
	GraphSearch Method = iota + 1
	// ClosedForm scores an adequately served zone directly.
	ClosedForm
)

func (m Method) String() string {
	switch m {
	case GraphSearch:
		return "graph_search"
	case ClosedForm:
		return "closed_form"
	default:
		return "unknown"
	}
}

// Classify returns GraphSearch when both green-space tiers are at or below
// threshold and ClosedForm otherwise.
func Classify(gs model.GreenSpace, threshold int) Method {
	if gs.AvgAreaTier <= threshold && gs.AccessTier <= threshold {
		return GraphSearch
	}
	return ClosedForm
}

// ClosedFormScore is 300 * share of population with access + sqrt(area).
func ClosedFormScore(gs model.GreenSpace) float64 {
	return 300*gs.PctAccess + math.Sqrt(gs.Area)
}

// WellServed returns the zones whose average-area tier equals tier.
func WellServed(rows []model.GreenSpace, tier int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range rows {
		if r.AvgAreaTier == tier {
			out[r.ZoneID] = struct{}{}
		}
	}
	return out
}
