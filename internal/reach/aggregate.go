package reach

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/model"
)

var (
	// ErrMissingScore is returned when a zone of the accessibility table has
	// no score after merging.
	ErrMissingScore = eris.New("reach: zone has no score")

	// ErrDuplicateScore is returned when two partitions score the same zone.
	ErrDuplicateScore = eris.New("reach: zone scored more than once")

	// ErrUnexpectedScore is returned when a partition scores a zone that is
	// not in the accessibility table.
	ErrUnexpectedScore = eris.New("reach: score for unknown zone")
)

// Result is the immutable reachability mapping of a run.
type Result struct {
	scores map[string]model.Score
	ids    []string
}

// Aggregate merges worker partitions and checks that every zone of rows has
// exactly one score.
func Aggregate(rows []model.GreenSpace, parts ...Partition) (*Result, error) {
	want := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		want[r.ZoneID] = struct{}{}
	}

	merged := make(map[string]model.Score, len(rows))
	for _, p := range parts {
		for id, s := range p {
			if _, ok := want[id]; !ok {
				return nil, eris.Wrapf(ErrUnexpectedScore, "zone %q", id)
			}
			if _, dup := merged[id]; dup {
				return nil, eris.Wrapf(ErrDuplicateScore, "zone %q", id)
			}
			merged[id] = s
		}
	}

	ids := make([]string, 0, len(merged))
	for id := range want {
		if _, ok := merged[id]; !ok {
			return nil, eris.Wrapf(ErrMissingScore, "zone %q", id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Result{scores: merged, ids: ids}, nil
}

// Get returns the score of a zone.
func (r *Result) Get(id string) (model.Score, bool) {
	s, ok := r.scores[id]
	return s, ok
}

// Len returns the number of scored zones.
func (r *Result) Len() int { return len(r.ids) }

// IDs returns the scored zone identifiers in sorted order.
func (r *Result) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Each calls fn for every zone in identifier order.
func (r *Result) Each(fn func(id string, s model.Score)) {
	for _, id := range r.ids {
		fn(id, r.scores[id])
	}
}

// Counts tallies scores by kind.
func (r *Result) Counts() model.ScoreCounts {
	var c model.ScoreCounts
	for _, s := range r.scores {
		switch s.Kind {
		case model.ScoreFinite:
			c.Finite++
		case model.ScoreClosedForm:
			c.ClosedForm++
		case model.ScoreUnreachable:
			c.Unreachable++
		}
	}
	return c
}

// Values returns the numeric value of every reachable score in identifier
// order. Unreachable zones are skipped.
func (r *Result) Values() []float64 {
	out := make([]float64, 0, len(r.ids))
	for _, id := range r.ids {
		if v, ok := r.scores[id].Float(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Bin is one histogram bucket covering [Lo, Hi); the last bucket is closed.
type Bin struct {
	Lo    float64 `json:"lo" yaml:"lo"`
	Hi    float64 `json:"hi" yaml:"hi"`
	Count int     `json:"count" yaml:"count"`
}

// Histogram buckets the reachable values into equal-width bins.
func (r *Result) Histogram(bins int) []Bin {
	vals := r.Values()
	if bins < 1 || len(vals) == 0 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		return []Bin{{Lo: lo, Hi: hi, Count: len(vals)}}
	}

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
