package network

import (
	"cmp"
	"slices"

	"github.com/sells-group/greenreach/internal/model"
)

// Run is the ordered stop sequence of one (route, run) pair.
type Run struct {
	Route string
	Run   string
	Stops []model.RouteStop
}

// GroupRuns groups sequence rows by (route, run) and orders each group by
// sequence number. Groups come back sorted by route then run.
func GroupRuns(rows []model.RouteStop) []Run {
	type key struct{ route, run string }
	byKey := make(map[key][]model.RouteStop)
	var order []key
	for _, r := range rows {
		k := key{r.Route, r.Run}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], r)
	}

	slices.SortFunc(order, func(a, b key) int {
		if c := cmp.Compare(a.route, b.route); c != 0 {
			return c
		}
		return cmp.Compare(a.run, b.run)
	})

	runs := make([]Run, 0, len(order))
	for _, k := range order {
		stops := byKey[k]
		slices.SortStableFunc(stops, func(a, b model.RouteStop) int { return cmp.Compare(a.Seq, b.Seq) })
		runs = append(runs, Run{Route: k.route, Run: k.run, Stops: stops})
	}
	return runs
}
