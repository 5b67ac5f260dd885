package model

// Stop is a transit access point.
type Stop struct {
	ID string  `json:"id" csv:"id"`
	X  float64 `json:"x" csv:"x"`
	Y  float64 `json:"y" csv:"y"`
}

// Zone is a population zone centroid and the administrative region it
// belongs to.
type Zone struct {
	ID     string  `json:"id"`
	Region string  `json:"region"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// GreenSpace holds the green-space indicators for one zone. Tiers are small
// ordinals (1 = worst); PctAccess is a fraction in [0, 1].
type GreenSpace struct {
	ZoneID      string  `json:"zone_id"`
	AvgAreaTier int     `json:"avg_area_tier"`
	AccessTier  int     `json:"access_tier"`
	Area        float64 `json:"area"`
	PctAccess   float64 `json:"pct_access"`
}

// RouteStop is one row of a route stop sequence.
type RouteStop struct {
	Route  string  `json:"route"`
	Run    string  `json:"run"`
	Seq    int     `json:"seq"`
	StopID string  `json:"stop_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	// Gap marks a row whose stop could not be used. It holds its place in
	// the sequence so the stops either side are not joined.
	Gap bool `json:"gap,omitempty"`
}

// NodeKind tags a graph node with where it came from.
type NodeKind string

const (
	KindStop       NodeKind = "stop"
	KindPopulation NodeKind = "population"
)

// Dataset bundles the normalized input tables of one run.
type Dataset struct {
	Stops      []Stop
	Routes     []RouteStop
	Zones      []Zone
	GreenSpace []GreenSpace
}
