// Package dataset loads the stop, route, zone and green-space tables and
// reduces them to a consistent model.Dataset.
package dataset

import (
	"strings"

	"github.com/sells-group/greenreach/internal/model"
	"go.uber.org/zap"
)

// regionSuffixLen is the length of the sequence suffix on zone names
// ("Camden 001A" belongs to "Camden").
const regionSuffixLen = 5

// Tables holds decoded input before normalization.
type Tables struct {
	Stops      []model.Stop
	Routes     []model.RouteStop
	Zones      []model.Zone
	GreenSpace []model.GreenSpace
	// Councils restricts zones to these regions. Empty keeps every zone.
	Councils []string
}

// Report counts the rows each normalization step dropped.
type Report struct {
	UnreadableRows      int `json:"unreadable_rows" yaml:"unreadable_rows"`
	DuplicateStops      int `json:"duplicate_stops" yaml:"duplicate_stops"`
	ZonesOutsideRegion  int `json:"zones_outside_region" yaml:"zones_outside_region"`
	DuplicateZones      int `json:"duplicate_zones" yaml:"duplicate_zones"`
	ZoneStopCollisions  int `json:"zone_stop_collisions" yaml:"zone_stop_collisions"`
	OrphanGreenSpace    int `json:"orphan_green_space" yaml:"orphan_green_space"`
	DuplicateGreenSpace int `json:"duplicate_green_space" yaml:"duplicate_green_space"`
	UnknownRouteStops   int `json:"unknown_route_stops" yaml:"unknown_route_stops"`
}

// Fields renders the report as zap fields.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("unreadable_rows", r.UnreadableRows),
		zap.Int("duplicate_stops", r.DuplicateStops),
		zap.Int("zones_outside_region", r.ZonesOutsideRegion),
		zap.Int("duplicate_zones", r.DuplicateZones),
		zap.Int("zone_stop_collisions", r.ZoneStopCollisions),
		zap.Int("orphan_green_space", r.OrphanGreenSpace),
		zap.Int("duplicate_green_space", r.DuplicateGreenSpace),
		zap.Int("unknown_route_stops", r.UnknownRouteStops),
	}
}

// RegionName strips the zone sequence suffix from a zone name.
func RegionName(zoneName string) string {
	r := []rune(strings.TrimSpace(zoneName))
	if len(r) <= regionSuffixLen {
		return ""
	}
	return strings.TrimSpace(string(r[:len(r)-regionSuffixLen]))
}

// Normalize makes the tables consistent with each other. First occurrence
// wins for duplicate stop, zone and green-space IDs. Zones are kept only in
// the listed councils and when their ID does not name a stop. Green-space
// rows must reference a kept zone. A route row naming an unknown stop
// becomes a gap row, splitting its run.
func Normalize(t Tables) (*model.Dataset, Report) {
	var rep Report
	ds := &model.Dataset{}

	stopIDs := make(map[string]struct{}, len(t.Stops))
	for _, s := range t.Stops {
		if _, dup := stopIDs[s.ID]; dup {
			rep.DuplicateStops++
			continue
		}
		stopIDs[s.ID] = struct{}{}
		ds.Stops = append(ds.Stops, s)
	}

	var councils map[string]struct{}
	if len(t.Councils) > 0 {
		councils = make(map[string]struct{}, len(t.Councils))
		for _, c := range t.Councils {
			councils[c] = struct{}{}
		}
	}

	zoneIDs := make(map[string]struct{}, len(t.Zones))
	for _, z := range t.Zones {
		z.Region = RegionName(z.Region)
		if councils != nil {
			if _, ok := councils[z.Region]; !ok {
				rep.ZonesOutsideRegion++
				continue
			}
		}
		if _, dup := zoneIDs[z.ID]; dup {
			rep.DuplicateZones++
			continue
		}
		if _, clash := stopIDs[z.ID]; clash {
			rep.ZoneStopCollisions++
			continue
		}
		zoneIDs[z.ID] = struct{}{}
		ds.Zones = append(ds.Zones, z)
	}

	seenGreen := make(map[string]struct{}, len(t.GreenSpace))
	for _, g := range t.GreenSpace {
		if _, ok := zoneIDs[g.ZoneID]; !ok {
			rep.OrphanGreenSpace++
			continue
		}
		if _, dup := seenGreen[g.ZoneID]; dup {
			rep.DuplicateGreenSpace++
			continue
		}
		seenGreen[g.ZoneID] = struct{}{}
		ds.GreenSpace = append(ds.GreenSpace, g)
	}

	for _, r := range t.Routes {
		if !r.Gap {
			if _, ok := stopIDs[r.StopID]; !ok {
				rep.UnknownRouteStops++
				r = model.RouteStop{Route: r.Route, Run: r.Run, Seq: r.Seq, Gap: true}
			}
		}
		ds.Routes = append(ds.Routes, r)
	}

	return ds, rep
}
