package dataset

import (
	"io"
	"strings"

	"github.com/sells-group/greenreach/internal/model"
)

type stopRecord struct {
	Code     string `csv:"Stop_Code_LBSL"`
	Easting  string `csv:"Location_Easting"`
	Northing string `csv:"Location_Northing"`
}

type sequenceRecord struct {
	Route    string `csv:"Route"`
	Run      string `csv:"Run"`
	Sequence int    `csv:"Sequence"`
	Code     string `csv:"Stop_Code_LBSL"`
	Easting  string `csv:"Location_Easting"`
	Northing string `csv:"Location_Northing"`
}

type councilRecord struct {
	Name string `csv:"LAName"`
}

// zoneColumns names the population-weighted centroid columns by position;
// the published header varies in case between releases.
var zoneColumns = []string{"x", "y", "oid", "lsoa", "council", "gid"}

type zoneRecord struct {
	X       string `csv:"x"`
	Y       string `csv:"y"`
	Code    string `csv:"lsoa"`
	Council string `csv:"council"`
}

type greenSpaceRecord struct {
	Code      string  `csv:"LSOA_Code"`
	AvgArea   int     `csv:"GSDI_AvgArea"`
	Access    int     `csv:"GSDI_Access"`
	Area      float64 `csv:"Area"`
	PctAccess float64 `csv:"Pcnt_PopArea_With_GOSpace_Access"`
}

// ReadStops decodes the stop table. Rows without a code or with unusable
// coordinates are skipped and counted.
func ReadStops(r io.Reader) ([]model.Stop, int, error) {
	recs, err := decodeAll[stopRecord](r, nil, "Stop_Code_LBSL", "Location_Easting", "Location_Northing")
	if err != nil {
		return nil, 0, err
	}

	stops := make([]model.Stop, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		id := strings.TrimSpace(rec.Code)
		x, y, ok := parseCoord(rec.Easting, rec.Northing)
		if id == "" || !ok {
			skipped++
			continue
		}
		stops = append(stops, model.Stop{ID: id, X: x, Y: y})
	}
	return stops, skipped, nil
}

// ReadSequences decodes the route stop-sequence table. Rows without a stop
// code or with unusable coordinates are counted as skipped and kept as gap
// rows so their run is split there.
func ReadSequences(r io.Reader) ([]model.RouteStop, int, error) {
	recs, err := decodeAll[sequenceRecord](r, nil,
		"Route", "Run", "Sequence", "Stop_Code_LBSL", "Location_Easting", "Location_Northing")
	if err != nil {
		return nil, 0, err
	}

	rows := make([]model.RouteStop, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		row := model.RouteStop{
			Route: strings.TrimSpace(rec.Route),
			Run:   strings.TrimSpace(rec.Run),
			Seq:   rec.Sequence,
		}
		id := strings.TrimSpace(rec.Code)
		x, y, ok := parseCoord(rec.Easting, rec.Northing)
		if id == "" || !ok {
			skipped++
			row.Gap = true
			rows = append(rows, row)
			continue
		}
		row.StopID, row.X, row.Y = id, x, y
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// ReadCouncils decodes the list of region (council) names.
func ReadCouncils(r io.Reader) ([]string, error) {
	recs, err := decodeAll[councilRecord](r, nil, "LAName")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		if name := strings.TrimSpace(rec.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// ReadZones decodes the population-weighted centroid table. Region holds
// the raw zone name; Normalize reduces it to the council name.
func ReadZones(r io.Reader) ([]model.Zone, int, error) {
	recs, err := decodeAll[zoneRecord](r, zoneColumns)
	if err != nil {
		return nil, 0, err
	}

	zones := make([]model.Zone, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		id := strings.TrimSpace(rec.Code)
		x, y, ok := parseCoord(rec.X, rec.Y)
		if id == "" || !ok {
			skipped++
			continue
		}
		zones = append(zones, model.Zone{ID: id, Region: rec.Council, X: x, Y: y})
	}
	return zones, skipped, nil
}

// ReadGreenSpace decodes the green-space indicator table.
func ReadGreenSpace(r io.Reader) ([]model.GreenSpace, error) {
	recs, err := decodeAll[greenSpaceRecord](r, nil,
		"LSOA_Code", "GSDI_AvgArea", "GSDI_Access", "Area", "Pcnt_PopArea_With_GOSpace_Access")
	if err != nil {
		return nil, err
	}

	rows := make([]model.GreenSpace, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, model.GreenSpace{
			ZoneID:      strings.TrimSpace(rec.Code),
			AvgAreaTier: rec.AvgArea,
			AccessTier:  rec.Access,
			Area:        rec.Area,
			PctAccess:   rec.PctAccess,
		})
	}
	return rows, nil
}
