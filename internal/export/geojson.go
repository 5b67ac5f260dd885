package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/greenreach/internal/model"
)

// CRSName identifies British National Grid, the coordinate system of zone
// centroids. Features are easting/northing, not RFC 7946 WGS84 lon/lat.
const CRSName = "urn:ogc:def:crs:EPSG::27700"

// FeatureCollection builds one point feature per zone centroid, in British
// National Grid easting/northing. The score property is null for
// unreachable zones.
func FeatureCollection(scores []model.ZoneScore) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(scores))}
	for _, zs := range scores {
		props := map[string]any{
			"zone_id":   zs.ZoneID,
			"kind":      string(zs.Score.Kind),
			"reachable": zs.Score.IsReachable(),
			"score":     nil,
		}
		if v, ok := zs.Score.Float(); ok {
			props["score"] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         zs.ZoneID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{zs.X, zs.Y}),
			Properties: props,
		})
	}
	return fc
}

type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type collection struct {
	Type     string             `json:"type"`
	CRS      namedCRS           `json:"crs"`
	Features []*geojson.Feature `json:"features"`
}

// WriteGeoJSON writes scores as a GeoJSON FeatureCollection. The coordinates
// are British National Grid, so the legacy named crs member is set for GIS
// tools that would otherwise assume WGS84.
func WriteGeoJSON(w io.Writer, scores []model.ZoneScore) error {
	data, err := json.Marshal(collection{
		Type:     "FeatureCollection",
		CRS:      namedCRS{Type: "name", Properties: map[string]string{"name": CRSName}},
		Features: FeatureCollection(scores).Features,
	})
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "export: write geojson")
}
