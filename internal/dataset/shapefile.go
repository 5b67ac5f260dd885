package dataset

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/sells-group/greenreach/internal/model"
	"go.uber.org/zap"
)

// ShapefileFields names the attribute columns holding a zone's code and
// name. Matching is case-insensitive.
type ShapefileFields struct {
	ID     string
	Region string
}

// DefaultShapefileFields matches the 2011 LSOA centroid release.
var DefaultShapefileFields = ShapefileFields{ID: "lsoa11cd", Region: "lsoa11nm"}

// ReadZonesShapefile reads zone centroids from a point shapefile. Shapes
// that are not points contribute the centre of their bounding box. Records
// without an ID or geometry are skipped and counted.
func ReadZonesShapefile(path string, fields ShapefileFields) ([]model.Zone, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, fields.ID)
	if idIdx < 0 {
		return nil, 0, eris.Errorf("dataset: shapefile %s has no %q field", path, fields.ID)
	}
	regionIdx := fieldIndex(reader, fields.Region)

	var zones []model.Zone
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		id := attribute(reader, idIdx)
		if _, null := shape.(*shp.Null); shape == nil || null || id == "" {
			skipped++
			continue
		}

		x, y := centre(shape)
		if !finite(x) || !finite(y) {
			skipped++
			continue
		}
		z := model.Zone{ID: id, X: x, Y: y}
		if regionIdx >= 0 {
			z.Region = attribute(reader, regionIdx)
		}
		zones = append(zones, z)
	}
	if err := reader.Err(); err != nil {
		return nil, 0, eris.Wrapf(err, "dataset: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("dataset: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return zones, skipped, nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

func centre(s shp.Shape) (float64, float64) {
	if p, ok := s.(*shp.Point); ok {
		return p.X, p.Y
	}
	b := s.BBox()
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}
