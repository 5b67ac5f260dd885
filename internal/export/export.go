// Package export writes zone scores and run summaries to files.
package export

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/model"
)

// Format is an output encoding for zone scores.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
	FormatXLSX    Format = "xlsx"
)

// Formats lists the supported score formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatGeoJSON, FormatXLSX}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("export: unsupported format %q (want json, csv, geojson or xlsx)", s)
}

// FormatFromPath guesses the format from a file extension, falling back to
// JSON.
func FormatFromPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".geojson"):
		return FormatGeoJSON
	case strings.HasSuffix(path, ".xlsx"):
		return FormatXLSX
	default:
		return FormatJSON
	}
}

// Write encodes scores to w in the given format.
func Write(w io.Writer, f Format, scores []model.ZoneScore) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, scores)
	case FormatCSV:
		return WriteCSV(w, scores)
	case FormatGeoJSON:
		return WriteGeoJSON(w, scores)
	case FormatXLSX:
		return WriteXLSX(w, scores)
	default:
		return eris.Errorf("export: unsupported format %q", f)
	}
}

// WriteFile creates path and writes scores into it.
func WriteFile(path string, f Format, scores []model.ZoneScore) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(out, f, scores); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(out.Close(), "export: close %s", path)
}
