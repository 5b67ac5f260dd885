package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// openCSV opens path with any UTF-8/UTF-16 byte order mark stripped.
func openCSV(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	return struct {
		io.Reader
		io.Closer
	}{transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())), f}, nil
}

// decodeAll decodes every record of r into a T. When header is non-nil the
// file's own header line is skipped and header names the columns by
// position. Columns listed in required must be present.
func decodeAll[T any](r io.Reader, header []string, required ...string) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if header != nil {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, eris.Wrap(err, "dataset: read header")
		}
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "dataset: read header")
	}

	if missing := missingColumns(dec.Header(), required); len(missing) > 0 {
		return nil, eris.Errorf("dataset: missing columns %s", strings.Join(missing, ", "))
	}

	var out []T
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, eris.Wrapf(err, "dataset: decode record %d", len(out)+1)
		}
		out = append(out, v)
	}
}

func missingColumns(header, required []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// parseCoord parses a pair of coordinate strings. Blank, non-numeric and
// non-finite values report false.
func parseCoord(xs, ys string) (x, y float64, ok bool) {
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil || !finite(x) || !finite(y) {
		return 0, 0, false
	}
	return x, y, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
