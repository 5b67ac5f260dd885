package export

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/model"
)

type scoreRecord struct {
	ZoneID string   `csv:"zone_id"`
	X      float64  `csv:"x"`
	Y      float64  `csv:"y"`
	Kind   string   `csv:"kind"`
	Score  *float64 `csv:"score"`
}

func toRecord(zs model.ZoneScore) scoreRecord {
	r := scoreRecord{ZoneID: zs.ZoneID, X: zs.X, Y: zs.Y, Kind: string(zs.Score.Kind)}
	if v, ok := zs.Score.Float(); ok {
		r.Score = &v
	}
	return r
}

// WriteCSV writes one row per zone. Unreachable zones have an empty score.
func WriteCSV(w io.Writer, scores []model.ZoneScore) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(scores) == 0 {
		if err := enc.EncodeHeader(scoreRecord{}); err != nil {
			return eris.Wrap(err, "export: write csv header")
		}
	}
	for _, zs := range scores {
		if err := enc.Encode(toRecord(zs)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", zs.ZoneID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}
