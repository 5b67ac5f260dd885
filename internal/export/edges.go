package export

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/network"
)

type edgeRecord struct {
	From   string  `csv:"from"`
	To     string  `csv:"to"`
	Weight float64 `csv:"weight"`
	Via    string  `csv:"via"`
}

// WriteEdges writes a graph edge list as CSV.
func WriteEdges(w io.Writer, edges []network.EdgeRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(edges) == 0 {
		if err := enc.EncodeHeader(edgeRecord{}); err != nil {
			return eris.Wrap(err, "export: write edge header")
		}
	}
	for _, e := range edges {
		rec := edgeRecord{From: e.From, To: e.To, Weight: e.Weight, Via: e.Via.String()}
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "export: write edge %s->%s", e.From, e.To)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush edges")
}
