package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/greenreach/internal/model"
)

const scoresSheet = "scores"

var xlsxHeader = []string{"zone_id", "x", "y", "kind", "score"}

// WriteXLSX writes scores to a single-sheet workbook.
func WriteXLSX(w io.Writer, scores []model.ZoneScore) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(scoresSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, zs := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(zs.ZoneID)
		row.AddCell().SetFloat(zs.X)
		row.AddCell().SetFloat(zs.Y)
		row.AddCell().SetString(string(zs.Score.Kind))
		cell := row.AddCell()
		if v, ok := zs.Score.Float(); ok {
			cell.SetFloat(v)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}
