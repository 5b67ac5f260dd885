package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/model"
)

// WriteJSON writes scores as an indented JSON array.
func WriteJSON(w io.Writer, scores []model.ZoneScore) error {
	if scores == nil {
		scores = []model.ZoneScore{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(scores), "export: encode json")
}
