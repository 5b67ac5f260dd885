package export

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/greenreach/internal/dataset"
	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/reach"
)

// Summary is the YAML document written next to a score export.
type Summary struct {
	RunID     string           `yaml:"run_id,omitempty"`
	Run       model.RunSummary `yaml:"run"`
	Input     dataset.Report   `yaml:"input"`
	Histogram []reach.Bin      `yaml:"histogram,omitempty"`
}

// WriteSummary encodes s as YAML.
func WriteSummary(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "export: encode summary")
	}
	return eris.Wrap(enc.Close(), "export: flush summary")
}

// WriteSummaryFile writes s to path.
func WriteSummaryFile(path string, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteSummary(f, s); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
