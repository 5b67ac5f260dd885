package main

import (
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/greenreach/internal/dataset"
	"github.com/sells-group/greenreach/internal/model"
)

// printSummary writes a human-readable run summary to out.
func printSummary(out io.Writer, runID string, s model.RunSummary, rep dataset.Report) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if runID != "" {
		_, _ = p.Fprintf(w, "Run:\t%s\n", runID)
	}
	_, _ = p.Fprintf(w, "Nodes:\t%d (%d stops, %d zones)\n", s.Graph.Nodes(), s.Graph.StopNodes, s.Graph.ZoneNodes)
	_, _ = p.Fprintf(w, "Edges:\t%d (%d transit, %d access)\n", s.Graph.Edges(), s.Graph.TransitEdges, s.Graph.AccessEdges)
	_, _ = p.Fprintf(w, "Well-served zones:\t%d\n", s.WellServed)
	if total := s.Counts.Finite + s.Counts.ClosedForm + s.Counts.Unreachable; total > 0 {
		_, _ = p.Fprintf(w, "Scored zones:\t%d\n", total)
		_, _ = p.Fprintf(w, "  Graph search:\t%d\n", s.Counts.Finite)
		_, _ = p.Fprintf(w, "  Closed form:\t%d\n", s.Counts.ClosedForm)
		_, _ = p.Fprintf(w, "  Unreachable:\t%d\n", s.Counts.Unreachable)
	}
	if skipped := droppedRows(rep); skipped > 0 {
		_, _ = p.Fprintf(w, "Input rows dropped:\t%d\n", skipped)
	}
	for _, ph := range s.Breakdown {
		_, _ = p.Fprintf(w, "  %s:\t%s\n", ph.Name, ph.Duration.Round(time.Millisecond))
	}
	if len(s.Breakdown) > 0 {
		_, _ = p.Fprintf(w, "Total time:\t%s\n", s.Breakdown.Total().Round(time.Millisecond))
	}
	_ = w.Flush()
}

func droppedRows(r dataset.Report) int {
	return r.UnreadableRows + r.DuplicateStops + r.ZonesOutsideRegion + r.DuplicateZones +
		r.ZoneStopCollisions + r.OrphanGreenSpace + r.DuplicateGreenSpace + r.UnknownRouteStops
}
