package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/greenreach/internal/export"
	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored scoring runs",
	Long:  "Commands for listing runs, viewing one run and exporting its scores.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs scores --

var runsScoresCmd = &cobra.Command{
	Use:   "scores <run-id>",
	Short: "Export the stored scores of a run",
	Long:  "Export the stored scores of a run. Coordinates are British National Grid (EPSG:27700) easting/northing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")
		kind, _ := cmd.Flags().GetString("kind")

		format := export.FormatFromPath(output)
		if formatName != "" {
			f, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			format = f
		}
		if output == "" && format == export.FormatXLSX {
			return eris.New("runs scores: xlsx needs --output")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs scores")
		}
		scores, err := st.GetScores(ctx, args[0], store.ScoreFilter{Kind: model.ScoreKind(kind)})
		if err != nil {
			return eris.Wrap(err, "runs scores")
		}

		if output == "" {
			return export.Write(os.Stdout, format, scores)
		}
		return export.WriteFile(output, format, scores)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsScoresCmd.Flags().String("output", "", "write scores to this file (stdout when empty)")
	runsScoresCmd.Flags().String("format", "", "output format: json, csv, geojson or xlsx")
	runsScoresCmd.Flags().String("kind", "", "only scores of this kind (finite, closed_form, unreachable)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsScoresCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tCUTOFF\tK\tZONES\tUNREACHABLE\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-\t-----\t-----------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		zones, unreachable := "-", "-"
		if r.Summary != nil {
			c := r.Summary.Counts
			zones = fmt.Sprintf("%d", c.Finite+c.ClosedForm+c.Unreachable)
			unreachable = fmt.Sprintf("%d", c.Unreachable)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%g\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.Params.Cutoff,
			r.Params.K,
			zones,
			unreachable,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
