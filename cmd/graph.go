package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/greenreach/internal/export"
	"github.com/sells-group/greenreach/internal/pipeline"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the network and print diagnostics",
	Long:  "Loads the inputs and builds the stop and zone network without scoring, then prints node and edge counts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyRunFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate("graph"); err != nil {
			return err
		}

		p := pipeline.New(pipeline.OptionsFromConfig(cfg), pipeline.SourcesFromConfig(cfg), newResolver(), nil)
		out, err := p.BuildGraph(ctx)
		if err != nil {
			return eris.Wrap(err, "graph")
		}

		if edgesPath, _ := cmd.Flags().GetString("edges"); edgesPath != "" {
			f, err := os.Create(edgesPath)
			if err != nil {
				return eris.Wrapf(err, "graph: create %s", edgesPath)
			}
			if err := export.WriteEdges(f, out.Graph.Edges()); err != nil {
				f.Close() //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return eris.Wrapf(err, "graph: close %s", edgesPath)
			}
		}

		printSummary(os.Stdout, "", out.Summary, out.Report)
		return nil
	},
}

func init() {
	f := graphCmd.Flags()
	f.String("edges", "", "write the edge list as CSV to this file")
	f.Int("k", 0, "nearest stops linked to each zone (default from config)")
	f.Int("workers", 0, "parallel workers (default from config)")
	f.String("policy", "", "repeated edge policy: min or last (default from config)")
	rootCmd.AddCommand(graphCmd)
}
