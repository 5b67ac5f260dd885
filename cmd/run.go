package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/greenreach/internal/export"
	"github.com/sells-group/greenreach/internal/pipeline"
	"github.com/sells-group/greenreach/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every zone and write the results",
	Long: `Score every zone and write the results.

Coordinates in every output format are British National Grid (EPSG:27700)
easting/northing. GeoJSON output carries a named crs member saying so; it is
not RFC 7946 WGS84 longitude/latitude.`,
	Example: `  greenreach run --output scores.geojson
  greenreach run --format csv --output scores.csv --summary summary.yaml --save
  greenreach run --cutoff 1800 --k 3 --policy last`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyRunFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")
		summaryPath, _ := cmd.Flags().GetString("summary")
		save, _ := cmd.Flags().GetBool("save")

		format := export.FormatFromPath(output)
		if formatName != "" {
			f, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			format = f
		}

		var st store.Store
		if save {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		p := pipeline.New(pipeline.OptionsFromConfig(cfg), pipeline.SourcesFromConfig(cfg), newResolver(), st)
		out, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		scores := pipeline.ZoneScores(out.Dataset, out.Result)
		if output != "" {
			if err := export.WriteFile(output, format, scores); err != nil {
				return err
			}
			zap.L().Info("scores written", zap.String("path", output), zap.String("format", string(format)))
		} else if format != export.FormatXLSX {
			if err := export.Write(os.Stdout, format, scores); err != nil {
				return err
			}
		}

		if summaryPath != "" {
			s := export.Summary{Run: out.Summary, Input: out.Report, Histogram: out.Histogram}
			if out.Run != nil {
				s.RunID = out.Run.ID
			}
			if err := export.WriteSummaryFile(summaryPath, s); err != nil {
				return err
			}
		}

		runID := ""
		if out.Run != nil {
			runID = out.Run.ID
		}
		printSummary(os.Stderr, runID, out.Summary, out.Report)
		return nil
	},
}

// applyRunFlags copies explicitly set tuning flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	var err error
	if f.Changed("cutoff") {
		cfg.Reach.Cutoff, err = f.GetFloat64("cutoff")
	}
	if err == nil && f.Changed("k") {
		cfg.Network.K, err = f.GetInt("k")
	}
	if err == nil && f.Changed("workers") {
		cfg.Reach.Workers, err = f.GetInt("workers")
		cfg.Network.Workers = cfg.Reach.Workers
	}
	if err == nil && f.Changed("policy") {
		cfg.Network.DuplicatePolicy, err = f.GetString("policy")
	}
	return err
}

func init() {
	f := runCmd.Flags()
	f.String("output", "", "write scores to this file (stdout when empty)")
	f.String("format", "", "output format: json, csv, geojson or xlsx (default from --output extension)")
	f.String("summary", "", "write a YAML run summary with the score histogram to this file")
	f.Bool("save", false, "record the run and its scores in the configured store")
	f.Float64("cutoff", 0, "maximum travel time a search expands to (default from config)")
	f.Int("k", 0, "nearest stops linked to each zone (default from config)")
	f.Int("workers", 0, "parallel workers (default from config)")
	f.String("policy", "", "repeated edge policy: min or last (default from config)")
	rootCmd.AddCommand(runCmd)
}
