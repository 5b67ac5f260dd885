package dataset

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/sells-group/greenreach/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources locates each input table. Values are paths, URLs or zip archives.
// ZonesShapefile, when set, replaces the Zones CSV. Councils is optional.
type Sources struct {
	Stops          string
	Sequences      string
	Councils       string
	Zones          string
	ZonesShapefile string
	GreenSpace     string
}

// Resolver maps a source to a local file; see fetcher.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, src, ext string) (string, error)
}

// Load reads all tables concurrently and normalizes them.
func Load(ctx context.Context, res Resolver, src Sources) (*model.Dataset, Report, error) {
	log := zap.L().With(zap.String("component", "dataset.load"))

	var (
		t       Tables
		skipped [3]int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eris.Wrap(readCSV(gctx, res, src.Stops, func(r io.Reader) (err error) {
			t.Stops, skipped[0], err = ReadStops(r)
			return err
		}), "dataset: stops")
	})
	g.Go(func() error {
		return eris.Wrap(readCSV(gctx, res, src.Sequences, func(r io.Reader) (err error) {
			t.Routes, skipped[1], err = ReadSequences(r)
			return err
		}), "dataset: sequences")
	})
	g.Go(func() error {
		if src.Councils == "" {
			return nil
		}
		return eris.Wrap(readCSV(gctx, res, src.Councils, func(r io.Reader) (err error) {
			t.Councils, err = ReadCouncils(r)
			return err
		}), "dataset: councils")
	})
	g.Go(func() error {
		if src.ZonesShapefile != "" {
			path, err := res.Resolve(gctx, src.ZonesShapefile, ".shp")
			if err != nil {
				return eris.Wrap(err, "dataset: zones")
			}
			t.Zones, skipped[2], err = ReadZonesShapefile(path, DefaultShapefileFields)
			return eris.Wrap(err, "dataset: zones")
		}
		return eris.Wrap(readCSV(gctx, res, src.Zones, func(r io.Reader) (err error) {
			t.Zones, skipped[2], err = ReadZones(r)
			return err
		}), "dataset: zones")
	})
	g.Go(func() error {
		return eris.Wrap(readCSV(gctx, res, src.GreenSpace, func(r io.Reader) (err error) {
			t.GreenSpace, err = ReadGreenSpace(r)
			return err
		}), "dataset: green space")
	})

	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	ds, rep := Normalize(t)
	rep.UnreadableRows = skipped[0] + skipped[1] + skipped[2]

	log.Info("dataset loaded",
		append([]zap.Field{
			zap.Int("stops", len(ds.Stops)),
			zap.Int("route_rows", len(ds.Routes)),
			zap.Int("zones", len(ds.Zones)),
			zap.Int("green_space", len(ds.GreenSpace)),
		}, rep.Fields()...)...,
	)
	return ds, rep, nil
}

func readCSV(ctx context.Context, res Resolver, src string, decode func(io.Reader) error) error {
	if src == "" {
		return eris.New("no source configured")
	}
	path, err := res.Resolve(ctx, src, ".csv")
	if err != nil {
		return err
	}
	f, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return decode(f)
}
