// Package pipeline runs a scoring job end to end: load the tables, index the
// stops, build the network, score every zone and persist the outcome.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/greenreach/internal/config"
	"github.com/sells-group/greenreach/internal/dataset"
	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/network"
	"github.com/sells-group/greenreach/internal/reach"
	"github.com/sells-group/greenreach/internal/spatial"
	"github.com/sells-group/greenreach/internal/store"
)

// Phase names, in execution order.
const (
	PhaseLoad      = "load"
	PhaseIndex     = "index"
	PhaseGraph     = "graph"
	PhaseCompute   = "compute"
	PhaseAggregate = "aggregate"
)

// Options holds everything a run needs besides its inputs.
type Options struct {
	Params         model.Params
	NetworkWorkers int
	ReachWorkers   int
	HistogramBins  int
}

// OptionsFromConfig maps the loaded configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Params: model.Params{
			WalkingSpeed:    cfg.Network.WalkingSpeed,
			TransitSpeed:    cfg.Network.TransitSpeed,
			K:               cfg.Network.K,
			Cutoff:          cfg.Reach.Cutoff,
			UnderservedTier: cfg.Reach.UnderservedTier,
			WellServedTier:  cfg.Reach.WellServedTier,
			DuplicatePolicy: cfg.Network.DuplicatePolicy,
		},
		NetworkWorkers: cfg.Network.Workers,
		ReachWorkers:   cfg.Reach.Workers,
		HistogramBins:  cfg.Reach.HistogramBins,
	}
}

// SourcesFromConfig maps the input section onto dataset sources.
func SourcesFromConfig(cfg *config.Config) dataset.Sources {
	return dataset.Sources{
		Stops:          cfg.Input.Stops,
		Sequences:      cfg.Input.Sequences,
		Councils:       cfg.Input.Councils,
		Zones:          cfg.Input.Zones,
		ZonesShapefile: cfg.Input.ZonesShapefile,
		GreenSpace:     cfg.Input.GreenSpace,
	}
}

// Outcome is everything a run produced.
type Outcome struct {
	Run       *model.Run // nil when no store is attached
	Summary   model.RunSummary
	Dataset   *model.Dataset
	Report    dataset.Report
	Graph     *network.Graph
	Result    *reach.Result // nil for graph-only runs
	Histogram []reach.Bin
}

// Pipeline orchestrates the phases of a scoring run.
type Pipeline struct {
	opts     Options
	sources  dataset.Sources
	resolver dataset.Resolver
	store    store.Store
}

// New creates a Pipeline. st may be nil, in which case nothing is persisted.
func New(opts Options, src dataset.Sources, res dataset.Resolver, st store.Store) *Pipeline {
	if opts.HistogramBins < 1 {
		opts.HistogramBins = 100
	}
	return &Pipeline{opts: opts, sources: src, resolver: res, store: st}
}

// tracker times phases into a breakdown.
type tracker struct {
	log       *zap.Logger
	breakdown model.Breakdown
}

func (t *tracker) phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	if err != nil {
		t.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", d.Milliseconds()),
			zap.Error(err),
		)
		return err
	}
	t.breakdown = append(t.breakdown, model.Phase{Name: name, Duration: d})
	t.log.Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", d.Milliseconds()),
	)
	return nil
}

// BuildGraph runs the load, index and graph phases only.
func (p *Pipeline) BuildGraph(ctx context.Context) (*Outcome, error) {
	t := &tracker{log: zap.L().With(zap.String("component", "pipeline"))}
	out, err := p.build(ctx, t)
	if err != nil {
		return nil, err
	}
	out.Summary = p.summary(out, t.breakdown)
	return out, nil
}

func (p *Pipeline) build(ctx context.Context, t *tracker) (*Outcome, error) {
	out := &Outcome{}

	err := t.phase(PhaseLoad, func() error {
		ds, report, err := dataset.Load(ctx, p.resolver, p.sources)
		if err != nil {
			return err
		}
		out.Dataset, out.Report = ds, report
		return nil
	})
	if err != nil {
		return nil, err
	}

	var idx *spatial.Index
	err = t.phase(PhaseIndex, func() error {
		var err error
		idx, err = spatial.NewIndex(out.Dataset.Stops)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = t.phase(PhaseGraph, func() error {
		g, err := p.buildGraph(ctx, out.Dataset, idx)
		if err != nil {
			return err
		}
		out.Graph = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) buildGraph(ctx context.Context, ds *model.Dataset, idx *spatial.Index) (*network.Graph, error) {
	policy, err := network.ParsePolicy(p.opts.Params.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	b, err := network.NewBuilder(network.Params{
		WalkingSpeed: p.opts.Params.WalkingSpeed,
		TransitSpeed: p.opts.Params.TransitSpeed,
		K:            p.opts.Params.K,
	}, network.WithPolicy(policy), network.WithWorkers(p.opts.NetworkWorkers))
	if err != nil {
		return nil, err
	}

	if err := b.AddStops(ds.Stops); err != nil {
		return nil, err
	}
	if err := b.AddZones(ds.Zones); err != nil {
		return nil, err
	}
	if _, err := b.AddRoutes(ds.Routes); err != nil {
		return nil, err
	}
	if _, err := b.AddAccess(ctx, idx); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Run executes every phase. When a store is attached the run is recorded
// before the first phase and marked complete or failed at the end.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	log.Info("pipeline: starting run",
		zap.Float64("cutoff", p.opts.Params.Cutoff),
		zap.Int("k", p.opts.Params.K),
	)

	var run *model.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(ctx, p.opts.Params)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		log = log.With(zap.String("run_id", run.ID))
	}

	out, err := p.execute(ctx, &tracker{log: log})
	if err != nil {
		p.fail(log, run, err)
		return nil, err
	}
	out.Run = run

	if run != nil {
		if err := p.persist(ctx, out); err != nil {
			p.fail(log, run, err)
			return nil, err
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("zones", out.Result.Len()),
		zap.Int("finite", out.Summary.Counts.Finite),
		zap.Int("closed_form", out.Summary.Counts.ClosedForm),
		zap.Int("unreachable", out.Summary.Counts.Unreachable),
		zap.Duration("total", out.Summary.Breakdown.Total()),
	)
	return out, nil
}

func (p *Pipeline) execute(ctx context.Context, t *tracker) (*Outcome, error) {
	out, err := p.build(ctx, t)
	if err != nil {
		return nil, err
	}

	engine := reach.NewEngine(out.Graph, reach.Params{
		Cutoff:          p.opts.Params.Cutoff,
		UnderservedTier: p.opts.Params.UnderservedTier,
		WellServedTier:  p.opts.Params.WellServedTier,
		Workers:         p.opts.ReachWorkers,
	})

	var parts []reach.Partition
	err = t.phase(PhaseCompute, func() error {
		var err error
		parts, err = engine.Run(ctx, out.Dataset.GreenSpace)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = t.phase(PhaseAggregate, func() error {
		res, err := reach.Aggregate(out.Dataset.GreenSpace, parts...)
		if err != nil {
			return err
		}
		out.Result = res
		out.Histogram = res.Histogram(p.opts.HistogramBins)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Summary = p.summary(out, t.breakdown)
	return out, nil
}

func (p *Pipeline) summary(out *Outcome, breakdown model.Breakdown) model.RunSummary {
	s := model.RunSummary{
		Params:     p.opts.Params,
		Graph:      out.Graph.Stats(),
		WellServed: len(reach.WellServed(out.Dataset.GreenSpace, p.opts.Params.WellServedTier)),
		Breakdown:  breakdown,
	}
	if out.Result != nil {
		s.Counts = out.Result.Counts()
	}
	return s
}

func (p *Pipeline) persist(ctx context.Context, out *Outcome) error {
	if err := p.store.SaveScores(ctx, out.Run.ID, ZoneScores(out.Dataset, out.Result)); err != nil {
		return eris.Wrap(err, "pipeline: save scores")
	}
	if err := p.store.CompleteRun(ctx, out.Run.ID, &out.Summary); err != nil {
		return eris.Wrap(err, "pipeline: complete run")
	}
	out.Run.Status = model.RunStatusComplete
	out.Run.Summary = &out.Summary
	return nil
}

// fail marks the run failed. It uses a fresh context so a cancelled run is
// still recorded.
func (p *Pipeline) fail(log *zap.Logger, run *model.Run, cause error) {
	if run == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FailRun(ctx, run.ID, cause.Error()); err != nil {
		log.Warn("pipeline: failed to record failure", zap.Error(err))
	}
}

// ZoneScores joins each scored zone with its centroid, ordered by zone ID.
func ZoneScores(ds *model.Dataset, res *reach.Result) []model.ZoneScore {
	zones := make(map[string]model.Zone, len(ds.Zones))
	for _, z := range ds.Zones {
		zones[z.ID] = z
	}
	out := make([]model.ZoneScore, 0, res.Len())
	res.Each(func(id string, s model.Score) {
		z := zones[id]
		out = append(out, model.ZoneScore{ZoneID: id, X: z.X, Y: z.Y, Score: s})
	})
	return out
}
