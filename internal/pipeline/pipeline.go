// Package pipeline turns raw provincial statistics into the derived
// analytic tables: imputed emissions, standardized indices, correlations,
// clusters and scenario forecasts.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/province"
)

// Result holds every table produced by one batch. Slices are owned by the
// result and must not be modified by consumers.
type Result struct {
	Emission       []model.EmissionRecord
	Energy         []model.EnergyRecord
	Green          []model.GreenRecord
	Combined       []model.CombinedRecord
	Standardized   []model.StandardizedRecord
	Relation       []model.RelationRecord
	Trend          []model.TrendRecord
	Delta          []model.DeltaRecord
	Policy         []model.PolicyEvent
	Cluster        []model.ClusterRecord
	ClusterSummary []model.ClusterSummaryRecord
	Forecast       []model.ForecastRecord

	Fits        Fits
	Model       *ForecastModel
	Diagnostics model.Diagnostics
}

// Pipeline runs the batch stages with an explicit configuration.
type Pipeline struct {
	cfg *config.Config
}

// New creates a Pipeline.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Load reads the configured raw directory, applying extra province aliases
// when an alias file is configured.
func (p *Pipeline) Load(ctx context.Context) (model.RawSet, model.Diagnostics, error) {
	norm := province.Default()
	if p.cfg.Province.AliasFile != "" {
		extra, err := province.LoadAliasFile(p.cfg.Province.AliasFile)
		if err != nil {
			return model.RawSet{}, nil, err
		}
		if norm, err = province.NewNormalizer(extra); err != nil {
			return model.RawSet{}, nil, err
		}
	}
	return Loader{Dir: p.cfg.Data.RawDir, Normalizer: norm}.Load(ctx)
}

// Run executes stages 2 to 7 over normalized raw tables.
func (p *Pipeline) Run(ctx context.Context, raw model.RawSet) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	log.Info("pipeline: starting batch",
		zap.Int("emission_rows", len(raw.Emission)),
		zap.Int("energy_rows", len(raw.Energy)),
	)

	res := &Result{}
	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		duration := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			return err
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	cfg := p.cfg
	res.Energy = BuildEnergy(raw.Energy)
	res.Green = BuildGreen(raw.Green)

	var emission []model.EmissionRaw
	if err := track(stageExtrapolate, func() error {
		var diags model.Diagnostics
		var err error
		emission, res.Fits, diags, err = Extrapolate(ctx, raw.Emission, res.Energy, ExtrapolateOptions{
			TargetYears: cfg.Extrapolate.TargetYears,
			MinPoints:   cfg.Extrapolate.MinPoints,
			Workers:     cfg.Workers,
		})
		res.Diagnostics.Extend(diags)
		return err
	}); err != nil {
		return nil, err
	}

	_ = track("merge", func() error {
		res.Emission = DeriveEmission(emission, raw.GDP, raw.Population)
		res.Combined = Combine(res.Emission, res.Energy, res.Green, Window{Start: cfg.Window.Start, End: cfg.Window.End})
		res.Trend = Trend(res.Combined)
		res.Delta = Delta(res.Trend)
		res.Policy = PolicyTimeline(raw.Policy)
		return nil
	})

	_ = track("standardize", func() error {
		w := cfg.Standardize.Weights
		res.Standardized = Standardize(res.Combined, Weights{Energy: w.Energy, Eco: w.Eco, Efficiency: w.Efficiency})
		return nil
	})

	_ = track("correlate", func() error {
		res.Relation = Correlate(res.Combined)
		return nil
	})

	_ = track(stageCluster, func() error {
		var diags model.Diagnostics
		res.Cluster, res.ClusterSummary, diags = Cluster(res.Standardized, ClusterOptions{
			K:        cfg.Cluster.K,
			Seed:     cfg.Cluster.Seed,
			Restarts: cfg.Cluster.Restarts,
			MaxIter:  cfg.Cluster.MaxIter,
		})
		res.Diagnostics.Extend(diags)
		return nil
	})

	if err := track(stageForecast, func() error {
		scenarios := make([]Scenario, len(cfg.Forecast.Scenarios))
		for i, s := range cfg.Forecast.Scenarios {
			scenarios[i] = Scenario{Name: s.Name, CleanDelta: s.CleanDelta, GreenDelta: s.GreenDelta}
		}
		var diags model.Diagnostics
		var err error
		res.Forecast, res.Model, diags, err = Forecast(ctx, res.Trend, ForecastOptions{
			Horizon:     cfg.Forecast.Horizon(),
			Scenarios:   scenarios,
			InterpLimit: cfg.Forecast.InterpLimit,
			Workers:     cfg.Workers,
		})
		res.Diagnostics.Extend(diags)
		return err
	}); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}

	for key, n := range res.Diagnostics.Count() {
		log.Info("pipeline: diagnostics", zap.String("kind", key), zap.Int("count", n))
	}
	for _, d := range res.Diagnostics {
		log.Warn("pipeline: diagnostic",
			zap.String("stage", d.Stage),
			zap.String("outcome", string(d.Outcome)),
			zap.String("province", d.Province),
			zap.Int("year", d.Year),
			zap.String("scenario", d.Scenario),
			zap.String("reason", d.Reason),
		)
	}
	log.Info("pipeline: batch complete",
		zap.Int("emission_rows", len(res.Emission)),
		zap.Int("combined_rows", len(res.Combined)),
		zap.Int("forecast_rows", len(res.Forecast)),
		zap.Int("diagnostics", len(res.Diagnostics)),
	)
	return res, nil
}

// Execute loads the raw directory and runs the batch. Load diagnostics are
// placed ahead of the stage diagnostics.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	raw, loadDiags, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range loadDiags {
		zap.L().Warn("pipeline: load diagnostic", zap.String("reason", d.Reason))
	}
	res, err := p.Run(ctx, raw)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = append(loadDiags, res.Diagnostics...)
	return res, nil
}
