package pipeline

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

const stageForecast = "forecast"

// Scenario is a named perturbation of the latest clean and green ratios.
type Scenario struct {
	Name       string
	CleanDelta float64
	GreenDelta float64
}

// DefaultScenarios are baseline, +5pp clean energy and +2pp clean and green.
var DefaultScenarios = []Scenario{
	{Name: "baseline"},
	{Name: "clean_plus5pp", CleanDelta: 0.05},
	{Name: "green_plus2pp", CleanDelta: 0.02, GreenDelta: 0.02},
}

// ForecastOptions configures the scenario forecaster.
type ForecastOptions struct {
	Horizon     []int
	Scenarios   []Scenario
	InterpLimit int
	Workers     int
}

// ForecastModel is the fitted global intensity model.
type ForecastModel struct {
	Scaler   stats.Scaler      `json:"scaler"`
	Linear   stats.LinearModel `json:"linear"`
	BaseYear int               `json:"base_year"`
	TrainN   int               `json:"train_n"`
}

// Interpolate fills interior gaps of vals linearly over positions and
// carries the last value into trailing gaps, filling at most limit
// consecutive nulls per gap. Leading nulls stay null.
func Interpolate(vals []stats.Value, limit int) []stats.Value {
	out := slices.Clone(vals)
	last := -1
	for i, v := range vals {
		if !v.Valid() {
			continue
		}
		if last >= 0 && i-last > 1 {
			a, _ := vals[last].Float64()
			b, _ := v.Float64()
			span := float64(i - last)
			for k := last + 1; k < i && k <= last+limit; k++ {
				out[k] = stats.Of(a + (b-a)*float64(k-last)/span)
			}
		}
		last = i
	}
	if last >= 0 {
		for k := last + 1; k < len(vals) && k <= last+limit; k++ {
			out[k] = vals[last]
		}
	}
	return out
}

// FillGaps interpolates clean_ratio and green_rate per province (trend must
// be sorted by province and year), then fills every remaining null in the
// three indicator columns with that column's mean over the whole table.
func FillGaps(trend []model.TrendRecord, limit int) []model.TrendRecord {
	out := slices.Clone(trend)
	for start := 0; start < len(out); {
		end := start
		for end < len(out) && out[end].Province == out[start].Province {
			end++
		}
		clean := make([]stats.Value, end-start)
		green := make([]stats.Value, end-start)
		for i := start; i < end; i++ {
			clean[i-start] = out[i].CleanRatio
			green[i-start] = out[i].GreenRate
		}
		clean, green = Interpolate(clean, limit), Interpolate(green, limit)
		for i := start; i < end; i++ {
			out[i].CleanRatio = clean[i-start]
			out[i].GreenRate = green[i-start]
		}
		start = end
	}

	var cs, gs, es []stats.Value
	for _, r := range out {
		cs = append(cs, r.CleanRatio)
		gs = append(gs, r.GreenRate)
		es = append(es, r.EmissionPerGDP)
	}
	mc, mg, me := stats.Mean(cs), stats.Mean(gs), stats.Mean(es)
	for i := range out {
		if !out[i].CleanRatio.Valid() {
			out[i].CleanRatio = mc
		}
		if !out[i].GreenRate.Valid() {
			out[i].GreenRate = mg
		}
		if !out[i].EmissionPerGDP.Valid() {
			out[i].EmissionPerGDP = me
		}
	}
	return out
}

// FitForecastModel fits emission_per_gdp on standardized (clean_ratio,
// green_rate) over every complete row of the filled trend table.
func FitForecastModel(filled []model.TrendRecord) (ForecastModel, error) {
	var X [][]float64
	var y []float64
	for _, r := range filled {
		c, okC := r.CleanRatio.Float64()
		g, okG := r.GreenRate.Float64()
		e, okE := r.EmissionPerGDP.Float64()
		if okC && okG && okE {
			X = append(X, []float64{c, g})
			y = append(y, e)
		}
	}
	scaler, err := stats.FitScaler(X)
	if err != nil {
		return ForecastModel{}, eris.Wrap(err, "pipeline: fit scaler")
	}
	Z := make([][]float64, len(X))
	for i, x := range X {
		Z[i], _ = scaler.Transform(x)
	}
	lm, err := stats.FitOLS(Z, y)
	if err != nil {
		return ForecastModel{}, eris.Wrap(err, "pipeline: fit forecast model")
	}
	return ForecastModel{Scaler: scaler, Linear: lm, TrainN: len(X)}, nil
}

// Predict scores one (clean, green) pair.
func (m ForecastModel) Predict(clean, green float64) (float64, error) {
	z, err := m.Scaler.Transform([]float64{clean, green})
	if err != nil {
		return 0, err
	}
	return m.Linear.Predict(z)
}

type forecastSlot struct {
	records []model.ForecastRecord
	diags   model.Diagnostics
}

// Forecast fills trend gaps, fits the global model and scores every
// scenario for every province with complete data in the latest trend year
// over the horizon. A failed fit yields no forecasts and a diagnostic; a
// failed prediction skips that row only.
func Forecast(ctx context.Context, trend []model.TrendRecord, opts ForecastOptions) ([]model.ForecastRecord, *ForecastModel, model.Diagnostics, error) {
	log := zap.L().With(zap.String("component", "pipeline.forecast"))
	var diags model.Diagnostics
	if len(trend) == 0 {
		diags.Add(model.Diagnostic{Stage: stageForecast, Outcome: model.OutcomeWarning, Reason: "empty trend table"})
		return nil, nil, diags, nil
	}

	filled := FillGaps(trend, opts.InterpLimit)
	fm, err := FitForecastModel(filled)
	if err != nil {
		diags.Add(model.Diagnostic{Stage: stageForecast, Outcome: model.OutcomeSkipped, Reason: err.Error()})
		log.Warn("pipeline: forecast model not fitted", zap.Error(err))
		return nil, nil, diags, nil
	}

	for _, r := range filled {
		fm.BaseYear = max(fm.BaseYear, r.Year)
	}
	var base []model.TrendRecord
	for _, r := range filled {
		if r.Year == fm.BaseYear && r.CleanRatio.Valid() && r.GreenRate.Valid() {
			base = append(base, r)
		}
	}

	slots := make([]forecastSlot, len(base))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, b := range base {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			slots[i] = scoreProvince(fm, b, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, eris.Wrap(err, "pipeline: forecast")
	}

	var out []model.ForecastRecord
	for _, s := range slots {
		out = append(out, s.records...)
		diags.Extend(s.diags)
	}

	log.Info("pipeline: forecast complete",
		zap.Int("base_year", fm.BaseYear),
		zap.Int("base_provinces", len(base)),
		zap.Int("rows", len(out)),
	)
	return out, &fm, diags, nil
}

// scoreProvince emits rows in year order, then scenario order.
func scoreProvince(fm ForecastModel, b model.TrendRecord, opts ForecastOptions) forecastSlot {
	var s forecastSlot
	c0, _ := b.CleanRatio.Float64()
	g0, _ := b.GreenRate.Float64()
	for _, year := range opts.Horizon {
		for _, sc := range opts.Scenarios {
			clean := stats.Of(c0 + sc.CleanDelta).Clip(0, 1).Or(0)
			green := stats.Of(g0 + sc.GreenDelta).Clip(0, 1).Or(0)
			pred, err := fm.Predict(clean, green)
			if err != nil {
				s.diags.Add(model.Diagnostic{Stage: stageForecast, Province: b.Province, Year: year,
					Scenario: sc.Name, Outcome: model.OutcomeSkipped, Reason: err.Error()})
				continue
			}
			s.records = append(s.records, model.ForecastRecord{
				Key:                     model.Key{Province: b.Province, Year: year},
				Scenario:                sc.Name,
				CleanRatio:              clean,
				GreenRate:               green,
				PredictedEmissionPerGDP: pred,
			})
		}
	}
	return s
}
