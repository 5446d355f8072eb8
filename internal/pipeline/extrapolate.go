package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

const stageExtrapolate = "extrapolate"

// ExtrapolateOptions configures emission extrapolation.
type ExtrapolateOptions struct {
	TargetYears []int
	MinPoints   int
	Workers     int
}

// Fits maps a province to its driver→emission regression line.
type Fits map[string]stats.Line

type fitResult struct {
	province string
	line     stats.Line
	diag     *model.Diagnostic
}

// driver is total energy consumption times the fossil share.
func driver(e model.EnergyRecord) stats.Value {
	return e.TotalConsumption.Mul(e.FossilRatio)
}

// Extrapolate fits one OLS line per province from driver to observed
// emission total and predicts the target years. Provinces with fewer than
// MinPoints training pairs, or with a constant driver, are skipped. An
// observed non-null total always wins over a prediction; an observed null
// total is replaced. The result is sorted by province and year.
func Extrapolate(ctx context.Context, emission []model.EmissionRaw, energy []model.EnergyRecord, opts ExtrapolateOptions) ([]model.EmissionRaw, Fits, model.Diagnostics, error) {
	log := zap.L().With(zap.String("component", "pipeline.extrapolate"))

	observed := make(map[model.Key]int, len(emission))
	for i, e := range emission {
		observed[e.Key] = i
	}

	byProvince := map[string][]model.EnergyRecord{}
	for _, e := range energy {
		byProvince[e.Province] = append(byProvince[e.Province], e)
	}
	provinces := make([]string, 0, len(byProvince))
	for p := range byProvince {
		provinces = append(provinces, p)
	}
	slices.Sort(provinces)

	results := make([]fitResult, len(provinces))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, p := range provinces {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = fitProvince(p, byProvince[p], emission, observed, opts.MinPoints)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, eris.Wrap(err, "pipeline: extrapolate")
	}

	fits := make(Fits, len(results))
	var diags model.Diagnostics
	for _, r := range results {
		if r.diag != nil {
			diags.Add(*r.diag)
			continue
		}
		fits[r.province] = r.line
	}

	out := slices.Clone(emission)
	var imputed int
	for _, p := range provinces {
		line, ok := fits[p]
		if !ok {
			continue
		}
		years := map[int]model.EnergyRecord{}
		for _, e := range byProvince[p] {
			years[e.Year] = e
		}
		for _, y := range opts.TargetYears {
			e, ok := years[y]
			if !ok {
				continue
			}
			x, ok := driver(e).Float64()
			if !ok {
				continue
			}
			pred := stats.Of(line.Predict(x))
			if !pred.Valid() {
				diags.Add(model.Diagnostic{Stage: stageExtrapolate, Province: p, Year: y,
					Outcome: model.OutcomeSkipped, Reason: "non-finite prediction"})
				continue
			}
			row := model.EmissionRaw{Key: e.Key, EmissionTotal: pred, IsImputed: true}
			if i, seen := observed[e.Key]; seen {
				if out[i].EmissionTotal.Valid() {
					diags.Add(model.Diagnostic{Stage: stageExtrapolate, Province: p, Year: y,
						Outcome: model.OutcomeSkipped, Reason: "observed emission total kept"})
					continue
				}
				out[i] = row
				diags.Add(model.Diagnostic{Stage: stageExtrapolate, Province: p, Year: y,
					Outcome: model.OutcomeReplaced, Reason: "null observed emission total replaced by prediction"})
				imputed++
				continue
			}
			out = append(out, row)
			imputed++
		}
	}

	slices.SortFunc(out, func(a, b model.EmissionRaw) int { return a.Key.Compare(b.Key) })

	log.Info("pipeline: extrapolation complete",
		zap.Int("provinces", len(provinces)),
		zap.Int("fitted", len(fits)),
		zap.Int("imputed_rows", imputed),
	)
	return out, fits, diags, nil
}

func fitProvince(p string, energy []model.EnergyRecord, emission []model.EmissionRaw, observed map[model.Key]int, minPoints int) fitResult {
	var xs, ys []float64
	for _, e := range energy {
		i, ok := observed[e.Key]
		if !ok {
			continue
		}
		x, okX := driver(e).Float64()
		y, okY := emission[i].EmissionTotal.Float64()
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < minPoints {
		return fitResult{province: p, diag: &model.Diagnostic{
			Stage: stageExtrapolate, Province: p, Outcome: model.OutcomeSkipped,
			Reason: fmt.Sprintf("insufficient history (n=%d, need %d)", len(xs), minPoints),
		}}
	}
	line, err := stats.FitLine(xs, ys)
	if err != nil {
		return fitResult{province: p, diag: &model.Diagnostic{
			Stage: stageExtrapolate, Province: p, Outcome: model.OutcomeSkipped,
			Reason: err.Error(),
		}}
	}
	return fitResult{province: p, line: line}
}
