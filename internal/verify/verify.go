package verify

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/pipeline"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// Check names.
const (
	CheckExists      = "exists"
	CheckYears       = "years"
	CheckProvinces   = "provinces"
	CheckEnergySum   = "energy_sum"
	CheckZMean       = "zscore_mean"
	CheckImputed     = "imputed_years"
	CheckClusters    = "cluster_summary"
	CheckCorrSigns   = "correlation_signs"
	CheckForecastRng = "forecast_range"
	CheckForecastN   = "forecast_rows"
)

// YearSpan is an inclusive year range a table must cover.
type YearSpan struct{ Start, End int }

// Options parameterizes the checks.
type Options struct {
	OutDir       string
	TargetYears  []int
	Coverage     map[string]YearSpan // table name -> required span
	MinProvinces int
	K            int
	CorrYear     int
	HorizonYears int
	Scenarios    int
	ForecastMin  float64
	ForecastMax  float64
	SumTolerance float64 // |clean+fossil-1| bound
	SumPassRate  float64 // fraction of rows within SumTolerance
	ZTolerance   float64
}

// FromConfig derives check options from the batch configuration.
func FromConfig(cfg *config.Config) Options {
	return Options{
		OutDir:      cfg.Data.OutDir,
		TargetYears: cfg.Extrapolate.TargetYears,
		Coverage: map[string]YearSpan{
			tables.Emission.Name: {2003, cfg.Window.End},
			tables.Energy.Name:   {2003, cfg.Window.End},
			tables.Green.Name:    {cfg.Window.Start, 2023},
			tables.Combined.Name: {cfg.Window.Start, cfg.Window.End},
		},
		MinProvinces: 31,
		K:            cfg.Cluster.K,
		CorrYear:     cfg.Window.End,
		HorizonYears: len(cfg.Forecast.Horizon()),
		Scenarios:    len(cfg.Forecast.Scenarios),
		ForecastMin:  0.02,
		ForecastMax:  0.5,
		SumTolerance: 0.01,
		SumPassRate:  0.95,
		ZTolerance:   0.05,
	}
}

// Run reads every output table under opts.OutDir and checks it. Only a
// cancelled context returns an error.
func Run(ctx context.Context, opts Options) (*Report, error) {
	log := zap.L().With(zap.String("component", "verify"))
	rep := &Report{OutDir: opts.OutDir}

	files := map[string]*tables.File{}
	for _, s := range tables.All {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := tables.Load(ctx, opts.OutDir, s)
		switch {
		case errors.Is(err, tables.ErrNotFound):
			rep.add(CheckExists, s.Name, StatusFail, "missing %s", filepath.Join(s.Dir, s.File))
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			rep.add(CheckExists, s.Name, StatusFail, "unreadable: %v", err)
			continue
		}
		if missing := f.Missing(); len(missing) > 0 {
			rep.add(CheckExists, s.Name, StatusFail, "missing columns %s", strings.Join(missing, ", "))
			continue
		}
		rep.add(CheckExists, s.Name, StatusPass, "%d rows", len(f.Rows))
		files[s.Name] = f
	}
	for _, name := range []string{"data_sources.json", "variable_dict.json"} {
		if _, err := os.Stat(filepath.Join(opts.OutDir, "meta", name)); err != nil {
			rep.add(CheckExists, name, StatusFail, "missing meta/%s", name)
			continue
		}
		rep.add(CheckExists, name, StatusPass, "present")
	}

	checkYears(rep, files, opts)
	checkProvinces(rep, files[tables.Combined.Name], opts)
	checkEnergySum(rep, files[tables.Energy.Name], opts)
	checkZMean(rep, files[tables.Standardized.Name], opts)
	checkImputed(rep, files[tables.Emission.Name], opts)
	checkClusters(rep, files[tables.Cluster.Name], files[tables.ClusterSummary.Name], opts)
	checkCorrSigns(rep, files[tables.Relation.Name], opts)
	checkForecastRange(rep, files[tables.Model.Name], opts)
	checkForecastRows(rep, files[tables.Model.Name], files[tables.Trend.Name], opts)

	log.Info("verify: complete",
		zap.Int("pass", rep.Count(StatusPass)),
		zap.Int("warn", rep.Count(StatusWarn)),
		zap.Int("fail", rep.Count(StatusFail)),
	)
	return rep, nil
}

func yearBounds(f *tables.File) (lo, hi int, ok bool) {
	for _, row := range f.Rows {
		y, valid := f.Int(row, "year")
		if !valid {
			continue
		}
		if !ok {
			lo, hi, ok = y, y, true
			continue
		}
		lo, hi = min(lo, y), max(hi, y)
	}
	return lo, hi, ok
}

func checkYears(rep *Report, files map[string]*tables.File, opts Options) {
	for _, s := range tables.All {
		span, want := opts.Coverage[s.Name]
		f := files[s.Name]
		if !want || f == nil {
			continue
		}
		lo, hi, ok := yearBounds(f)
		switch {
		case !ok:
			rep.add(CheckYears, s.Name, StatusWarn, "no valid years")
		case lo <= span.Start && hi >= span.End:
			rep.add(CheckYears, s.Name, StatusPass, "%d-%d covers %d-%d", lo, hi, span.Start, span.End)
		default:
			rep.add(CheckYears, s.Name, StatusWarn, "%d-%d does not cover %d-%d", lo, hi, span.Start, span.End)
		}
	}
}

func checkProvinces(rep *Report, f *tables.File, opts Options) {
	if f == nil {
		return
	}
	seen := map[string]bool{}
	for _, row := range f.Rows {
		if p := f.Cell(row, "province"); p != "" {
			seen[p] = true
		}
	}
	status := StatusPass
	if len(seen) < opts.MinProvinces {
		status = StatusWarn
	}
	rep.add(CheckProvinces, tables.Combined.Name, status, "%d provinces (want >= %d)", len(seen), opts.MinProvinces)
}

func checkEnergySum(rep *Report, f *tables.File, opts Options) {
	if f == nil || len(f.Rows) == 0 {
		return
	}
	ok := 0
	for _, row := range f.Rows {
		c, okC := f.Float(row, "clean_ratio")
		fo, okF := f.Float(row, "fossil_ratio")
		if okC && okF && math.Abs(c+fo-1) < opts.SumTolerance {
			ok++
		}
	}
	rate := float64(ok) / float64(len(f.Rows))
	status := StatusPass
	if rate <= opts.SumPassRate {
		status = StatusWarn
	}
	rep.add(CheckEnergySum, tables.Energy.Name, status, "clean+fossil within %.2f of 1 in %.1f%% of rows", opts.SumTolerance, rate*100)
}

func checkZMean(rep *Report, f *tables.File, opts Options) {
	if f == nil {
		return
	}
	for _, col := range []string{"energy_index", "eco_index", "efficiency_index"} {
		sums := map[int]float64{}
		counts := map[int]int{}
		for _, row := range f.Rows {
			y, okY := f.Int(row, "year")
			v, okV := f.Float(row, col)
			if okY && okV {
				sums[y] += v
				counts[y]++
			}
		}
		var bad []int
		worst := 0.0
		for y, n := range counts {
			m := math.Abs(sums[y] / float64(n))
			worst = max(worst, m)
			if m >= opts.ZTolerance {
				bad = append(bad, y)
			}
		}
		slices.Sort(bad)
		if len(bad) > 0 {
			rep.add(CheckZMean, col, StatusFail, "per-year mean off zero in %v (max |mean| %.3f)", bad, worst)
			continue
		}
		rep.add(CheckZMean, col, StatusPass, "%d years, max |mean| %.3f", len(counts), worst)
	}
}

func checkImputed(rep *Report, f *tables.File, opts Options) {
	if f == nil {
		return
	}
	imputed := 0
	var stray []string
	for _, row := range f.Rows {
		v, ok := f.Value(row, "is_imputed").(bool)
		if !ok || !v {
			continue
		}
		imputed++
		y, _ := f.Int(row, "year")
		if !slices.Contains(opts.TargetYears, y) {
			stray = append(stray, f.Cell(row, "province")+"/"+f.Cell(row, "year"))
		}
	}
	if len(stray) > 0 {
		rep.add(CheckImputed, tables.Emission.Name, StatusFail, "imputed rows outside %v: %s", opts.TargetYears, strings.Join(stray, ", "))
		return
	}
	rep.add(CheckImputed, tables.Emission.Name, StatusPass, "%d imputed rows, all in %v", imputed, opts.TargetYears)
}

func checkClusters(rep *Report, result, summary *tables.File, opts Options) {
	if result == nil || summary == nil {
		return
	}
	summarized := map[int]bool{}
	for _, row := range summary.Rows {
		if c, ok := summary.Int(row, "cluster_type"); ok {
			summarized[c] = true
		}
	}
	var uncovered []int
	for _, row := range result.Rows {
		c, ok := result.Int(row, "cluster_type")
		if ok && !summarized[c] && !slices.Contains(uncovered, c) {
			uncovered = append(uncovered, c)
		}
	}
	slices.Sort(uncovered)
	switch {
	case len(result.Rows) == 0:
		rep.add(CheckClusters, tables.ClusterSummary.Name, StatusWarn, "no clustered provinces")
	case len(summary.Rows) != opts.K:
		rep.add(CheckClusters, tables.ClusterSummary.Name, StatusFail, "%d summary rows, want %d", len(summary.Rows), opts.K)
	case len(uncovered) > 0:
		rep.add(CheckClusters, tables.ClusterSummary.Name, StatusFail, "cluster types %v have no summary row", uncovered)
	default:
		rep.add(CheckClusters, tables.ClusterSummary.Name, StatusPass, "%d clusters over %d provinces", opts.K, len(result.Rows))
	}
}

func checkCorrSigns(rep *Report, f *tables.File, opts Options) {
	if f == nil {
		return
	}
	corr := map[[2]string]float64{}
	for _, row := range f.Rows {
		if y, ok := f.Int(row, "year"); !ok || y != opts.CorrYear {
			continue
		}
		if v, ok := f.Float(row, "correlation"); ok {
			corr[[2]string{f.Cell(row, "variable_x"), f.Cell(row, "variable_y")}] = v
		}
	}
	expect := []struct {
		x, y     string
		positive bool
	}{
		{pipeline.IndicatorClean, pipeline.IndicatorIntensity, false},
		{pipeline.IndicatorGreen, pipeline.IndicatorIntensity, false},
		{pipeline.IndicatorClean, pipeline.IndicatorGreen, true},
	}
	for _, e := range expect {
		subject := e.x + "~" + e.y
		v, ok := corr[[2]string{e.x, e.y}]
		switch {
		case !ok:
			rep.add(CheckCorrSigns, subject, StatusWarn, "no correlation for %d", opts.CorrYear)
		case (v > 0) == e.positive && v != 0:
			rep.add(CheckCorrSigns, subject, StatusPass, "r=%.2f in %d", v, opts.CorrYear)
		default:
			rep.add(CheckCorrSigns, subject, StatusWarn, "unexpected sign r=%.2f in %d", v, opts.CorrYear)
		}
	}
}

func checkForecastRange(rep *Report, f *tables.File, opts Options) {
	if f == nil {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range f.Rows {
		if v, ok := f.Float(row, "predicted_emission_per_gdp"); ok {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	switch {
	case math.IsInf(lo, 1):
		rep.add(CheckForecastRng, tables.Model.Name, StatusWarn, "no predictions")
	case lo >= opts.ForecastMin && hi <= opts.ForecastMax:
		rep.add(CheckForecastRng, tables.Model.Name, StatusPass, "%.3f-%.3f within [%g, %g]", lo, hi, opts.ForecastMin, opts.ForecastMax)
	default:
		rep.add(CheckForecastRng, tables.Model.Name, StatusWarn, "%.3f-%.3f outside [%g, %g]", lo, hi, opts.ForecastMin, opts.ForecastMax)
	}
}

// checkForecastRows compares the forecast row count with the provinces
// present in the latest trend year times horizon times scenarios.
func checkForecastRows(rep *Report, model, trend *tables.File, opts Options) {
	if model == nil || trend == nil {
		return
	}
	_, base, ok := yearBounds(trend)
	provinces := map[string]bool{}
	for _, row := range trend.Rows {
		if y, valid := trend.Int(row, "year"); ok && valid && y == base {
			provinces[trend.Cell(row, "province")] = true
		}
	}
	want := len(provinces) * opts.HorizonYears * opts.Scenarios
	if len(model.Rows) == want {
		rep.add(CheckForecastN, tables.Model.Name, StatusPass, "%d rows = %d provinces x %d years x %d scenarios",
			want, len(provinces), opts.HorizonYears, opts.Scenarios)
		return
	}
	rep.add(CheckForecastN, tables.Model.Name, StatusFail, "%d rows, want %d (%d provinces x %d years x %d scenarios)",
		len(model.Rows), want, len(provinces), opts.HorizonYears, opts.Scenarios)
}
