package pipeline

import (
	"slices"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// Indicator names as they appear in the relation table.
const (
	IndicatorClean     = "clean_ratio"
	IndicatorGreen     = "green_rate"
	IndicatorIntensity = "emission_per_gdp"
)

// Indicators lists the correlated variables in matrix order.
var Indicators = []string{IndicatorClean, IndicatorGreen, IndicatorIntensity}

func indicatorValue(c model.CombinedRecord, name string) stats.Value {
	switch name {
	case IndicatorClean:
		return c.CleanRatio
	case IndicatorGreen:
		return c.GreenRate
	default:
		return c.EmissionPerGDP
	}
}

// Correlate computes, per year, the Pearson correlation of every ordered
// pair of indicators over pairwise-complete rows, self-pairs included. A year
// with fewer than two rows complete on all indicators is omitted. Inside an
// emitted year an undefined pair is null, and a self-pair is 1 when the
// indicator varies.
func Correlate(combined []model.CombinedRecord) []model.RelationRecord {
	byYear := map[int][]model.CombinedRecord{}
	for _, c := range combined {
		byYear[c.Year] = append(byYear[c.Year], c)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	var out []model.RelationRecord
	for _, y := range years {
		group := byYear[y]
		complete := 0
		cols := make(map[string][]stats.Value, len(Indicators))
		for _, c := range group {
			ok := true
			for _, name := range Indicators {
				v := indicatorValue(c, name)
				cols[name] = append(cols[name], v)
				ok = ok && v.Valid()
			}
			if ok {
				complete++
			}
		}
		if complete < 2 {
			continue
		}
		for _, x := range Indicators {
			for _, yv := range Indicators {
				var r stats.Value
				if x == yv {
					if sd, ok := stats.PopStd(cols[x]).Float64(); ok && sd > 0 && stats.Count(cols[x]) >= 2 {
						r = stats.Of(1)
					}
				} else {
					r = stats.Pearson(cols[x], cols[yv])
				}
				out = append(out, model.RelationRecord{Year: y, VariableX: x, VariableY: yv, Correlation: r})
			}
		}
	}
	return out
}
