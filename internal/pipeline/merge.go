package pipeline

import (
	"slices"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// PerCapitaScale converts Mt per million people to tonnes per person
// (1e6 t per Mt over 1e6 people per million).
const PerCapitaScale = 1e6 / 1e6

// Window is an inclusive year range.
type Window struct {
	Start int
	End   int
}

// Contains reports whether year lies in the window.
func (w Window) Contains(year int) bool {
	return year >= w.Start && year <= w.End
}

// BuildEnergy clips the clean share to [0,1] and derives its fossil
// complement.
func BuildEnergy(raw []model.EnergyRaw) []model.EnergyRecord {
	out := make([]model.EnergyRecord, len(raw))
	for i, r := range raw {
		clean := r.CleanRatio.Clip(0, 1)
		out[i] = model.EnergyRecord{
			Key:              r.Key,
			CleanRatio:       clean,
			FossilRatio:      stats.Of(1).Sub(clean).Clip(0, 1),
			TotalConsumption: r.TotalConsumption,
		}
	}
	slices.SortFunc(out, func(a, b model.EnergyRecord) int { return a.Key.Compare(b.Key) })
	return out
}

// BuildGreen copies the green table into output records.
func BuildGreen(raw []model.GreenRaw) []model.GreenRecord {
	out := make([]model.GreenRecord, len(raw))
	for i, r := range raw {
		out[i] = model.GreenRecord{Key: r.Key, GreenRate: r.GreenRate, ForestArea: r.ForestArea}
	}
	slices.SortFunc(out, func(a, b model.GreenRecord) int { return a.Key.Compare(b.Key) })
	return out
}

// DeriveEmission left-joins emission with GDP and population and computes
// emission intensity and per-capita emissions. Every emission row is kept.
func DeriveEmission(emission []model.EmissionRaw, gdp []model.GDPRaw, pop []model.PopulationRaw) []model.EmissionRecord {
	gdpBy := make(map[model.Key]stats.Value, len(gdp))
	for _, g := range gdp {
		gdpBy[g.Key] = g.GDP
	}
	popBy := make(map[model.Key]stats.Value, len(pop))
	for _, p := range pop {
		popBy[p.Key] = p.Population
	}

	out := make([]model.EmissionRecord, len(emission))
	for i, e := range emission {
		out[i] = model.EmissionRecord{
			Key:            e.Key,
			EmissionTotal:  e.EmissionTotal,
			EmissionPerGDP: e.EmissionTotal.Div(gdpBy[e.Key]),
			PerCapitaT:     e.EmissionTotal.Div(popBy[e.Key]).Scale(PerCapitaScale),
			IsImputed:      e.IsImputed,
		}
	}
	slices.SortFunc(out, func(a, b model.EmissionRecord) int { return a.Key.Compare(b.Key) })
	return out
}

// Combine left-joins emission with energy and green and keeps the rows
// inside the window.
func Combine(emission []model.EmissionRecord, energy []model.EnergyRecord, green []model.GreenRecord, w Window) []model.CombinedRecord {
	cleanBy := make(map[model.Key]stats.Value, len(energy))
	for _, e := range energy {
		cleanBy[e.Key] = e.CleanRatio
	}
	greenBy := make(map[model.Key]stats.Value, len(green))
	for _, g := range green {
		greenBy[g.Key] = g.GreenRate
	}

	var out []model.CombinedRecord
	for _, e := range emission {
		if !w.Contains(e.Year) {
			continue
		}
		out = append(out, model.CombinedRecord{
			Key:            e.Key,
			EmissionPerGDP: e.EmissionPerGDP,
			CleanRatio:     cleanBy[e.Key],
			GreenRate:      greenBy[e.Key],
		})
	}
	slices.SortFunc(out, func(a, b model.CombinedRecord) int { return a.Key.Compare(b.Key) })
	return out
}
