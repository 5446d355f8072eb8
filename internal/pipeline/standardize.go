package pipeline

import (
	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// Weights weights the indices in the synergy score.
type Weights struct {
	Energy     float64
	Eco        float64
	Efficiency float64
}

// DefaultWeights are 0.4 energy, 0.3 eco, 0.3 efficiency.
var DefaultWeights = Weights{Energy: 0.4, Eco: 0.3, Efficiency: 0.3}

// Synergy combines the three indices. Any null index makes the score null.
func (w Weights) Synergy(energy, eco, efficiency stats.Value) stats.Value {
	return energy.Scale(w.Energy).
		Add(eco.Scale(w.Eco)).
		Add(efficiency.Scale(w.Efficiency))
}

// Standardize z-scores clean_ratio, green_rate and emission_per_gdp within
// each year. efficiency_index is the negated emission z-score so that larger
// is better for every index. A year with fewer than two values, or no
// spread, for an indicator yields null for that index. Output order follows
// combined.
func Standardize(combined []model.CombinedRecord, w Weights) []model.StandardizedRecord {
	byYear := map[int][]int{}
	for i, c := range combined {
		byYear[c.Year] = append(byYear[c.Year], i)
	}

	out := make([]model.StandardizedRecord, len(combined))
	for _, idx := range byYear {
		clean := make([]stats.Value, len(idx))
		green := make([]stats.Value, len(idx))
		intensity := make([]stats.Value, len(idx))
		for j, i := range idx {
			clean[j] = combined[i].CleanRatio
			green[j] = combined[i].GreenRate
			intensity[j] = combined[i].EmissionPerGDP
		}
		zc, zg, ze := stats.ZScores(clean), stats.ZScores(green), stats.ZScores(intensity)
		for j, i := range idx {
			r := model.StandardizedRecord{
				Key:             combined[i].Key,
				EnergyIndex:     zc[j],
				EcoIndex:        zg[j],
				EfficiencyIndex: ze[j].Neg(),
			}
			r.SynergyScore = w.Synergy(r.EnergyIndex, r.EcoIndex, r.EfficiencyIndex)
			out[i] = r
		}
	}
	return out
}
