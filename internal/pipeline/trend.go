package pipeline

import (
	"github.com/lowcarbon-viz/lowcarbon/internal/model"
)

// Trend projects the combined table onto the indicator time series, sorted
// by province and year.
func Trend(combined []model.CombinedRecord) []model.TrendRecord {
	out := make([]model.TrendRecord, len(combined))
	for i, c := range combined {
		out[i] = model.TrendRecord{
			Key:            c.Key,
			CleanRatio:     c.CleanRatio,
			GreenRate:      c.GreenRate,
			EmissionPerGDP: c.EmissionPerGDP,
		}
	}
	return out
}

// Delta computes year-over-year differences against the previous row of the
// same province. trend must be sorted by province and year. The first row of
// each province has null deltas.
func Delta(trend []model.TrendRecord) []model.DeltaRecord {
	out := make([]model.DeltaRecord, len(trend))
	for i, t := range trend {
		out[i] = model.DeltaRecord{TrendRecord: t}
		if i == 0 || trend[i-1].Province != t.Province {
			continue
		}
		prev := trend[i-1]
		out[i].DeltaEnergy = t.CleanRatio.Sub(prev.CleanRatio)
		out[i].DeltaGreen = t.GreenRate.Sub(prev.GreenRate)
		out[i].DeltaEmission = t.EmissionPerGDP.Sub(prev.EmissionPerGDP)
	}
	return out
}

// PolicyTimeline removes exact duplicate events, keeping the first
// occurrence in input order.
func PolicyTimeline(events []model.PolicyEvent) []model.PolicyEvent {
	seen := make(map[model.PolicyEvent]bool, len(events))
	out := make([]model.PolicyEvent, 0, len(events))
	for _, e := range events {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
