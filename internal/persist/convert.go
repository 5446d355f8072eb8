package persist

import (
	"github.com/lowcarbon-viz/lowcarbon/internal/pipeline"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// Tables converts a batch result into rows for every registered table, in
// tables.All order.
func Tables(res *pipeline.Result) []tables.Data {
	out := make([]tables.Data, 0, len(tables.All))
	add := func(s tables.Schema, rows []tables.Row) {
		out = append(out, tables.Data{Schema: s, Rows: rows})
	}

	rows := make([]tables.Row, len(res.Emission))
	for i, r := range res.Emission {
		rows[i] = tables.Row{r.Province, r.Year, r.EmissionTotal, r.EmissionPerGDP, r.PerCapitaT, r.IsImputed}
	}
	add(tables.Emission, rows)

	rows = make([]tables.Row, len(res.Energy))
	for i, r := range res.Energy {
		rows[i] = tables.Row{r.Province, r.Year, r.CleanRatio, r.FossilRatio, r.TotalConsumption}
	}
	add(tables.Energy, rows)

	rows = make([]tables.Row, len(res.Green))
	for i, r := range res.Green {
		rows[i] = tables.Row{r.Province, r.Year, r.GreenRate, r.ForestArea}
	}
	add(tables.Green, rows)

	rows = make([]tables.Row, len(res.Combined))
	for i, r := range res.Combined {
		rows[i] = tables.Row{r.Province, r.Year, r.EmissionPerGDP, r.CleanRatio, r.GreenRate}
	}
	add(tables.Combined, rows)

	rows = make([]tables.Row, len(res.Standardized))
	syn := make([]tables.Row, len(res.Standardized))
	for i, r := range res.Standardized {
		rows[i] = tables.Row{r.Province, r.Year, r.EnergyIndex, r.EcoIndex, r.EfficiencyIndex}
		syn[i] = tables.Row{r.Province, r.Year, r.SynergyScore}
	}
	add(tables.Standardized, rows)
	add(tables.Synergy, syn)

	rows = make([]tables.Row, len(res.Relation))
	for i, r := range res.Relation {
		rows[i] = tables.Row{r.Year, r.VariableX, r.VariableY, r.Correlation}
	}
	add(tables.Relation, rows)

	rows = make([]tables.Row, len(res.Trend))
	for i, r := range res.Trend {
		rows[i] = tables.Row{r.Province, r.Year, r.CleanRatio, r.GreenRate, r.EmissionPerGDP}
	}
	add(tables.Trend, rows)

	rows = make([]tables.Row, len(res.Delta))
	for i, r := range res.Delta {
		rows[i] = tables.Row{r.Province, r.Year, r.CleanRatio, r.GreenRate, r.EmissionPerGDP,
			r.DeltaEnergy, r.DeltaGreen, r.DeltaEmission}
	}
	add(tables.Delta, rows)

	rows = make([]tables.Row, len(res.Policy))
	for i, r := range res.Policy {
		rows[i] = tables.Row{r.Province, r.Year, r.PolicyName, r.Category, r.Level}
	}
	add(tables.Policy, rows)

	rows = make([]tables.Row, len(res.Cluster))
	for i, r := range res.Cluster {
		rows[i] = tables.Row{r.Province, r.EnergyIndex, r.EcoIndex, r.EfficiencyIndex, r.SynergyScore, r.ClusterType}
	}
	add(tables.Cluster, rows)

	rows = make([]tables.Row, len(res.ClusterSummary))
	for i, r := range res.ClusterSummary {
		rows[i] = tables.Row{r.ClusterType, r.MeanEnergy, r.MeanEco, r.MeanEfficiency, r.SynergyScore}
	}
	add(tables.ClusterSummary, rows)

	rows = make([]tables.Row, len(res.Forecast))
	for i, r := range res.Forecast {
		rows[i] = tables.Row{r.Province, r.Year, r.Scenario, r.CleanRatio, r.GreenRate, r.PredictedEmissionPerGDP}
	}
	add(tables.Model, rows)

	return out
}
