// Package model defines the province-year records passed between pipeline
// stages. Nullable numerics use stats.Value.
package model

import (
	"cmp"

	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// Key identifies a province-year. It is the join key across all tables.
type Key struct {
	Province string `json:"province"`
	Year     int    `json:"year"`
}

// Compare orders keys by province, then year.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Province, o.Province); c != 0 {
		return c
	}
	return cmp.Compare(k.Year, o.Year)
}

// EmissionRaw is one row of the raw emission table, observed or imputed.
type EmissionRaw struct {
	Key
	EmissionTotal stats.Value `json:"emission_total_mt"`
	IsImputed     bool        `json:"is_imputed"`
}

// EnergyRaw is one row of the raw energy table.
type EnergyRaw struct {
	Key
	TotalConsumption stats.Value `json:"total_energy_consumption_std_coal_mt"`
	CleanRatio       stats.Value `json:"clean_ratio"`
}

// GreenRaw is one row of the raw green coverage table.
type GreenRaw struct {
	Key
	GreenRate  stats.Value `json:"green_rate"`
	ForestArea stats.Value `json:"forest_area_km2"`
}

// GDPRaw is one row of the raw GDP table.
type GDPRaw struct {
	Key
	GDP stats.Value `json:"gdp_billion_cny"`
}

// PopulationRaw is one row of the raw population table.
type PopulationRaw struct {
	Key
	Population stats.Value `json:"population_million"`
}

// PolicyEvent is a passthrough policy timeline entry.
type PolicyEvent struct {
	Key
	PolicyName string `json:"policy_name"`
	Category   string `json:"category"`
	Level      string `json:"level"`
}

// RawSet is the normalized content of every raw input table.
type RawSet struct {
	Emission   []EmissionRaw
	Energy     []EnergyRaw
	Green      []GreenRaw
	GDP        []GDPRaw
	Population []PopulationRaw
	Policy     []PolicyEvent
}

// EmissionRecord is an emission row enriched with GDP and population ratios.
type EmissionRecord struct {
	Key
	EmissionTotal  stats.Value `json:"emission_total"`
	EmissionPerGDP stats.Value `json:"emission_per_gdp"`
	PerCapitaT     stats.Value `json:"per_capita_t"`
	IsImputed      bool        `json:"is_imputed"`
}

// EnergyRecord holds the clipped clean share and its fossil complement.
type EnergyRecord struct {
	Key
	CleanRatio       stats.Value `json:"clean_ratio"`
	FossilRatio      stats.Value `json:"fossil_ratio"`
	TotalConsumption stats.Value `json:"total_energy_consumption"`
}

// GreenRecord is a cleaned green coverage row.
type GreenRecord struct {
	Key
	GreenRate  stats.Value `json:"green_rate"`
	ForestArea stats.Value `json:"forest_area"`
}

// CombinedRecord is the joined indicator row inside the analysis window.
type CombinedRecord struct {
	Key
	EmissionPerGDP stats.Value `json:"emission_per_gdp"`
	CleanRatio     stats.Value `json:"clean_ratio"`
	GreenRate      stats.Value `json:"green_rate"`
}

// StandardizedRecord holds per-year z-score indices. Larger is better for
// every index.
type StandardizedRecord struct {
	Key
	EnergyIndex     stats.Value `json:"energy_index"`
	EcoIndex        stats.Value `json:"eco_index"`
	EfficiencyIndex stats.Value `json:"efficiency_index"`
	SynergyScore    stats.Value `json:"synergy_score"`
}

// Complete reports whether all three indices are defined.
func (r StandardizedRecord) Complete() bool {
	return r.EnergyIndex.Valid() && r.EcoIndex.Valid() && r.EfficiencyIndex.Valid()
}

// RelationRecord is one cell of a per-year correlation matrix.
type RelationRecord struct {
	Year        int         `json:"year"`
	VariableX   string      `json:"variable_x"`
	VariableY   string      `json:"variable_y"`
	Correlation stats.Value `json:"correlation"`
}

// TrendRecord is a combined row as used by the forecaster, before gap
// filling.
type TrendRecord struct {
	Key
	CleanRatio     stats.Value `json:"clean_ratio"`
	GreenRate      stats.Value `json:"green_rate"`
	EmissionPerGDP stats.Value `json:"emission_per_gdp"`
}

// DeltaRecord adds year-over-year differences to a trend row.
type DeltaRecord struct {
	TrendRecord
	DeltaEnergy   stats.Value `json:"Δenergy"`
	DeltaGreen    stats.Value `json:"Δgreen"`
	DeltaEmission stats.Value `json:"Δemission"`
}

// ClusterRecord assigns a province to a cluster for the latest year.
type ClusterRecord struct {
	Province        string      `json:"province"`
	Year            int         `json:"-"`
	EnergyIndex     stats.Value `json:"energy_index"`
	EcoIndex        stats.Value `json:"eco_index"`
	EfficiencyIndex stats.Value `json:"efficiency_index"`
	SynergyScore    stats.Value `json:"synergy_score"`
	ClusterType     int         `json:"cluster_type"`
}

// ClusterSummaryRecord is the mean index profile of one cluster.
type ClusterSummaryRecord struct {
	ClusterType    int         `json:"cluster_type"`
	MeanEnergy     stats.Value `json:"mean_energy"`
	MeanEco        stats.Value `json:"mean_eco"`
	MeanEfficiency stats.Value `json:"mean_efficiency"`
	SynergyScore   stats.Value `json:"synergy_score"`
}

// ForecastRecord is one scenario projection for a province-year.
type ForecastRecord struct {
	Key
	Scenario                string  `json:"scenario_name"`
	CleanRatio              float64 `json:"clean_ratio"`
	GreenRate               float64 `json:"green_rate"`
	PredictedEmissionPerGDP float64 `json:"predicted_emission_per_gdp"`
}
