// Package tables defines the fixed schemas of the persisted output tables.
// The persister, the read API, the verifier and the Postgres exporter all
// resolve tables through this registry.
package tables

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// Kind is the logical type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Schema describes one output table.
type Schema struct {
	Name    string
	Dir     string // "processed" or "derived"
	File    string
	Columns []Column
	Key     []string // natural key used by the Postgres exporter
	Doc     string
}

// Path returns the CSV path of the table under outDir.
func (s Schema) Path(outDir string) string {
	return filepath.Join(outDir, s.Dir, s.File)
}

// Stem returns the file name without extension.
func (s Schema) Stem() string {
	return strings.TrimSuffix(s.File, filepath.Ext(s.File))
}

// ColumnNames returns the column names in order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row holds one record as cells aligned with Schema.Columns. Cells are
// string, int, stats.Value or bool according to the column kind.
type Row []any

// Data is a schema together with its rows.
type Data struct {
	Schema Schema
	Rows   []Row
}

// FormatCell renders a cell for CSV output. Nulls are empty, floats use the
// shortest round-tripping form, bools are 0/1.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case stats.Value:
		return x.String()
	case float64:
		return stats.Of(x).String()
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// ParseCell converts a CSV cell back to a typed value: string, int, float64
// or bool. Empty or unparsable numeric cells become nil.
func ParseCell(k Kind, s string) any {
	s = strings.TrimSpace(s)
	switch k {
	case Int:
		if y, ok := stats.ParseYear(s); ok {
			return y
		}
		return nil
	case Float:
		if v, ok := stats.Parse(s).Float64(); ok {
			return v
		}
		return nil
	case Bool:
		switch strings.ToLower(s) {
		case "1", "true", "t", "yes":
			return true
		case "0", "false", "f", "no":
			return false
		}
		return nil
	default:
		return s
	}
}

var (
	Emission = Schema{
		Name: "emission", Dir: "processed", File: "province_emission.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"emission_total", Float},
			{"emission_per_gdp", Float}, {"per_capita_t", Float}, {"is_imputed", Bool},
		},
		Key: []string{"province", "year"},
		Doc: "Provincial CO2 emissions with GDP and population ratios; is_imputed marks extrapolated rows",
	}
	Energy = Schema{
		Name: "energy", Dir: "processed", File: "province_energy.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"clean_ratio", Float},
			{"fossil_ratio", Float}, {"total_energy_consumption", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Energy mix: clean share clipped to [0,1] and its fossil complement",
	}
	Green = Schema{
		Name: "green", Dir: "processed", File: "province_green.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"green_rate", Float}, {"forest_area", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Green coverage rate and forest area",
	}
	Combined = Schema{
		Name: "combined", Dir: "processed", File: "province_combined.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"emission_per_gdp", Float},
			{"clean_ratio", Float}, {"green_rate", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Joined indicators inside the analysis window",
	}
	Standardized = Schema{
		Name: "standardized", Dir: "derived", File: "province_standardized.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"energy_index", Float},
			{"eco_index", Float}, {"efficiency_index", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Per-year z-score indices; efficiency is sign-flipped so larger is better",
	}
	Synergy = Schema{
		Name: "synergy", Dir: "derived", File: "province_synergy_index.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"synergy_score", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Weighted composite of the three standardized indices",
	}
	Relation = Schema{
		Name: "relation", Dir: "derived", File: "province_relation.csv",
		Columns: []Column{
			{"year", Int}, {"variable_x", String}, {"variable_y", String}, {"correlation", Float},
		},
		Key: []string{"year", "variable_x", "variable_y"},
		Doc: "Per-year Pearson correlations among indicators, both orderings and self-pairs",
	}
	Trend = Schema{
		Name: "trend", Dir: "derived", File: "province_trend.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"clean_ratio", Float},
			{"green_rate", Float}, {"emission_per_gdp", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Indicator time series per province before gap filling",
	}
	Delta = Schema{
		Name: "delta", Dir: "derived", File: "province_delta.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"clean_ratio", Float},
			{"green_rate", Float}, {"emission_per_gdp", Float},
			{"Δenergy", Float}, {"Δgreen", Float}, {"Δemission", Float},
		},
		Key: []string{"province", "year"},
		Doc: "Trend rows with year-over-year differences",
	}
	Policy = Schema{
		Name: "policy", Dir: "derived", File: "policy_timeline.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"policy_name", String},
			{"category", String}, {"level", String},
		},
		Key: []string{"province", "year", "policy_name", "category", "level"},
		Doc: "Deduplicated policy events",
	}
	Cluster = Schema{
		Name: "cluster", Dir: "derived", File: "cluster_result.csv",
		Columns: []Column{
			{"province", String}, {"energy_index", Float}, {"eco_index", Float},
			{"efficiency_index", Float}, {"synergy_score", Float}, {"cluster_type", Int},
		},
		Key: []string{"province"},
		Doc: "Cluster assignment for the latest complete year",
	}
	ClusterSummary = Schema{
		Name: "cluster_summary", Dir: "derived", File: "cluster_summary.csv",
		Columns: []Column{
			{"cluster_type", Int}, {"mean_energy", Float}, {"mean_eco", Float},
			{"mean_efficiency", Float}, {"synergy_score", Float},
		},
		Key: []string{"cluster_type"},
		Doc: "Mean index profile per cluster",
	}
	Model = Schema{
		Name: "model", Dir: "derived", File: "model_output.csv",
		Columns: []Column{
			{"province", String}, {"year", Int}, {"scenario_name", String},
			{"clean_ratio", Float}, {"green_rate", Float}, {"predicted_emission_per_gdp", Float},
		},
		Key: []string{"province", "year", "scenario_name"},
		Doc: "Scenario forecasts of emission intensity",
	}
)

// All lists every output table in write order.
var All = []Schema{
	Emission, Energy, Green, Combined,
	Standardized, Synergy, Relation, Trend, Delta, Policy,
	Cluster, ClusterSummary, Model,
}

// ErrUnknown is returned by Lookup for an unregistered table name.
var ErrUnknown = eris.New("tables: unknown table")

// Lookup finds a schema by name.
func Lookup(name string) (Schema, error) {
	for _, s := range All {
		if s.Name == name {
			return s, nil
		}
	}
	return Schema{}, eris.Wrapf(ErrUnknown, "%q", name)
}
