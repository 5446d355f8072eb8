package api

import "github.com/lowcarbon-viz/lowcarbon/internal/tables"

// Route binds a GET path to a persisted table. Columns projects the
// response; nil returns every column of the file.
type Route struct {
	Path    string
	Schema  tables.Schema
	Columns []string
}

// Routes lists the read endpoints.
var Routes = []Route{
	{Path: "/api/emission", Schema: tables.Emission,
		Columns: []string{"province", "year", "emission_total", "emission_per_gdp", "is_imputed"}},
	{Path: "/api/energy", Schema: tables.Energy, Columns: []string{"province", "year", "clean_ratio"}},
	{Path: "/api/green", Schema: tables.Green, Columns: []string{"province", "year", "green_rate"}},
	{Path: "/api/province", Schema: tables.Combined},
	{Path: "/api/synergy", Schema: tables.Synergy},
	{Path: "/api/standardized", Schema: tables.Standardized,
		Columns: []string{"province", "year", "energy_index", "eco_index", "efficiency_index"}},
	{Path: "/api/relation", Schema: tables.Relation, Columns: []string{"year", "variable_x", "variable_y", "correlation"}},
	{Path: "/api/cluster", Schema: tables.Cluster},
	{Path: "/api/cluster/summary", Schema: tables.ClusterSummary},
	{Path: "/api/policy", Schema: tables.Policy, Columns: []string{"province", "year", "policy_name", "category", "level"}},
	{Path: "/api/temporal/trend", Schema: tables.Trend},
	{Path: "/api/temporal/delta", Schema: tables.Delta},
	{Path: "/api/model", Schema: tables.Model},
}
