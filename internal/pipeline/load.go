package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/fetcher"
	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/province"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// ErrMissingInput is returned when a required raw table is absent.
var ErrMissingInput = eris.New("pipeline: missing required input")

// Raw table base names, resolved as <name>.csv then <name>.xlsx.
const (
	RawEmission   = "emission_raw"
	RawEnergy     = "energy_raw"
	RawGreen      = "green_raw"
	RawGDP        = "gdp_raw"
	RawPopulation = "population_raw"
	RawPolicy     = "policy_events"
)

// Raw column names.
const (
	colProvince         = "province"
	colYear             = "year"
	colEmissionTotal    = "emission_total_mt"
	colTotalConsumption = "total_energy_consumption_std_coal_mt"
	colCleanRatio       = "clean_ratio"
	colGreenRate        = "green_rate"
	colForestArea       = "forest_area_km2"
	colGDP              = "gdp_billion_cny"
	colPopulation       = "population_million"
	colPolicyName       = "policy_name"
	colCategory         = "category"
	colLevel            = "level"
)

const stageLoad = "load"

// keyedRow is a raw row with its normalized province-year key.
type keyedRow struct {
	key model.Key
	row []string
}

// keyRows normalizes provinces and parses years. Rows with an empty province
// or an unparsable year are dropped; duplicate keys keep the first row.
func keyRows(name string, t *fetcher.Table, norm *province.Normalizer) ([]keyedRow, model.Diagnostics) {
	var diags model.Diagnostics
	out := make([]keyedRow, 0, t.Len())
	seen := make(map[model.Key]bool, t.Len())
	var badProvince, badYear, dup int
	for _, row := range t.Rows {
		p := norm.Normalize(t.Get(row, colProvince))
		if p == "" {
			badProvince++
			continue
		}
		y, ok := stats.ParseYear(t.Get(row, colYear))
		if !ok {
			badYear++
			continue
		}
		k := model.Key{Province: p, Year: y}
		if seen[k] {
			dup++
			continue
		}
		seen[k] = true
		out = append(out, keyedRow{key: k, row: row})
	}
	if badProvince > 0 {
		diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
			Reason: fmt.Sprintf("%s: dropped %d rows with empty province", name, badProvince)})
	}
	if badYear > 0 {
		diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
			Reason: fmt.Sprintf("%s: dropped %d rows with unparsable year", name, badYear)})
	}
	if dup > 0 {
		diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
			Reason: fmt.Sprintf("%s: dropped %d duplicate province-year rows", name, dup)})
	}
	return out, diags
}

// requireColumns checks the key columns and warns about absent value
// columns, which load as all-null.
func requireColumns(name string, t *fetcher.Table, values ...string) (model.Diagnostics, error) {
	for _, c := range []string{colProvince, colYear} {
		if !t.Has(c) {
			return nil, eris.Errorf("pipeline: %s has no %q column", name, c)
		}
	}
	var diags model.Diagnostics
	for _, c := range values {
		if !t.Has(c) {
			diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
				Reason: fmt.Sprintf("%s: column %q missing, loaded as null", name, c)})
		}
	}
	return diags, nil
}

// Loader reads and normalizes the raw input directory.
type Loader struct {
	Dir        string
	Normalizer *province.Normalizer
}

// Load reads every raw table. A missing required table is fatal; a missing
// policy table yields an empty timeline and a warning.
func (l Loader) Load(ctx context.Context) (model.RawSet, model.Diagnostics, error) {
	log := zap.L().With(zap.String("component", "pipeline.load"), zap.String("dir", l.Dir))
	norm := l.Normalizer
	if norm == nil {
		norm = province.Default()
	}

	var raw model.RawSet
	var diags model.Diagnostics

	read := func(name string, values ...string) ([]keyedRow, *fetcher.Table, error) {
		path, err := fetcher.Resolve(l.Dir, name)
		if err != nil {
			if eris.Is(err, fetcher.ErrNotFound) {
				return nil, nil, eris.Wrapf(ErrMissingInput, "%s", name)
			}
			return nil, nil, err
		}
		t, err := fetcher.ReadFile(ctx, path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "pipeline: load %s", name)
		}
		d, err := requireColumns(name, t, values...)
		if err != nil {
			return nil, nil, err
		}
		diags.Extend(d)
		rows, d := keyRows(name, t, norm)
		diags.Extend(d)
		log.Debug("pipeline: loaded raw table",
			zap.String("table", name),
			zap.String("path", path),
			zap.Int("rows", len(rows)),
		)
		return rows, t, nil
	}

	rows, t, err := read(RawEmission, colEmissionTotal)
	if err != nil {
		return raw, nil, err
	}
	for _, r := range rows {
		raw.Emission = append(raw.Emission, model.EmissionRaw{
			Key:           r.key,
			EmissionTotal: stats.Parse(t.Get(r.row, colEmissionTotal)),
		})
	}

	rows, t, err = read(RawEnergy, colTotalConsumption, colCleanRatio)
	if err != nil {
		return raw, nil, err
	}
	for _, r := range rows {
		raw.Energy = append(raw.Energy, model.EnergyRaw{
			Key:              r.key,
			TotalConsumption: stats.Parse(t.Get(r.row, colTotalConsumption)),
			CleanRatio:       stats.Parse(t.Get(r.row, colCleanRatio)),
		})
	}

	rows, t, err = read(RawGreen, colGreenRate, colForestArea)
	if err != nil {
		return raw, nil, err
	}
	for _, r := range rows {
		raw.Green = append(raw.Green, model.GreenRaw{
			Key:        r.key,
			GreenRate:  stats.Parse(t.Get(r.row, colGreenRate)),
			ForestArea: stats.Parse(t.Get(r.row, colForestArea)),
		})
	}

	rows, t, err = read(RawGDP, colGDP)
	if err != nil {
		return raw, nil, err
	}
	for _, r := range rows {
		raw.GDP = append(raw.GDP, model.GDPRaw{Key: r.key, GDP: stats.Parse(t.Get(r.row, colGDP))})
	}

	rows, t, err = read(RawPopulation, colPopulation)
	if err != nil {
		return raw, nil, err
	}
	for _, r := range rows {
		raw.Population = append(raw.Population, model.PopulationRaw{
			Key:        r.key,
			Population: stats.Parse(t.Get(r.row, colPopulation)),
		})
	}

	policy, d, err := l.loadPolicy(ctx, norm)
	if err != nil {
		return raw, nil, err
	}
	raw.Policy = policy
	diags.Extend(d)

	return raw, diags, nil
}

// loadPolicy keeps every policy row, duplicates included; deduplication
// happens when the timeline is built.
func (l Loader) loadPolicy(ctx context.Context, norm *province.Normalizer) ([]model.PolicyEvent, model.Diagnostics, error) {
	var diags model.Diagnostics
	path, err := fetcher.Resolve(l.Dir, RawPolicy)
	if err != nil {
		if eris.Is(err, fetcher.ErrNotFound) {
			diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
				Reason: RawPolicy + ": not found, policy timeline is empty"})
			return nil, diags, nil
		}
		return nil, nil, err
	}
	t, err := fetcher.ReadFile(ctx, path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: load %s", RawPolicy)
	}

	var events []model.PolicyEvent
	var badYear int
	for _, row := range t.Rows {
		ev := model.PolicyEvent{
			Key:        model.Key{Province: norm.Normalize(t.Get(row, colProvince))},
			PolicyName: t.Get(row, colPolicyName),
			Category:   t.Get(row, colCategory),
			Level:      t.Get(row, colLevel),
		}
		if t.Has(colYear) {
			y, ok := stats.ParseYear(t.Get(row, colYear))
			if !ok {
				badYear++
				continue
			}
			ev.Year = y
		}
		events = append(events, ev)
	}
	if badYear > 0 {
		diags.Add(model.Diagnostic{Stage: stageLoad, Outcome: model.OutcomeWarning,
			Reason: fmt.Sprintf("%s: dropped %d rows with unparsable year", RawPolicy, badYear)})
	}
	return events, diags, nil
}
