package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
)

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)

	raw, diags, err := Loader{Dir: dir}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diags)

	want := fixtureRaw()
	assert.Equal(t, want.Emission, raw.Emission)
	assert.Equal(t, want.Energy, raw.Energy)
	assert.Equal(t, want.Green, raw.Green)
	assert.Equal(t, want.GDP, raw.GDP)
	assert.Equal(t, want.Population, raw.Population)
	assert.Equal(t, want.Policy, raw.Policy)
}

func TestLoader_OptionalPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, false)

	raw, diags, err := Loader{Dir: dir}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raw.Policy)
	require.Len(t, diags, 1)
	assert.Equal(t, model.OutcomeWarning, diags[0].Outcome)
	assert.Contains(t, diags[0].Reason, "policy_events")
}

func TestLoader_MissingRequired(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)
	require.NoError(t, os.Remove(filepath.Join(dir, RawGDP+".csv")))

	_, _, err := Loader{Dir: dir}.Load(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingInput))
	assert.Contains(t, err.Error(), RawGDP)
}

func TestLoader_MissingKeyColumn(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, RawPopulation+".csv"), []byte("province,population_million\n北京,21\n"), 0o644))

	_, _, err := Loader{Dir: dir}.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `population_raw has no "year" column`)
}

func TestLoader_DirtyRows(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)
	gdp := "province,year,gdp_billion_cny\n" +
		"　北京市 ,2020.0,NA\n" + // full-width space, float year, null token
		"北京,2020,999\n" + // duplicate key after normalization
		"天津市,二〇二〇,100\n" + // unparsable year
		",2020,1\n" + // empty province
		"天津,2021,abc\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, RawGDP+".csv"), []byte(gdp), 0o644))

	raw, diags, err := Loader{Dir: dir}.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, raw.GDP, 2)
	assert.Equal(t, model.Key{Province: "北京", Year: 2020}, raw.GDP[0].Key)
	assert.False(t, raw.GDP[0].GDP.Valid(), "first occurrence wins and NA is null")
	assert.Equal(t, model.Key{Province: "天津", Year: 2021}, raw.GDP[1].Key)
	assert.False(t, raw.GDP[1].GDP.Valid())

	var reasons []string
	for _, d := range diags {
		reasons = append(reasons, d.Reason)
	}
	assert.Contains(t, reasons, "gdp_raw: dropped 1 rows with empty province")
	assert.Contains(t, reasons, "gdp_raw: dropped 1 rows with unparsable year")
	assert.Contains(t, reasons, "gdp_raw: dropped 1 duplicate province-year rows")
}

func TestLoader_MissingValueColumn(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, RawGreen+".csv"), []byte("province,year,green_rate\n北京,2020,0.4\n"), 0o644))

	raw, diags, err := Loader{Dir: dir}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, raw.Green, 1)
	assert.False(t, raw.Green[0].ForestArea.Valid())
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Reason, `column "forest_area_km2" missing`)
}

func TestPipeline_LoadWithAliasFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFiles(t, dir, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, RawPolicy+".csv"),
		[]byte("province,year,policy_name,category,level\n京,2013,清洁空气,air,local\n"), 0o644))
	aliases := filepath.Join(dir, "aliases.yaml")
	require.NoError(t, os.WriteFile(aliases, []byte("aliases:\n  京: 北京\n"), 0o644))

	cfg := testConfig()
	cfg.Data.RawDir = dir
	cfg.Province.AliasFile = aliases

	raw, _, err := New(cfg).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, raw.Policy, 1)
	assert.Equal(t, "北京", raw.Policy[0].Province)
}
