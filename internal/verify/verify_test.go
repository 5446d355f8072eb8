package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

func goodTree() map[string][]string {
	return map[string][]string{
		"emission": {
			"province,year,emission_total,emission_per_gdp,per_capita_t,is_imputed",
			"甲,2021,10,0.3,,0", "甲,2022,9,0.25,,1",
			"乙,2021,20,0.4,,0", "乙,2022,18,0.35,,1",
		},
		"energy": {
			"province,year,clean_ratio,fossil_ratio,total_energy_consumption",
			"甲,2021,0.4,0.6,", "甲,2022,0.5,0.5,",
			"乙,2021,0.2,0.8,", "乙,2022,0.3,0.7,",
		},
		"green": {
			"province,year,green_rate,forest_area",
			"甲,2021,0.4,", "甲,2022,0.42,", "乙,2021,0.3,", "乙,2022,0.31,",
		},
		"combined": {
			"province,year,emission_per_gdp,clean_ratio,green_rate",
			"甲,2021,0.3,0.4,0.4", "甲,2022,0.25,0.5,0.42",
			"乙,2021,0.4,0.2,0.3", "乙,2022,0.35,0.3,0.31",
		},
		"standardized": {
			"province,year,energy_index,eco_index,efficiency_index",
			"甲,2021,1,1,1", "甲,2022,1,1,1", "乙,2021,-1,-1,-1", "乙,2022,-1,-1,-1",
		},
		"synergy": {
			"province,year,synergy_score",
			"甲,2021,1", "甲,2022,1", "乙,2021,-1", "乙,2022,-1",
		},
		"relation": {
			"year,variable_x,variable_y,correlation",
			"2022,clean_ratio,green_rate,1",
			"2022,clean_ratio,emission_per_gdp,-1",
			"2022,green_rate,emission_per_gdp,-1",
		},
		"trend": {
			"province,year,clean_ratio,green_rate,emission_per_gdp",
			"甲,2021,0.4,0.4,0.3", "甲,2022,0.5,0.42,0.25",
			"乙,2021,0.2,0.3,0.4", "乙,2022,0.3,0.31,0.35",
		},
		"delta": {
			"province,year,clean_ratio,green_rate,emission_per_gdp,Δenergy,Δgreen,Δemission",
			"甲,2021,0.4,0.4,0.3,,,", "甲,2022,0.5,0.42,0.25,0.1,0.02,-0.05",
		},
		"policy": {
			"province,year,policy_name,category,level",
			"甲,2021,碳达峰行动方案,低碳,省级",
		},
		"cluster": {
			"province,energy_index,eco_index,efficiency_index,synergy_score,cluster_type",
			"甲,1,1,1,1,0", "乙,-1,-1,-1,-1,1",
		},
		"cluster_summary": {
			"cluster_type,mean_energy,mean_eco,mean_efficiency,synergy_score",
			"0,1,1,1,1", "1,-1,-1,-1,-1",
		},
		"model": {
			"province,year,scenario_name,clean_ratio,green_rate,predicted_emission_per_gdp",
			"甲,2023,baseline,0.5,0.42,0.24", "甲,2024,baseline,0.5,0.42,0.24",
			"乙,2023,baseline,0.3,0.31,0.34", "乙,2024,baseline,0.3,0.31,0.34",
		},
	}
}

func writeTree(t *testing.T, tree map[string][]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, lines := range tree {
		s, err := tables.Lookup(name)
		require.NoError(t, err)
		path := s.Path(dir)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("\ufeff"+strings.Join(lines, "\n")+"\n"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "meta"), 0o755))
	for _, f := range []string{"data_sources.json", "variable_dict.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "meta", f), []byte("{}\n"), 0o644))
	}
	return dir
}

func testOptions(dir string) Options {
	return Options{
		OutDir:      dir,
		TargetYears: []int{2022},
		Coverage: map[string]YearSpan{
			"emission": {2021, 2022},
			"combined": {2021, 2022},
		},
		MinProvinces: 2,
		K:            2,
		CorrYear:     2022,
		HorizonYears: 2,
		Scenarios:    1,
		ForecastMin:  0.02,
		ForecastMax:  0.5,
		SumTolerance: 0.01,
		SumPassRate:  0.95,
		ZTolerance:   0.05,
	}
}

func statusOf(t *testing.T, rep *Report, check, subject string) Status {
	t.Helper()
	for _, f := range rep.Lookup(check) {
		if f.Subject == subject {
			return f.Status
		}
	}
	t.Fatalf("no %s finding for %s", check, subject)
	return ""
}

func TestRun_ConsistentTree(t *testing.T) {
	dir := writeTree(t, goodTree())
	rep, err := Run(context.Background(), testOptions(dir))
	require.NoError(t, err)

	assert.False(t, rep.Failed(), rep.String())
	assert.Zero(t, rep.Count(StatusWarn), rep.String())
	assert.Len(t, rep.Lookup(CheckExists), len(tables.All)+2)
	for _, check := range []string{CheckYears, CheckProvinces, CheckEnergySum, CheckZMean, CheckImputed,
		CheckClusters, CheckCorrSigns, CheckForecastRng, CheckForecastN} {
		assert.NotEmpty(t, rep.Lookup(check), check)
	}
	assert.Len(t, rep.Lookup(CheckCorrSigns), 3)
	assert.Len(t, rep.Lookup(CheckZMean), 3)
}

func TestRun_EmptyDir(t *testing.T) {
	rep, err := Run(context.Background(), testOptions(t.TempDir()))
	require.NoError(t, err, "inconsistency never fails the run")
	assert.Equal(t, len(tables.All)+2, rep.Count(StatusFail))
	assert.Len(t, rep.Findings, len(tables.All)+2, "content checks are skipped for absent tables")
}

func TestRun_MissingColumns(t *testing.T) {
	tree := goodTree()
	tree["cluster_summary"] = []string{"cluster_type,mean_energy", "0,1", "1,-1"}
	rep, err := Run(context.Background(), testOptions(writeTree(t, tree)))
	require.NoError(t, err)

	assert.Equal(t, StatusFail, statusOf(t, rep, CheckExists, "cluster_summary"))
	assert.Empty(t, rep.Lookup(CheckClusters))
}

func TestRun_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tree map[string][]string)
		check   string
		subject string
		want    Status
	}{
		{
			name: "imputed outside target years",
			mutate: func(tree map[string][]string) {
				tree["emission"][1] = "甲,2021,10,0.3,,1"
			},
			check: CheckImputed, subject: "emission", want: StatusFail,
		},
		{
			name: "year coverage short",
			mutate: func(tree map[string][]string) {
				tree["combined"] = tree["combined"][:1:1]
				tree["combined"] = append(tree["combined"], "甲,2022,0.25,0.5,0.42")
			},
			check: CheckYears, subject: "combined", want: StatusWarn,
		},
		{
			name: "energy shares do not sum to one",
			mutate: func(tree map[string][]string) {
				tree["energy"][1] = "甲,2021,0.4,0.4,"
			},
			check: CheckEnergySum, subject: "energy", want: StatusWarn,
		},
		{
			name: "z-score mean drifts",
			mutate: func(tree map[string][]string) {
				tree["standardized"][3] = "乙,2021,-1,-0.5,-1"
			},
			check: CheckZMean, subject: "eco_index", want: StatusFail,
		},
		{
			name: "too few provinces",
			mutate: func(tree map[string][]string) {
				tree["combined"] = tree["combined"][:3]
			},
			check: CheckProvinces, subject: "combined", want: StatusWarn,
		},
		{
			name: "summary row count differs from k",
			mutate: func(tree map[string][]string) {
				tree["cluster_summary"] = tree["cluster_summary"][:2]
			},
			check: CheckClusters, subject: "cluster_summary", want: StatusFail,
		},
		{
			name: "unexpected correlation sign",
			mutate: func(tree map[string][]string) {
				tree["relation"][2] = "2022,clean_ratio,emission_per_gdp,0.3"
			},
			check: CheckCorrSigns, subject: "clean_ratio~emission_per_gdp", want: StatusWarn,
		},
		{
			name: "null correlation",
			mutate: func(tree map[string][]string) {
				tree["relation"][1] = "2022,clean_ratio,green_rate,"
			},
			check: CheckCorrSigns, subject: "clean_ratio~green_rate", want: StatusWarn,
		},
		{
			name: "forecast out of range",
			mutate: func(tree map[string][]string) {
				tree["model"][1] = "甲,2023,baseline,0.5,0.42,0.9"
			},
			check: CheckForecastRng, subject: "model", want: StatusWarn,
		},
		{
			name: "forecast rows missing",
			mutate: func(tree map[string][]string) {
				tree["model"] = tree["model"][:4]
			},
			check: CheckForecastN, subject: "model", want: StatusFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := goodTree()
			tt.mutate(tree)
			rep, err := Run(context.Background(), testOptions(writeTree(t, tree)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, statusOf(t, rep, tt.check, tt.subject), rep.String())
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testOptions(writeTree(t, goodTree())))
	require.ErrorIs(t, err, context.Canceled)
}

func TestReport_Write(t *testing.T) {
	dir := writeTree(t, goodTree())
	rep, err := Run(context.Background(), testOptions(dir))
	require.NoError(t, err)

	path, err := rep.Write()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ReportFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "CHECK")
	assert.Contains(t, text, "cluster_summary")
	assert.Contains(t, text, "0 warn, 0 fail")
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	opts := FromConfig(cfg)
	assert.Equal(t, cfg.Data.OutDir, opts.OutDir)
	assert.Equal(t, 4, opts.K)
	assert.Equal(t, 8, opts.HorizonYears)
	assert.Equal(t, 3, opts.Scenarios)
	assert.Equal(t, 2022, opts.CorrYear)
	assert.Equal(t, YearSpan{2005, 2022}, opts.Coverage["combined"])
	assert.Equal(t, YearSpan{2005, 2023}, opts.Coverage["green"])
}
