package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// fixtureProvinces have full emission history through 2019.
var fixtureProvinces = []string{"北京", "天津", "河北", "山西", "上海", "江苏"}

// rawNames are the spellings written to fixture files.
var rawNames = map[string]string{
	"北京": "北京市",
	"天津": "天津市",
	"河北": "河北省",
	"山西": "山西省",
	"上海": "上海市",
	"江苏": "江苏省",
	"西藏": "西藏自治区",
}

const shortHistory = "西藏"

func fixtureClean(pi, y int) float64 { return 0.23 + 0.01*float64(y-2003) + 0.02*float64(pi) }
func fixtureGreen(pi, y int) float64 {
	return 0.26 + 0.01*float64(y-2003) + 0.015*float64(pi) + 0.004*float64((y+pi)%3)
}
func fixtureTotal(pi, y int) float64 { return 50 + 10*float64(pi) + 2*float64(y-2003) }

func fixtureEmission(pi, y int) float64 {
	d := fixtureTotal(pi, y) * (1 - fixtureClean(pi, y))
	return 0.8*d + 5 + 0.3*float64((y*7+pi*3)%5-2)
}

// fixtureRaw builds six provinces with emissions observed 2003-2019 and one
// province with only five observed years.
func fixtureRaw() model.RawSet {
	var raw model.RawSet
	all := append(append([]string{}, fixtureProvinces...), shortHistory)
	for pi, p := range all {
		for y := 2003; y <= 2022; y++ {
			k := model.Key{Province: p, Year: y}
			raw.Energy = append(raw.Energy, model.EnergyRaw{
				Key:              k,
				TotalConsumption: stats.Of(fixtureTotal(pi, y)),
				CleanRatio:       stats.Of(fixtureClean(pi, y)),
			})
			raw.GDP = append(raw.GDP, model.GDPRaw{Key: k, GDP: stats.Of(100 + 20*float64(pi) + 15*float64(y-2003))})
			raw.Population = append(raw.Population, model.PopulationRaw{Key: k, Population: stats.Of(10 + float64(pi))})

			observed := y <= 2019
			if p == shortHistory {
				observed = y >= 2010 && y <= 2014
			}
			if observed {
				raw.Emission = append(raw.Emission, model.EmissionRaw{Key: k, EmissionTotal: stats.Of(fixtureEmission(pi, y))})
			}
		}
		for y := 2005; y <= 2023; y++ {
			raw.Green = append(raw.Green, model.GreenRaw{
				Key:        model.Key{Province: p, Year: y},
				GreenRate:  stats.Of(fixtureGreen(pi, y)),
				ForestArea: stats.Of(1000 * float64(pi+1)),
			})
		}
	}
	raw.Policy = []model.PolicyEvent{
		{Key: model.Key{Province: "北京", Year: 2013}, PolicyName: "大气污染防治行动计划", Category: "air", Level: "national"},
		{Key: model.Key{Province: "北京", Year: 2013}, PolicyName: "大气污染防治行动计划", Category: "air", Level: "national"},
		{Key: model.Key{Province: "上海", Year: 2017}, PolicyName: "碳排放权交易", Category: "carbon", Level: "provincial"},
	}
	return raw
}

// writeFixtureFiles writes fixtureRaw as raw CSV files using unnormalized
// province spellings and a UTF-8 BOM.
func writeFixtureFiles(t *testing.T, dir string, withPolicy bool) {
	t.Helper()
	raw := fixtureRaw()

	write := func(name string, header string, lines []string) {
		content := "\ufeff" + header + "\n" + strings.Join(lines, "\n") + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0o644))
	}

	var lines []string
	for _, r := range raw.Emission {
		lines = append(lines, fmt.Sprintf("%s,%d,%s", rawNames[r.Province], r.Year, r.EmissionTotal))
	}
	write(RawEmission, "province,year,emission_total_mt", lines)

	lines = nil
	for _, r := range raw.Energy {
		lines = append(lines, fmt.Sprintf("%s,%d,%s,%s", rawNames[r.Province], r.Year, r.TotalConsumption, r.CleanRatio))
	}
	write(RawEnergy, "province,year,total_energy_consumption_std_coal_mt,clean_ratio", lines)

	lines = nil
	for _, r := range raw.Green {
		lines = append(lines, fmt.Sprintf("%s,%d,%s,%s", rawNames[r.Province], r.Year, r.GreenRate, r.ForestArea))
	}
	write(RawGreen, "province,year,green_rate,forest_area_km2", lines)

	lines = nil
	for _, r := range raw.GDP {
		lines = append(lines, fmt.Sprintf("%s,%d,%s", rawNames[r.Province], r.Year, r.GDP))
	}
	write(RawGDP, "province,year,gdp_billion_cny", lines)

	lines = nil
	for _, r := range raw.Population {
		lines = append(lines, fmt.Sprintf("%s,%d,%s", rawNames[r.Province], r.Year, r.Population))
	}
	write(RawPopulation, "province,year,population_million", lines)

	if withPolicy {
		lines = nil
		for _, e := range raw.Policy {
			lines = append(lines, fmt.Sprintf("%s,%d,%s,%s,%s", rawNames[e.Province], e.Year, e.PolicyName, e.Category, e.Level))
		}
		write(RawPolicy, "province,year,policy_name,category,level", lines)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = 3
	return cfg
}

func findForecast(rows []model.ForecastRecord, province string, year int, scenario string) (model.ForecastRecord, bool) {
	for _, r := range rows {
		if r.Province == province && r.Year == year && r.Scenario == scenario {
			return r, true
		}
	}
	return model.ForecastRecord{}, false
}
