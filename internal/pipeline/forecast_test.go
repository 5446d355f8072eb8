package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

func TestInterpolate(t *testing.T) {
	n := stats.Null
	tests := []struct {
		name  string
		in    []stats.Value
		limit int
		want  []stats.Value
	}{
		{
			name:  "interior gap",
			in:    []stats.Value{stats.Of(1), n, n, stats.Of(4)},
			limit: 3,
			want:  []stats.Value{stats.Of(1), stats.Of(2), stats.Of(3), stats.Of(4)},
		},
		{
			name:  "gap longer than limit",
			in:    []stats.Value{stats.Of(0), n, n, n, stats.Of(4)},
			limit: 2,
			want:  []stats.Value{stats.Of(0), stats.Of(1), stats.Of(2), n, stats.Of(4)},
		},
		{
			name:  "trailing carries last value",
			in:    []stats.Value{stats.Of(1), stats.Of(2), n, n},
			limit: 1,
			want:  []stats.Value{stats.Of(1), stats.Of(2), stats.Of(2), n},
		},
		{
			name:  "leading stays null",
			in:    []stats.Value{n, stats.Of(5), stats.Of(6)},
			limit: 3,
			want:  []stats.Value{n, stats.Of(5), stats.Of(6)},
		},
		{
			name:  "zero limit",
			in:    []stats.Value{stats.Of(1), n, stats.Of(3)},
			limit: 0,
			want:  []stats.Value{stats.Of(1), n, stats.Of(3)},
		},
		{
			name:  "all null",
			in:    []stats.Value{n, n},
			limit: 3,
			want:  []stats.Value{n, n},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.in, tt.limit))
		})
	}
}

func TestFillGaps(t *testing.T) {
	trend := []model.TrendRecord{
		{Key: k("甲", 2020), CleanRatio: stats.Of(0.2), GreenRate: stats.Of(0.5), EmissionPerGDP: stats.Of(1)},
		{Key: k("甲", 2021), CleanRatio: stats.Null, GreenRate: stats.Of(0.5), EmissionPerGDP: stats.Null},
		{Key: k("甲", 2022), CleanRatio: stats.Of(0.4), GreenRate: stats.Of(0.5), EmissionPerGDP: stats.Of(3)},
		{Key: k("乙", 2020), CleanRatio: stats.Null, GreenRate: stats.Null, EmissionPerGDP: stats.Of(2)},
		{Key: k("乙", 2021), CleanRatio: stats.Of(0.6), GreenRate: stats.Of(0.3), EmissionPerGDP: stats.Of(2)},
	}

	out := FillGaps(trend, 3)
	require.Len(t, out, 5)
	assert.InDelta(t, 0.3, out[1].CleanRatio.Or(0), 1e-12, "interpolated inside the province")
	assert.InDelta(t, 2, out[1].EmissionPerGDP.Or(0), 1e-12, "intensity uses the global mean")

	// 乙 2020 is a leading gap: global means after interpolation
	assert.InDelta(t, (0.2+0.3+0.4+0.6)/4, out[3].CleanRatio.Or(0), 1e-12)
	assert.InDelta(t, (0.5*3+0.3)/4, out[3].GreenRate.Or(0), 1e-12)

	assert.False(t, trend[1].CleanRatio.Valid(), "input must not be modified")
}

func TestForecast_Fixture(t *testing.T) {
	raw := fixtureRaw()
	cfg := testConfig()
	res, err := New(cfg).Run(t.Context(), raw)
	require.NoError(t, err)

	require.NotNil(t, res.Model)
	assert.Equal(t, 2022, res.Model.BaseYear)
	assert.Len(t, res.Forecast, len(fixtureProvinces)*8*3)

	r, ok := findForecast(res.Forecast, "北京", 2025, "clean_plus5pp")
	require.True(t, ok)
	assert.InDelta(t, 0.47, r.CleanRatio, 1e-9)
	assert.InDelta(t, 0.45, r.GreenRate, 1e-9)

	base, ok := findForecast(res.Forecast, "北京", 2025, "baseline")
	require.True(t, ok)
	assert.InDelta(t, 0.42, base.CleanRatio, 1e-9)

	g, ok := findForecast(res.Forecast, "北京", 2030, "green_plus2pp")
	require.True(t, ok)
	assert.InDelta(t, 0.44, g.CleanRatio, 1e-9)
	assert.InDelta(t, 0.47, g.GreenRate, 1e-9)

	// scenarios are constant over the horizon
	r30, _ := findForecast(res.Forecast, "北京", 2030, "clean_plus5pp")
	assert.InDelta(t, r.PredictedEmissionPerGDP, r30.PredictedEmissionPerGDP, 1e-12)

	_, ok = findForecast(res.Forecast, shortHistory, 2025, "baseline")
	assert.False(t, ok, "no base row in the latest year")

	for _, f := range res.Forecast {
		assert.GreaterOrEqual(t, f.Year, 2023)
		assert.LessOrEqual(t, f.Year, 2030)
		assert.GreaterOrEqual(t, f.CleanRatio, 0.0)
		assert.LessOrEqual(t, f.CleanRatio, 1.0)
	}
}

func TestForecast_Clips(t *testing.T) {
	var trend []model.TrendRecord
	for i, p := range []string{"甲", "乙", "丙", "丁"} {
		for y := 2019; y <= 2022; y++ {
			trend = append(trend, model.TrendRecord{
				Key:            k(p, y),
				CleanRatio:     stats.Of(0.7 + 0.1*float64(i)),
				GreenRate:      stats.Of(0.2 + 0.01*float64(y-2019) + 0.05*float64(i%2)),
				EmissionPerGDP: stats.Of(2 - float64(i)*0.3),
			})
		}
	}
	out, fm, diags, err := Forecast(context.Background(), trend, ForecastOptions{
		Horizon:     []int{2023},
		Scenarios:   []Scenario{{Name: "up", CleanDelta: 0.5}, {Name: "down", CleanDelta: -2}},
		InterpLimit: 3,
		Workers:     2,
	})
	require.NoError(t, err)
	require.NotNil(t, fm)
	assert.Empty(t, diags)
	require.Len(t, out, 8)
	for _, r := range out {
		switch r.Scenario {
		case "up":
			assert.Equal(t, 1.0, r.CleanRatio)
		case "down":
			assert.Equal(t, 0.0, r.CleanRatio)
		}
	}
	assert.Equal(t, "甲", out[0].Province)
	assert.Equal(t, "up", out[0].Scenario)
	assert.Equal(t, "down", out[1].Scenario)
}

func TestForecast_SingularModel(t *testing.T) {
	trend := []model.TrendRecord{
		{Key: k("甲", 2021), CleanRatio: stats.Of(0.3), GreenRate: stats.Of(0.4), EmissionPerGDP: stats.Of(1)},
		{Key: k("甲", 2022), CleanRatio: stats.Of(0.3), GreenRate: stats.Of(0.4), EmissionPerGDP: stats.Of(2)},
	}
	out, fm, diags, err := Forecast(context.Background(), trend, ForecastOptions{
		Horizon:   []int{2023},
		Scenarios: DefaultScenarios,
	})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, fm)
	require.Len(t, diags, 1)
	assert.Equal(t, model.OutcomeSkipped, diags[0].Outcome)
	assert.Equal(t, "forecast", diags[0].Stage)
}

func TestForecast_Empty(t *testing.T) {
	out, fm, diags, err := Forecast(context.Background(), nil, ForecastOptions{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, fm)
	require.Len(t, diags, 1)
	assert.Equal(t, model.OutcomeWarning, diags[0].Outcome)
}

func TestForecastModel_Predict(t *testing.T) {
	var trend []model.TrendRecord
	for i := range 10 {
		c := 0.1 + 0.05*float64(i)
		g := 0.2 + 0.03*float64(i%4)
		trend = append(trend, model.TrendRecord{
			Key:            k("甲", 2000+i),
			CleanRatio:     stats.Of(c),
			GreenRate:      stats.Of(g),
			EmissionPerGDP: stats.Of(3 - 2*c - 1*g),
		})
	}
	fm, err := FitForecastModel(trend)
	require.NoError(t, err)
	assert.Equal(t, 10, fm.TrainN)

	got, err := fm.Predict(0.5, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 3-1-0.25, got, 1e-9)
}
