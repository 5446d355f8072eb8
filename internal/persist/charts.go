package persist

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lowcarbon-viz/lowcarbon/internal/pipeline"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

// ChartsDir is the chart directory relative to the output dir.
const ChartsDir = "derived/charts"

// Chart file names.
const (
	ChartSynergyTrend = "synergy_trend.png"
	ChartClusters     = "cluster_scatter.png"
	ChartScenarios    = "scenario_forecast.png"
)

var palette = []color.Color{
	color.RGBA{R: 34, G: 139, B: 34, A: 255},
	color.RGBA{R: 70, G: 130, B: 180, A: 255},
	color.RGBA{R: 255, G: 165, B: 0, A: 255},
	color.RGBA{R: 178, G: 34, B: 34, A: 255},
	color.RGBA{R: 128, G: 0, B: 128, A: 255},
	color.RGBA{R: 112, G: 128, B: 144, A: 255},
}

func paletteColor(i int) color.Color { return palette[i%len(palette)] }

// WriteCharts renders the national synergy trend, the cluster scatter and
// the scenario forecast means into dir. Charts with no data are skipped and
// the written file names are returned.
func WriteCharts(dir string, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "persist: create %s", dir)
	}
	var written []string
	for _, c := range []struct {
		name string
		fn   func(*pipeline.Result) (*plot.Plot, error)
	}{
		{ChartSynergyTrend, synergyTrendPlot},
		{ChartClusters, clusterPlot},
		{ChartScenarios, scenarioPlot},
	} {
		p, err := c.fn(res)
		if err != nil {
			return written, eris.Wrapf(err, "persist: chart %s", c.name)
		}
		if p == nil {
			continue
		}
		if err := p.Save(10*vg.Inch, 6*vg.Inch, filepath.Join(dir, c.name)); err != nil {
			return written, eris.Wrapf(err, "persist: save chart %s", c.name)
		}
		written = append(written, c.name)
	}
	return written, nil
}

// synergyTrendPlot draws the mean synergy score across provinces per year.
func synergyTrendPlot(res *pipeline.Result) (*plot.Plot, error) {
	byYear := map[int][]stats.Value{}
	for _, r := range res.Standardized {
		byYear[r.Year] = append(byYear[r.Year], r.SynergyScore)
	}
	var pts plotter.XYs
	for y, vals := range byYear {
		if m, ok := stats.Mean(vals).Float64(); ok {
			pts = append(pts, plotter.XY{X: float64(y), Y: m})
		}
	}
	if len(pts) == 0 {
		return nil, nil
	}
	slices.SortFunc(pts, func(a, b plotter.XY) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})

	p := plot.New()
	p.Title.Text = "Mean synergy score"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Synergy score"

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = paletteColor(1)
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(line, points, plotter.NewGrid())
	return p, nil
}

// clusterPlot scatters energy index against eco index, one series per
// cluster.
func clusterPlot(res *pipeline.Result) (*plot.Plot, error) {
	if len(res.Cluster) == 0 {
		return nil, nil
	}
	p := plot.New()
	p.Title.Text = "Province clusters"
	p.X.Label.Text = "Energy index"
	p.Y.Label.Text = "Eco index"

	byCluster := map[int]plotter.XYs{}
	var labels plotter.XYLabels
	for _, r := range res.Cluster {
		pt := plotter.XY{X: r.EnergyIndex.Or(0), Y: r.EcoIndex.Or(0)}
		byCluster[r.ClusterType] = append(byCluster[r.ClusterType], pt)
		labels.XYs = append(labels.XYs, pt)
		labels.Labels = append(labels.Labels, r.Province)
	}
	for label := range len(res.ClusterSummary) {
		pts, ok := byCluster[label]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = paletteColor(label)
		s.GlyphStyle.Radius = vg.Points(5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", label), s)
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	p.Add(l, plotter.NewGrid())
	return p, nil
}

// scenarioPlot draws the mean predicted intensity per forecast year, one
// line per scenario in first-seen order.
func scenarioPlot(res *pipeline.Result) (*plot.Plot, error) {
	if len(res.Forecast) == 0 {
		return nil, nil
	}
	type key struct {
		scenario string
		year     int
	}
	var order []string
	var years []int
	sums := map[key][]stats.Value{}
	for _, r := range res.Forecast {
		k := key{r.Scenario, r.Year}
		if !slices.Contains(order, r.Scenario) {
			order = append(order, r.Scenario)
		}
		if !slices.Contains(years, r.Year) {
			years = append(years, r.Year)
		}
		sums[k] = append(sums[k], stats.Of(r.PredictedEmissionPerGDP))
	}
	slices.Sort(years)

	p := plot.New()
	p.Title.Text = "Scenario forecast"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Predicted emission per GDP"
	for i, sc := range order {
		var pts plotter.XYs
		for _, y := range years {
			if m, ok := stats.Mean(sums[key{sc, y}]).Float64(); ok {
				pts = append(pts, plotter.XY{X: float64(y), Y: m})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = paletteColor(i)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(sc, line)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}
