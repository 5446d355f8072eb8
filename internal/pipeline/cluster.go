package pipeline

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
)

const stageCluster = "cluster"

// ClusterOptions configures the k-means clusterer.
type ClusterOptions struct {
	K        int
	Seed     uint64
	Restarts int
	MaxIter  int
}

// Cluster groups provinces by their index profile in the latest year that
// has at least K complete standardized rows. Labels are renumbered so that
// cluster 0 has the highest mean synergy score. With no such year the result
// is empty and a warning is returned.
func Cluster(std []model.StandardizedRecord, opts ClusterOptions) ([]model.ClusterRecord, []model.ClusterSummaryRecord, model.Diagnostics) {
	var diags model.Diagnostics

	byYear := map[int][]model.StandardizedRecord{}
	for _, r := range std {
		if r.Complete() {
			byYear[r.Year] = append(byYear[r.Year], r)
		}
	}
	year, found := 0, false
	for y, rows := range byYear {
		if len(rows) >= opts.K && (!found || y > year) {
			year, found = y, true
		}
	}
	if !found {
		diags.Add(model.Diagnostic{Stage: stageCluster, Outcome: model.OutcomeWarning,
			Reason: fmt.Sprintf("no year has %d complete standardized rows", opts.K)})
		return nil, nil, diags
	}

	rows := slices.Clone(byYear[year])
	slices.SortFunc(rows, func(a, b model.StandardizedRecord) int { return cmp.Compare(a.Province, b.Province) })

	points := make([][]float64, len(rows))
	for i, r := range rows {
		points[i] = []float64{r.EnergyIndex.Or(0), r.EcoIndex.Or(0), r.EfficiencyIndex.Or(0)}
	}
	res, err := stats.KMeans(points, stats.KMeansOptions{
		K:        opts.K,
		Restarts: opts.Restarts,
		MaxIter:  opts.MaxIter,
		Seed:     opts.Seed,
	})
	if err != nil {
		diags.Add(model.Diagnostic{Stage: stageCluster, Year: year, Outcome: model.OutcomeWarning, Reason: err.Error()})
		return nil, nil, diags
	}

	relabel := rankBySynergy(rows, res.Labels, opts.K)

	out := make([]model.ClusterRecord, len(rows))
	members := make([][]model.StandardizedRecord, opts.K)
	for i, r := range rows {
		label := relabel[res.Labels[i]]
		out[i] = model.ClusterRecord{
			Province:        r.Province,
			Year:            year,
			EnergyIndex:     r.EnergyIndex,
			EcoIndex:        r.EcoIndex,
			EfficiencyIndex: r.EfficiencyIndex,
			SynergyScore:    r.SynergyScore,
			ClusterType:     label,
		}
		members[label] = append(members[label], r)
	}

	summary := make([]model.ClusterSummaryRecord, opts.K)
	for label, ms := range members {
		var energy, eco, eff, syn []stats.Value
		for _, m := range ms {
			energy = append(energy, m.EnergyIndex)
			eco = append(eco, m.EcoIndex)
			eff = append(eff, m.EfficiencyIndex)
			syn = append(syn, m.SynergyScore)
		}
		summary[label] = model.ClusterSummaryRecord{
			ClusterType:    label,
			MeanEnergy:     stats.Mean(energy),
			MeanEco:        stats.Mean(eco),
			MeanEfficiency: stats.Mean(eff),
			SynergyScore:   stats.Mean(syn),
		}
	}
	return out, summary, diags
}

// rankBySynergy maps raw k-means labels to ranks by descending mean synergy
// score; ties keep the lower raw label first.
func rankBySynergy(rows []model.StandardizedRecord, labels []int, k int) []int {
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, r := range rows {
		sums[labels[i]] += r.SynergyScore.Or(0)
		counts[labels[i]]++
	}
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	mean := func(l int) float64 {
		if counts[l] == 0 {
			return 0
		}
		return sums[l] / float64(counts[l])
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(mean(b), mean(a)) })

	relabel := make([]int, k)
	for rank, raw := range order {
		relabel[raw] = rank
	}
	return relabel
}
