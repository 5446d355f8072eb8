package stats

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

// KMeansOptions configures KMeans.
type KMeansOptions struct {
	K        int
	Restarts int // independent k-means++ initializations; best inertia wins
	MaxIter  int
	Seed     uint64
	Tol      float64 // stop when total centroid movement falls below Tol
}

// KMeansResult is the best clustering found across restarts.
type KMeansResult struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

// KMeans partitions points into K clusters with Lloyd's algorithm seeded by
// k-means++. The generator is seeded from opts.Seed, so the same input and
// options always produce the same labels. Every cluster is non-empty.
func KMeans(points [][]float64, opts KMeansOptions) (KMeansResult, error) {
	if opts.K <= 0 {
		return KMeansResult{}, eris.Errorf("kmeans: k must be positive, got %d", opts.K)
	}
	if len(points) < opts.K {
		return KMeansResult{}, eris.Wrapf(ErrInsufficient, "kmeans: %d points for k=%d", len(points), opts.K)
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return KMeansResult{}, eris.Errorf("kmeans: point %d has %d dims, want %d", i, len(p), dim)
		}
	}
	if opts.Restarts <= 0 {
		opts.Restarts = 1
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 300
	}
	if opts.Tol <= 0 {
		opts.Tol = 1e-9
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var best KMeansResult
	for r := range opts.Restarts {
		res := lloyd(points, seedPlusPlus(points, opts.K, rng), opts)
		if r == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// seedPlusPlus picks initial centroids with D² weighting.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	d2 := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d2[i] = math.Inf(1)
			for _, c := range centroids {
				d2[i] = math.Min(d2[i], sqDist(p, c))
			}
			total += d2[i]
		}

		next := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		} else {
			next = rng.IntN(len(points))
		}
		centroids = append(centroids, clone(points[next]))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, opts KMeansOptions) KMeansResult {
	k := len(centroids)
	dim := len(points[0])
	labels := make([]int, len(points))

	for range opts.MaxIter {
		for i, p := range points {
			labels[i] = nearest(p, centroids)
		}
		fillEmpty(points, labels, centroids)

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				next[c][d] += v
			}
		}
		var shift float64
		for c := range next {
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
			shift += sqDist(next[c], centroids[c])
		}
		centroids = next
		if shift <= opts.Tol {
			break
		}
	}

	for i, p := range points {
		labels[i] = nearest(p, centroids)
	}
	fillEmpty(points, labels, centroids)

	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return KMeansResult{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// fillEmpty moves the point farthest from its centroid into each empty
// cluster, taking only from clusters that keep at least one member.
func fillEmpty(points [][]float64, labels []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	for _, l := range labels {
		counts[l]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c]++
		centroids[c] = clone(points[far])
	}
}

// nearest returns the closest centroid index; ties go to the lower index.
func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
