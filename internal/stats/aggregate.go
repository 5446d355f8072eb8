package stats

import "math"

// Count returns the number of non-null values.
func Count(xs []Value) int {
	n := 0
	for _, x := range xs {
		if x.valid {
			n++
		}
	}
	return n
}

// Mean averages the non-null values. No values yields null.
func Mean(xs []Value) Value {
	var sum float64
	n := 0
	for _, x := range xs {
		if x.valid {
			sum += x.v
			n++
		}
	}
	if n == 0 {
		return Null
	}
	return Of(sum / float64(n))
}

// PopStd is the population standard deviation (divide by n) of the non-null
// values.
func PopStd(xs []Value) Value {
	m, ok := Mean(xs).Float64()
	if !ok {
		return Null
	}
	var ss float64
	n := 0
	for _, x := range xs {
		if x.valid {
			d := x.v - m
			ss += d * d
			n++
		}
	}
	return Of(math.Sqrt(ss / float64(n)))
}

// ZScores standardizes xs against their own mean and population standard
// deviation. Nulls stay null. With fewer than two values or zero spread the
// score is undefined and every element is null.
func ZScores(xs []Value) []Value {
	out := make([]Value, len(xs))
	if Count(xs) < 2 {
		return out
	}
	m, _ := Mean(xs).Float64()
	sd, _ := PopStd(xs).Float64()
	if sd == 0 {
		return out
	}
	for i, x := range xs {
		if x.valid {
			out[i] = Of((x.v - m) / sd)
		}
	}
	return out
}

// Pearson computes the correlation of xs and ys over pairwise-complete
// observations. Fewer than two pairs or zero variance in either series
// yields null.
func Pearson(xs, ys []Value) Value {
	n := min(len(xs), len(ys))
	var px, py []float64
	for i := range n {
		if xs[i].valid && ys[i].valid {
			px = append(px, xs[i].v)
			py = append(py, ys[i].v)
		}
	}
	if len(px) < 2 {
		return Null
	}

	var mx, my float64
	for i := range px {
		mx += px[i]
		my += py[i]
	}
	mx /= float64(len(px))
	my /= float64(len(py))

	var sxy, sxx, syy float64
	for i := range px {
		dx, dy := px[i]-mx, py[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return Null
	}
	r := sxy / math.Sqrt(sxx*syy)
	return Of(math.Max(-1, math.Min(1, r)))
}
