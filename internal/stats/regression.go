package stats

import (
	"math"

	"github.com/rotisserie/eris"
)

var (
	// ErrInsufficient is returned when there are too few observations to fit.
	ErrInsufficient = eris.New("stats: insufficient observations")
	// ErrDegenerate is returned when a predictor has zero variance.
	ErrDegenerate = eris.New("stats: degenerate predictor variance")
	// ErrSingular is returned when the normal equations have no unique solution.
	ErrSingular = eris.New("stats: singular system")
)

// Line is a fitted simple linear regression y = Intercept + Slope*x.
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	N         int     `json:"n"`
}

// Predict evaluates the line at x.
func (l Line) Predict(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// FitLine fits ordinary least squares of ys on xs.
func FitLine(xs, ys []float64) (Line, error) {
	if len(xs) != len(ys) {
		return Line{}, eris.Errorf("stats: length mismatch %d != %d", len(xs), len(ys))
	}
	n := len(xs)
	if n < 2 {
		return Line{}, eris.Wrapf(ErrInsufficient, "fit line: n=%d", n)
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx == 0 || math.IsNaN(sxx) {
		return Line{}, eris.Wrap(ErrDegenerate, "fit line")
	}

	slope := sxy / sxx
	return Line{Slope: slope, Intercept: my - slope*mx, N: n}, nil
}

// Scaler standardizes feature columns to zero mean and unit population
// variance. A zero-variance column is left unscaled (scale 1).
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column means and population standard deviations.
func FitScaler(X [][]float64) (Scaler, error) {
	if len(X) == 0 {
		return Scaler{}, eris.Wrap(ErrInsufficient, "fit scaler")
	}
	p := len(X[0])
	s := Scaler{Mean: make([]float64, p), Scale: make([]float64, p)}
	for _, row := range X {
		if len(row) != p {
			return Scaler{}, eris.Errorf("stats: ragged feature row (want %d, got %d)", p, len(row))
		}
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}
	for j := range s.Scale {
		s.Scale[j] = math.Sqrt(s.Scale[j] / n)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	return s, nil
}

// Transform standardizes a single feature row.
func (s Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, eris.Errorf("stats: scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// LinearModel is a fitted multiple regression with intercept.
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// Predict scores a feature row.
func (m LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coef) {
		return 0, eris.Errorf("stats: model expects %d features, got %d", len(m.Coef), len(x))
	}
	y := m.Intercept
	for j, v := range x {
		y += m.Coef[j] * v
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, eris.New("stats: non-finite prediction")
	}
	return y, nil
}

// FitOLS solves the least-squares normal equations for y on X with an
// intercept term.
func FitOLS(X [][]float64, y []float64) (LinearModel, error) {
	if len(X) != len(y) {
		return LinearModel{}, eris.Errorf("stats: length mismatch %d != %d", len(X), len(y))
	}
	if len(X) == 0 {
		return LinearModel{}, eris.Wrap(ErrInsufficient, "fit ols")
	}
	p := len(X[0]) + 1
	if len(X) < p {
		return LinearModel{}, eris.Wrapf(ErrInsufficient, "fit ols: n=%d, params=%d", len(X), p)
	}

	// Augmented matrix [X'X | X'y] with a leading column of ones in X.
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p+1)
	}
	row := make([]float64, p)
	for i, xs := range X {
		if len(xs) != p-1 {
			return LinearModel{}, eris.Errorf("stats: ragged feature row (want %d, got %d)", p-1, len(xs))
		}
		row[0] = 1
		copy(row[1:], xs)
		for r := range p {
			for c := range p {
				a[r][c] += row[r] * row[c]
			}
			a[r][p] += row[r] * y[i]
		}
	}

	beta, err := solve(a)
	if err != nil {
		return LinearModel{}, err
	}
	return LinearModel{Intercept: beta[0], Coef: beta[1:]}, nil
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// n×(n+1) matrix. The matrix is modified in place.
func solve(a [][]float64) ([]float64, error) {
	n := len(a)
	var scale float64
	for i := range n {
		scale = math.Max(scale, math.Abs(a[i][i]))
	}
	tol := 1e-10 * math.Max(scale, 1)

	for col := range n {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < tol {
			return nil, eris.Wrapf(ErrSingular, "solve: column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := a[r][n]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
