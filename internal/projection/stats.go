package projection

import (
	"math"

	"courtedge/internal/models"
)

// series extracts a stat series from a game log, oldest first.
func series(log []models.GameLogEntry, stat models.StatKind) []float64 {
	out := make([]float64, 0, len(log))
	for _, e := range log {
		out = append(out, e.Stat(stat))
	}
	return out
}

func minutesSeries(log []models.GameLogEntry) []float64 {
	out := make([]float64, 0, len(log))
	for _, e := range log {
		out = append(out, e.Minutes)
	}
	return out
}

// decayWeights returns exponential recency weights for a series of
// length n, most recent last. r = 1 disables decay.
func decayWeights(n int, r float64) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		age := n - 1 - i
		w[i] = math.Pow(r, float64(age))
	}
	return w
}

// weightedMean computes the weighted mean, skipping NaN values.
func weightedMean(values, weights []float64) (float64, bool) {
	var sum, wsum float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

func mean(values []float64) (float64, bool) {
	w := make([]float64, len(values))
	for i := range w {
		w[i] = 1
	}
	return weightedMean(values, w)
}

// stddev is the population standard deviation, NaN-skipping.
func stddev(values []float64) float64 {
	mu, ok := mean(values)
	if !ok {
		return 0
	}
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d := v - mu
		sum += d * d
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// coefficientOfVariation returns sd/mean, or the stat family default
// when the series is too thin or the mean is ~0.
func coefficientOfVariation(values []float64, stat models.StatKind) float64 {
	mu, ok := mean(values)
	if !ok || len(values) < 3 || mu < 1e-9 {
		return models.ProfileFor(stat).DefaultCV
	}
	return stddev(values) / mu
}

// normalCDF is the standard normal cumulative distribution.
func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// coverProbability is P(stat covers line) under a Normal(mu, sigma)
// approximation. Over covers above the line, Under below.
func coverProbability(mu, sigma, line float64, side models.Side) float64 {
	if sigma <= 1e-9 {
		if (side == models.SideOver && mu > line) || (side == models.SideUnder && mu < line) {
			return 1
		}
		return 0
	}
	pOver := 1 - normalCDF((line-mu)/sigma)
	if side == models.SideUnder {
		return 1 - pOver
	}
	return pOver
}

// olsFit fits y = b0 + b1*x1 + b2*x2 + b3*x3 by least squares using the
// normal equations with Gaussian elimination. It reports ok=false when
// the system is singular.
func olsFit(y []float64, xs [][]float64) ([]float64, bool) {
	n := len(y)
	if n == 0 || len(xs) != n {
		return nil, false
	}
	k := len(xs[0]) + 1 // intercept

	// Build X'X and X'y.
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for row := 0; row < n; row++ {
		features := append([]float64{1}, xs[row]...)
		for i := 0; i < k; i++ {
			xty[i] += features[i] * y[row]
			for j := 0; j < k; j++ {
				xtx[i][j] += features[i] * features[j]
			}
		}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(xtx[r][col]) > math.Abs(xtx[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(xtx[pivot][col]) < 1e-10 {
			return nil, false
		}
		xtx[col], xtx[pivot] = xtx[pivot], xtx[col]
		xty[col], xty[pivot] = xty[pivot], xty[col]

		for r := col + 1; r < k; r++ {
			factor := xtx[r][col] / xtx[col][col]
			for c := col; c < k; c++ {
				xtx[r][c] -= factor * xtx[col][c]
			}
			xty[r] -= factor * xty[col]
		}
	}
	coef := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		sum := xty[i]
		for j := i + 1; j < k; j++ {
			sum -= xtx[i][j] * coef[j]
		}
		coef[i] = sum / xtx[i][i]
	}
	for _, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, false
		}
	}
	return coef, true
}

// varyingColumns splits design-matrix column indexes into those with
// real variance and those effectively constant. A constant column is
// collinear with the intercept and makes X'X singular.
func varyingColumns(rows [][]float64) (kept, dropped []int) {
	if len(rows) == 0 {
		return nil, nil
	}
	col := make([]float64, len(rows))
	for c := range rows[0] {
		for i, r := range rows {
			col[i] = r[c]
		}
		if stddev(col) < 1e-9 {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

func clampProb(p float64) float64 {
	return math.Max(0.02, math.Min(0.98, p))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
