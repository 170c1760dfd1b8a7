package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, normalCDF(0), 1e-9)
	assert.InDelta(t, 0.8413, normalCDF(1), 1e-3)
	assert.InDelta(t, 0.0228, normalCDF(-2), 1e-3)
}

func TestCoverProbability(t *testing.T) {
	pOver := coverProbability(26, 4, 23.5, models.SideOver)
	pUnder := coverProbability(26, 4, 23.5, models.SideUnder)
	assert.InDelta(t, 1.0, pOver+pUnder, 1e-9)
	assert.Greater(t, pOver, 0.7)

	// degenerate dispersion collapses to a step function
	assert.Equal(t, 1.0, coverProbability(26, 0, 23.5, models.SideOver))
	assert.Equal(t, 0.0, coverProbability(20, 0, 23.5, models.SideOver))
}

func TestCoefficientOfVariationFallsBackToProfile(t *testing.T) {
	thin := []float64{12, 14}
	cv := coefficientOfVariation(thin, models.StatPoints)
	assert.Equal(t, models.ProfileFor(models.StatPoints).DefaultCV, cv)

	series := []float64{20, 22, 24, 26, 28}
	cv = coefficientOfVariation(series, models.StatPoints)
	assert.Greater(t, cv, 0.0)
	assert.Less(t, cv, 0.2)
}

func TestOLSFitRecoversLinearModel(t *testing.T) {
	// y = 2 + 0.5*x1 - 1*x2 + 0.25*x3 with no noise
	var y []float64
	var xs [][]float64
	for i := 0; i < 20; i++ {
		x1 := float64(20 + i%12)
		x2 := float64(i % 2)
		x3 := float64(i % 4)
		y = append(y, 2+0.5*x1-1*x2+0.25*x3)
		xs = append(xs, []float64{x1, x2, x3})
	}
	coef, ok := olsFit(y, xs)
	require.True(t, ok)
	assert.InDelta(t, 2.0, coef[0], 1e-6)
	assert.InDelta(t, 0.5, coef[1], 1e-6)
	assert.InDelta(t, -1.0, coef[2], 1e-6)
	assert.InDelta(t, 0.25, coef[3], 1e-6)
}

func TestVaryingColumnsDropsConstants(t *testing.T) {
	rows := [][]float64{
		{28, 1, 2},
		{31, 1, 2},
		{26, 1, 2},
	}
	kept, dropped := varyingColumns(rows)
	assert.Equal(t, []int{0}, kept)
	assert.Equal(t, []int{1, 2}, dropped)
}

func TestOLSFitRejectsSingularSystem(t *testing.T) {
	// constant regressors make X'X singular
	y := []float64{1, 2, 3, 4}
	xs := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	_, ok := olsFit(y, xs)
	assert.False(t, ok)
}

func TestClampProb(t *testing.T) {
	assert.Equal(t, 0.02, clampProb(-1))
	assert.Equal(t, 0.98, clampProb(1.5))
	assert.Equal(t, 0.55, clampProb(0.55))
}

func TestWeightedMeanSkipsNaN(t *testing.T) {
	mu, ok := weightedMean([]float64{10, math.NaN(), 20}, []float64{1, 1, 1})
	require.True(t, ok)
	assert.InDelta(t, 15, mu, 1e-9)
}

func TestDecayWeightsMostRecentHeaviest(t *testing.T) {
	w := decayWeights(3, 0.9)
	assert.InDelta(t, 0.81, w[0], 1e-9)
	assert.InDelta(t, 0.9, w[1], 1e-9)
	assert.InDelta(t, 1.0, w[2], 1e-9)
}
