package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func projected(p float64, n int) models.ProjectionResult {
	return models.ProjectionResult{
		ProjectedProbability: p,
		Evidence:             models.ProjectionEvidence{SampleSize: n},
	}
}

func TestScoreSampleCapByGamesObserved(t *testing.T) {
	e := NewEngine(DefaultConfig())

	cases := []struct {
		n   int
		cap float64
	}{
		{5, 75},
		{14, 75},
		{15, 85},
		{29, 85},
		{30, 90},
		{59, 90},
		{60, 95},
	}
	for _, tc := range cases {
		result := e.Score(Input{Projection: projected(0.97, tc.n)})
		assert.LessOrEqual(t, result.Final, tc.cap, "n=%d", tc.n)
		assert.Contains(t, result.Penalties, ReasonSampleCap, "n=%d", tc.n)
	}
}

func TestScoreShrinkageTowardLeagueMean(t *testing.T) {
	e := NewEngine(DefaultConfig())

	thin := e.Score(Input{Projection: projected(0.70, 6)})
	deep := e.Score(Input{Projection: projected(0.70, 40)})

	// 6 games carries a 15-weight prior toward 50; 40 games barely moves.
	assert.Less(t, thin.AfterShrinkage, deep.AfterShrinkage)
	assert.Less(t, thin.AfterShrinkage, 70.0)
	assert.InDelta(t, 70.0, deep.AfterShrinkage, 2.0)
}

func TestScoreVolatilityPenaltyTiers(t *testing.T) {
	e := NewEngine(DefaultConfig())

	mk := func(cv float64) models.ProjectionResult {
		r := projected(0.70, 25)
		r.Evidence.VolatilityCV = cv
		return r
	}

	assert.NotContains(t, e.Score(Input{Projection: mk(0.15)}).Penalties, ReasonVolatility)
	assert.Equal(t, -3.0, e.Score(Input{Projection: mk(0.25)}).Penalties[ReasonVolatility])
	assert.Equal(t, -8.0, e.Score(Input{Projection: mk(0.35)}).Penalties[ReasonVolatility])
	assert.Equal(t, -15.0, e.Score(Input{Projection: mk(0.45)}).Penalties[ReasonVolatility])
}

func TestScoreRoleAndMinutesPenalties(t *testing.T) {
	e := NewEngine(DefaultConfig())

	rising := e.Score(Input{
		Projection: projected(0.72, 25),
		Player:     models.PlayerContext{RoleTrend: models.RoleRising},
	})
	assert.Equal(t, -15.0, rising.Penalties[ReasonRoleChange])

	stable := e.Score(Input{
		Projection: projected(0.72, 25),
		Player:     models.PlayerContext{RoleTrend: models.RoleStable},
	})
	assert.NotContains(t, stable.Penalties, ReasonRoleChange)

	// 36/18/31 minutes: spread well over 20% of the mean
	jumpy := e.Score(Input{
		Projection: projected(0.72, 25),
		Player: models.PlayerContext{
			RoleTrend:     models.RoleStable,
			RecentMinutes: []float64{36, 18, 31, 22, 35},
		},
	})
	assert.Equal(t, -5.0, jumpy.Penalties[ReasonMinutesVar])
	assert.InDelta(t, stable.Final-5, jumpy.Final, 1e-9)
}

func TestScoreMatchupShiftClamped(t *testing.T) {
	e := NewEngine(DefaultConfig())

	favorable := e.Score(Input{Projection: projected(0.70, 25), MatchupShift: 0.08})
	assert.Equal(t, 4.0, favorable.Penalties[ReasonMatchup])

	extreme := e.Score(Input{Projection: projected(0.70, 25), MatchupShift: 0.40})
	assert.Equal(t, 10.0, extreme.Penalties[ReasonMatchup])

	hostile := e.Score(Input{Projection: projected(0.70, 25), MatchupShift: -0.40})
	assert.Equal(t, -10.0, hostile.Penalties[ReasonMatchup])
}

func TestScoreLineDifficultyPointsOnly(t *testing.T) {
	e := NewEngine(DefaultConfig())

	mid := e.Score(Input{
		Projection: projected(0.70, 25),
		Market:     models.Market{Stat: models.StatPoints, Line: 31.5},
	})
	assert.Equal(t, -5.0, mid.Penalties[ReasonLineDifficulty])

	high := e.Score(Input{
		Projection: projected(0.70, 25),
		Market:     models.Market{Stat: models.StatPoints, Line: 36.5},
	})
	assert.Equal(t, -10.0, high.Penalties[ReasonLineDifficulty])

	rebounds := e.Score(Input{
		Projection: projected(0.70, 25),
		Market:     models.Market{Stat: models.StatRebounds, Line: 36.5},
	})
	assert.NotContains(t, rebounds.Penalties, ReasonLineDifficulty)
}

func TestScoreDisagreementPenalty(t *testing.T) {
	e := NewEngine(DefaultConfig())

	proj := projected(0.70, 25)
	proj.Evidence.Disagreement = 0.12
	result := e.Score(Input{Projection: proj})
	assert.Equal(t, -5.0, result.Penalties[ReasonDisagreement])
}

func TestScoreEfficiencyGuardFlagsThinEdge(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// implied 0.571, projected 0.59: edge 0.019 inside the efficient zone
	flagged := e.Score(Input{
		Projection: projected(0.59, 25),
		Odds:       1.75,
	})
	assert.Contains(t, flagged.Flags, models.FlagSuppressInefficient)

	// wide edge is left alone
	clean := e.Score(Input{
		Projection: projected(0.72, 25),
		Odds:       1.75,
	})
	assert.NotContains(t, clean.Flags, models.FlagSuppressInefficient)
}

func TestRiskClassification(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// deep sample, no penalties
	low := e.Score(Input{Projection: projected(0.74, 40)})
	assert.Equal(t, models.RiskLow, low.Risk)
	assert.True(t, low.MultiSafe)

	// one HIGH penalty (role change -15)
	oneHigh := e.Score(Input{
		Projection: projected(0.80, 40),
		Player:     models.PlayerContext{RoleTrend: models.RoleFalling},
	})
	assert.Equal(t, models.RiskMedium, oneHigh.Risk)
	assert.True(t, oneHigh.MultiSafe)

	// role change plus a tough line: two HIGH penalties
	twoHigh := e.Score(Input{
		Projection: projected(0.80, 40),
		Player:     models.PlayerContext{RoleTrend: models.RoleFalling},
		Market:     models.Market{Stat: models.StatPoints, Line: 36.5},
	})
	assert.Equal(t, models.RiskHigh, twoHigh.Risk)
	assert.False(t, twoHigh.MultiSafe)

	// a thin sample counts as a HIGH penalty on its own
	thinProj := projected(0.74, 6)
	thinProj.Evidence.VolatilityCV = 0.45
	extreme := e.Score(Input{
		Projection: thinProj,
		Player:     models.PlayerContext{RoleTrend: models.RoleFalling},
	})
	assert.Equal(t, models.RiskExtreme, extreme.Risk)
	assert.False(t, extreme.MultiSafe)
}

func TestApplyPenaltyReclassifies(t *testing.T) {
	e := NewEngine(DefaultConfig())

	result := e.Score(Input{Projection: projected(0.80, 40)})
	require.Equal(t, models.RiskLow, result.Risk)
	before := result.Final

	e.ApplyPenalty(&result, ReasonCorrelation, -10, 40)
	assert.Equal(t, -10.0, result.Penalties[ReasonCorrelation])
	assert.InDelta(t, before-10, result.Final, 1e-9)
	assert.Equal(t, models.RiskMedium, result.Risk)
}

func TestScoreNeverExceedsCeiling(t *testing.T) {
	e := NewEngine(DefaultConfig())
	result := e.Score(Input{
		Projection:   projected(0.98, 80),
		MatchupShift: 0.20,
	})
	assert.LessOrEqual(t, result.Final, 95.0)
}
