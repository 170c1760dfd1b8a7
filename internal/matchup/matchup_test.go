package matchup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func testLeague() League {
	return League{
		LeaguePace: 100,
		Teams: map[string]models.TeamForm{
			"BOS": {
				TeamID: "BOS", PaceEstimate: 98, StrengthIndex: 9,
				AllowedMultipliers: map[models.StatKind]float64{models.StatPoints: 0.94},
			},
			"WAS": {
				TeamID: "WAS", PaceEstimate: 104, StrengthIndex: -7,
				AllowedMultipliers: map[models.StatKind]float64{models.StatPoints: 1.08},
			},
			"NYK": {
				TeamID: "NYK", PaceEstimate: 97, StrengthIndex: 6,
				AllowedMultipliers: map[models.StatKind]float64{models.StatPoints: 0.97},
			},
		},
	}
}

func TestFactorsMultipliers(t *testing.T) {
	e := NewEngine(testLeague())
	league := testLeague()

	f := e.Factors(league.Teams["BOS"], league.Teams["WAS"], models.StatPoints)
	assert.InDelta(t, 1.01, f.PaceMultiplier, 1e-9) // (98+104)/2 / 100
	assert.InDelta(t, 1.08, f.DefenseMultiplier, 1e-9)
	assert.Equal(t, 0.92, f.BlowoutRisk) // |9 - (-7)| > 10
	assert.InDelta(t, 1.01*1.08*0.92, f.TotalMultiplier, 1e-9)
	assert.True(t, f.TotalAdjustment >= -0.15 && f.TotalAdjustment <= 0.15)
	assert.Equal(t, 3, f.OpponentRankForStat) // WAS allows the most points
}

func TestFactorsBlowoutTiers(t *testing.T) {
	e := NewEngine(testLeague())
	league := testLeague()

	modest := e.Factors(league.Teams["BOS"], league.Teams["NYK"], models.StatPoints)
	assert.Equal(t, 1.00, modest.BlowoutRisk) // |9-6| <= 5

	heavy := e.Factors(league.Teams["WAS"], league.Teams["BOS"], models.StatPoints)
	assert.Equal(t, 0.92, heavy.BlowoutRisk)
}

func TestFactorsMissingInputsFallToLeagueMean(t *testing.T) {
	e := NewEngine(testLeague())
	unknown := models.TeamForm{TeamID: "???"}
	league := testLeague()

	f := e.Factors(league.Teams["BOS"], unknown, models.StatRebounds)
	assert.Equal(t, 1.0, f.PaceMultiplier)
	assert.Equal(t, 1.0, f.DefenseMultiplier)
	require.NotEmpty(t, f.Notes)
	assert.Equal(t, 3, f.OpponentRankForStat) // worst rank assumed
}

func TestFactorsClampsExtremeMultipliers(t *testing.T) {
	league := League{
		LeaguePace: 100,
		Teams: map[string]models.TeamForm{
			"FAST": {TeamID: "FAST", PaceEstimate: 140},
			"SLOW": {TeamID: "SLOW", PaceEstimate: 60,
				AllowedMultipliers: map[models.StatKind]float64{models.StatPoints: 1.40}},
		},
	}
	e := NewEngine(league)
	f := e.Factors(league.Teams["FAST"], league.Teams["SLOW"], models.StatPoints)
	assert.Equal(t, 1.0, f.PaceMultiplier) // (140+60)/2 / 100
	assert.Equal(t, 1.15, f.DefenseMultiplier)
}

func TestRanksDeterministicOnTies(t *testing.T) {
	league := League{
		LeaguePace: 100,
		Teams: map[string]models.TeamForm{
			"AAA": {TeamID: "AAA"},
			"BBB": {TeamID: "BBB"},
		},
	}
	e := NewEngine(league)
	f := e.Factors(models.TeamForm{TeamID: "X"}, league.Teams["AAA"], models.StatPoints)
	assert.Equal(t, 1, f.OpponentRankForStat)
	f = e.Factors(models.TeamForm{TeamID: "X"}, league.Teams["BBB"], models.StatPoints)
	assert.Equal(t, 2, f.OpponentRankForStat)
}
