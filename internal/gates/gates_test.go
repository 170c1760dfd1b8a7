package gates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/confidence"
	"courtedge/internal/models"
)

func newTestEngine(cfg Config) *Engine {
	return NewEngine(cfg, confidence.NewEngine(confidence.DefaultConfig()))
}

func rec(p, ev, edge, conf float64, sample int) models.Recommendation {
	return models.Recommendation{
		Projection: models.ProjectionResult{
			ProjectedProbability: p,
			ProjectionMargin:     5,
			Evidence:             models.ProjectionEvidence{SampleSize: sample},
		},
		Confidence: models.ConfidenceResult{Final: conf},
		Value: models.ValueResult{
			EV:         ev,
			Edge:       edge,
			Mispricing: edge * 2,
		},
	}
}

func TestAssignFirstMatchWins(t *testing.T) {
	e := newTestEngine(DefaultConfig())

	// clears S and by extension every lower gate
	top := rec(0.72, 0.25, 0.14, 80, 25)
	e.Assign(&top)
	assert.Equal(t, models.TierS, top.Tier)

	a := rec(0.78, 0.12, 0.09, 70, 25)
	e.Assign(&a)
	assert.Equal(t, models.TierA, a.Tier)

	b := rec(0.60, 0.07, 0.05, 65, 25)
	e.Assign(&b)
	assert.Equal(t, models.TierB, b.Tier)

	d := rec(0.52, 0.01, 0.005, 40, 3)
	e.Assign(&d)
	assert.Equal(t, models.TierD, d.Tier)
}

func TestAssignProbabilityGateDropsAToB(t *testing.T) {
	e := newTestEngine(DefaultConfig())

	// EV and edge clear the A floors, but p=0.70 misses the 0.75 gate
	r := rec(0.70, 0.12, 0.09, 70, 25)
	e.Assign(&r)
	assert.Equal(t, models.TierB, r.Tier)
}

func TestAssignCTierNeedsEveryFloor(t *testing.T) {
	e := newTestEngine(DefaultConfig())

	// low EV keeps it out of B, but confidence/edge/mispricing/sample
	// clear the C floors
	c := rec(0.55, 0.03, 0.06, 65, 10)
	c.Value.Mispricing = 0.12
	e.Assign(&c)
	assert.Equal(t, models.TierC, c.Tier)

	thin := rec(0.55, 0.03, 0.06, 65, 4)
	thin.Value.Mispricing = 0.12
	e.Assign(&thin)
	assert.Equal(t, models.TierD, thin.Tier)
}

func TestAssignLegacyEdgeGate(t *testing.T) {
	strict := newTestEngine(DefaultConfig())
	legacy := newTestEngine(Config{LegacyEdgeGate: true, MaxPropsPerGame: 2})

	// edge 0.06 sits between the legacy 0.05 and production 0.08 floors
	r := rec(0.78, 0.12, 0.06, 70, 25)
	strict.Assign(&r)
	assert.Equal(t, models.TierB, r.Tier)

	r = rec(0.78, 0.12, 0.06, 70, 25)
	legacy.Assign(&r)
	assert.Equal(t, models.TierA, r.Tier)
}

func TestFinalScoreComposition(t *testing.T) {
	r := rec(0.72, 0.20, 0.10, 80, 25)
	got := FinalScore(r)
	assert.InDelta(t, 0.20*100+80*0.2+0.10*50, got, 1e-12)
}

func propRec(game models.Game, player string, stat models.StatKind, p, ev, edge, margin float64) models.Recommendation {
	r := rec(p, ev, edge, 75, 25)
	r.Game = game
	r.Projection.ProjectionMargin = margin
	r.Market = models.Market{
		Kind:     models.MarketPlayerProp,
		Side:     models.SideOver,
		Line:     20.5,
		PlayerID: player,
		Stat:     stat,
	}
	return r
}

func TestFinalizePerGamePropCap(t *testing.T) {
	e := newTestEngine(DefaultConfig())
	game := models.Game{
		GameID:   "g1",
		TipTime:  time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC),
		AwayTeam: "WAS",
		HomeTeam: "BOS",
	}

	// three A-grade props on the same game and stat family
	recs := []models.Recommendation{
		propRec(game, "player one", models.StatPoints, 0.82, 0.12, 0.09, 6),
		propRec(game, "player two", models.StatPoints, 0.77, 0.12, 0.09, 5),
		propRec(game, "player three", models.StatPoints, 0.71, 0.12, 0.09, 5),
	}
	for i := range recs {
		e.Assign(&recs[i])
	}

	out := e.Finalize(recs)

	byPlayer := make(map[string]models.Recommendation)
	for _, r := range out {
		byPlayer[r.Market.PlayerID] = r
	}

	// the highest-probability prop keeps its tier untouched
	first := byPlayer["player one"]
	assert.NotContains(t, first.Notes, models.NoteExcessCorrelation)
	assert.NotContains(t, first.Confidence.Penalties, confidence.ReasonCorrelation)

	// second survives the cap but shares the stat family, so it takes a
	// margin-scaled correlation penalty (-4 at a margin of 5)
	second := byPlayer["player two"]
	assert.NotContains(t, second.Notes, models.NoteExcessCorrelation)
	assert.Equal(t, -4.0, second.Confidence.Penalties[confidence.ReasonCorrelation])

	// third is over the per-game cap: demoted to C and penalized
	third := byPlayer["player three"]
	assert.Equal(t, models.TierC, third.Tier)
	assert.Contains(t, third.Notes, models.NoteExcessCorrelation)
	assert.Equal(t, -4.0, third.Confidence.Penalties[confidence.ReasonCorrelation])
}

func TestFinalizePenaltyScalesWithMargin(t *testing.T) {
	e := newTestEngine(DefaultConfig())
	game := models.Game{
		GameID:   "g2",
		TipTime:  time.Date(2026, 1, 11, 19, 0, 0, 0, time.UTC),
		AwayTeam: "NYK",
		HomeTeam: "PHI",
	}

	recs := []models.Recommendation{
		propRec(game, "leader", models.StatAssists, 0.80, 0.12, 0.09, 6),
		propRec(game, "thin margin", models.StatAssists, 0.74, 0.12, 0.09, 1.5),
	}
	for i := range recs {
		e.Assign(&recs[i])
	}

	out := e.Finalize(recs)
	for _, r := range out {
		if r.Market.PlayerID == "thin margin" {
			assert.Equal(t, -10.0, r.Confidence.Penalties[confidence.ReasonCorrelation])
		}
	}
}

func TestFinalizeLeavesDistinctStatsAlone(t *testing.T) {
	e := newTestEngine(DefaultConfig())
	game := models.Game{
		GameID:   "g3",
		TipTime:  time.Date(2026, 1, 12, 19, 0, 0, 0, time.UTC),
		AwayTeam: "MIA",
		HomeTeam: "DEN",
	}

	recs := []models.Recommendation{
		propRec(game, "scorer", models.StatPoints, 0.80, 0.12, 0.09, 6),
		propRec(game, "passer", models.StatAssists, 0.74, 0.12, 0.09, 5),
	}
	for i := range recs {
		e.Assign(&recs[i])
	}

	out := e.Finalize(recs)
	for _, r := range out {
		assert.NotContains(t, r.Confidence.Penalties, confidence.ReasonCorrelation)
		assert.NotContains(t, r.Notes, models.NoteExcessCorrelation)
	}
}

func TestSortDeterministicOrder(t *testing.T) {
	early := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)

	a := rec(0.70, 0.10, 0.08, 70, 25)
	a.Tier = models.TierA
	a.FinalScore = 30

	b := rec(0.70, 0.12, 0.08, 70, 25)
	b.Tier = models.TierB
	b.FinalScore = 50

	s := rec(0.70, 0.22, 0.13, 80, 25)
	s.Tier = models.TierS
	s.FinalScore = 44

	tie1 := rec(0.70, 0.10, 0.08, 70, 25)
	tie1.Tier = models.TierA
	tie1.FinalScore = 30
	tie1.Game.TipTime = late

	a.Game.TipTime = early

	recs := []models.Recommendation{tie1, b, a, s}
	Sort(recs)

	require.Len(t, recs, 4)
	assert.Equal(t, models.TierS, recs[0].Tier)
	// equal tier and score: earlier tip first
	assert.Equal(t, models.TierA, recs[1].Tier)
	assert.Equal(t, early, recs[1].Game.TipTime)
	assert.Equal(t, late, recs[2].Game.TipTime)
	assert.Equal(t, models.TierB, recs[3].Tier)
}

func TestSEligible(t *testing.T) {
	assert.True(t, SEligible(models.ValueResult{EV: 0.20, Edge: 0.12}, 0.68))
	assert.False(t, SEligible(models.ValueResult{EV: 0.19, Edge: 0.12}, 0.68))
	assert.False(t, SEligible(models.ValueResult{EV: 0.20, Edge: 0.11}, 0.68))
	assert.False(t, SEligible(models.ValueResult{EV: 0.20, Edge: 0.12}, 0.67))
}
