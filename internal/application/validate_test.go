package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"courtedge/internal/models"
)

// validRec builds a recommendation whose numbers satisfy every
// invariant: p=0.78 at 1.436 is tier A with a consistent EV identity.
func validRec() models.Recommendation {
	p := 0.78
	odds := 1.12 / p
	return models.Recommendation{
		Odds: models.Odds(odds),
		Projection: models.ProjectionResult{
			ProjectedProbability: p,
			Evidence:             models.ProjectionEvidence{SampleSize: 25},
		},
		Confidence: models.ConfidenceResult{Final: 72},
		Value: models.ValueResult{
			FairOdds:   1 / p,
			Odds:       odds,
			ImpliedP:   1 / odds,
			Edge:       p - 1/odds,
			EV:         p*odds - 1,
			EVPerProb:  (p*odds - 1) / p,
			Mispricing: odds - 1/p,
		},
		Tier: models.TierA,
	}
}

func TestValidateCleanRecommendation(t *testing.T) {
	result := Validate(validRec())
	assert.True(t, result.OK)
	assert.Empty(t, result.Violations)
}

func TestValidateEVIdentity(t *testing.T) {
	r := validRec()
	r.Value.EV += 0.02
	result := Validate(r)
	assert.False(t, result.OK)
	assert.Contains(t, result.Violations, violationEVIdentity)
}

func TestValidateProbabilityBounds(t *testing.T) {
	r := validRec()
	r.Projection.ProjectedProbability = 1.2
	result := Validate(r)
	assert.False(t, result.OK)
}

func TestValidateConfidenceCeiling(t *testing.T) {
	r := validRec()
	r.Confidence.Final = 97
	result := Validate(r)
	assert.False(t, result.OK)
}

func TestValidateFairOddsIdentity(t *testing.T) {
	r := validRec()
	r.Value.FairOdds = 1.50
	result := Validate(r)
	assert.False(t, result.OK)
	assert.Contains(t, result.Violations, "fair odds not the inverse of probability")
}

func TestValidateSampleFloor(t *testing.T) {
	r := validRec()
	r.Projection.Evidence.SampleSize = 3
	result := Validate(r)
	assert.False(t, result.OK)
	assert.Contains(t, result.Violations, violationSampleFloor)

	// tier D and market-fallback entries are exempt
	r.Tier = models.TierD
	assert.NotContains(t, Validate(r).Violations, violationSampleFloor)

	r = validRec()
	r.Projection.Evidence.SampleSize = 0
	r.Projection.Evidence.ModelOnly = true
	assert.NotContains(t, Validate(r).Violations, violationSampleFloor)
}

func TestValidateTierConsistency(t *testing.T) {
	r := validRec()
	r.Tier = models.TierS // numbers only support A
	result := Validate(r)
	assert.False(t, result.OK)
	assert.Contains(t, result.Violations, "tier does not match its gate")
}

func TestValidateAcceptsLegitimateDemotions(t *testing.T) {
	demoted := validRec()
	demoted.Tier = models.TierC
	demoted.Notes = []string{models.NoteExcessCorrelation}
	assert.True(t, Validate(demoted).OK)

	downgraded := validRec()
	downgraded.Tier = models.TierD
	downgraded.Notes = []string{models.NoteIntegrityError}
	assert.True(t, Validate(downgraded).OK)
}

func TestValidateAcceptsEitherAEdgeFloor(t *testing.T) {
	// p=0.80 at 1.375: EV 0.10 with edge 0.073, between the legacy 0.05
	// and strict 0.08 A floors
	p := 0.80
	odds := 1.375
	r := validRec()
	r.Odds = models.Odds(odds)
	r.Projection.ProjectedProbability = p
	r.Value = models.ValueResult{
		FairOdds:   1 / p,
		Odds:       odds,
		ImpliedP:   1 / odds,
		Edge:       p - 1/odds,
		EV:         p*odds - 1,
		EVPerProb:  (p*odds - 1) / p,
		Mispricing: odds - 1/p,
	}

	r.Tier = models.TierA // legacy reading
	assert.True(t, Validate(r).OK)

	r.Tier = models.TierB // strict reading
	assert.True(t, Validate(r).OK)
}

func TestHealthSnapshot(t *testing.T) {
	good := validRec()
	broken := validRec()
	broken.Value.EV += 0.05

	thin := validRec()
	thin.Projection.Evidence.SampleSize = 2

	snap := Health([]models.Recommendation{good, broken, thin})
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, 3, snap.TierCounts[models.TierA])
	assert.Equal(t, 1, snap.EVIdentityViolations)
	assert.Equal(t, 1, snap.SampleFloorViolations)
	assert.InDelta(t, 0.78, snap.MeanP, 1e-9)
	assert.InDelta(t, 72, snap.MeanConfidence, 1e-9)
}

func TestHealthEmpty(t *testing.T) {
	snap := Health(nil)
	assert.Equal(t, 0, snap.Count)
	assert.Equal(t, 0.0, snap.MeanP)
}
