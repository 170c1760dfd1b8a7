package application

import (
	"fmt"
	"math"

	"courtedge/internal/models"
)

// Violation labels surfaced in ValidationResult and tallied by Health.
const (
	violationEVIdentity  = "ev identity broken"
	violationSampleFloor = "sample floor broken"
)

const identityTolerance = 1e-3

// Validate checks one recommendation against the pipeline invariants
// and returns every violation found.
func Validate(r models.Recommendation) models.ValidationResult {
	var violations []string

	p := r.Projection.ProjectedProbability
	odds := float64(r.Odds)

	// EV identity: ev = p*odds - 1. Integrity-downgraded entries carry
	// the repaired value and still satisfy this.
	if math.Abs(r.Value.EV-(p*odds-1)) > identityTolerance {
		violations = append(violations, violationEVIdentity)
	}

	if p < 0 || p > 1 {
		violations = append(violations, fmt.Sprintf("probability %.4f outside [0,1]", p))
	}
	if r.Confidence.Final < 0 || r.Confidence.Final > 95 {
		violations = append(violations, fmt.Sprintf("confidence %.2f outside [0,95]", r.Confidence.Final))
	}

	if p > 0 && math.Abs(r.Value.FairOdds-1/p) > identityTolerance {
		violations = append(violations, "fair odds not the inverse of probability")
	}

	if r.Tier != models.TierD &&
		r.Projection.Evidence.SampleSize < 5 &&
		!r.Projection.Evidence.ModelOnly {
		violations = append(violations, violationSampleFloor)
	}

	if !tierConsistent(r) {
		violations = append(violations, "tier does not match its gate")
	}

	return models.ValidationResult{OK: len(violations) == 0, Violations: violations}
}

// tierConsistent re-derives the gate for the recommendation's numbers
// and checks the stamped tier against it. Correlation demotions and
// integrity downgrades legitimately sit below their gate and are
// recognized by their notes.
func tierConsistent(r models.Recommendation) bool {
	if r.Tier == models.TierC && r.HasNote(models.NoteExcessCorrelation) {
		return true
	}
	if r.Tier == models.TierD && r.HasNote(models.NoteIntegrityError) {
		return true
	}
	// The A-tier edge floor is configurable (strict 0.08, legacy 0.05);
	// a tier matching either reading is consistent.
	return r.Tier == gateFor(r, 0.08) || r.Tier == gateFor(r, 0.05)
}

// gateFor mirrors the first-match-wins gate table.
func gateFor(r models.Recommendation, aEdge float64) models.Tier {
	p := r.Projection.ProjectedProbability
	v := r.Value
	switch {
	case v.EV >= 0.20 && v.Edge >= 0.12 && p >= 0.68:
		return models.TierS
	case v.EV >= 0.10 && v.Edge >= aEdge && p >= 0.75:
		return models.TierA
	case v.EV >= 0.05 && v.Edge >= 0.04:
		return models.TierB
	case r.Confidence.Final >= 60 && v.Edge >= 0.05 && v.Mispricing >= 0.10 && r.Projection.Evidence.SampleSize >= 5:
		return models.TierC
	default:
		return models.TierD
	}
}
