package value

import (
	"fmt"
	"math"

	"courtedge/internal/models"
)

// Tolerances for the EV identity ev = p*odds - 1.
const (
	evRepairTolerance = 1e-3 // repair and note
	evHardTolerance   = 1e-2 // integrity failure, downgrade to D
)

// MinEVPerProb is the efficiency floor ev/p applied before tiering.
const MinEVPerProb = 0.08

// Compute derives the full mispricing arithmetic from a projected
// probability and the offered decimal odds. p must be positive: a
// zero-probability selection has no fair odds and is discarded by the
// caller.
func Compute(p float64, odds models.Odds) (models.ValueResult, error) {
	if p <= 0 {
		return models.ValueResult{}, &models.IntegrityError{Field: "fair_odds", Detail: "undefined at p=0"}
	}
	o := float64(odds)
	fair := 1 / p
	implied := 1 / o
	return models.ValueResult{
		FairOdds:   fair,
		Odds:       o,
		Mispricing: o - fair,
		ImpliedP:   implied,
		Edge:       p - implied,
		EV:         p*o - 1,
		EVPerProb:  (p*o - 1) / p,
	}, nil
}

// VerifyIntegrity re-checks the EV identity on a value result that may
// have been assembled from upstream-delivered numbers. Small drift is
// repaired in place with an EVRecomputed note; drift beyond the hard
// tolerance is an IntegrityError and the recommendation must be
// downgraded to D.
func VerifyIntegrity(v *models.ValueResult, p float64) (repaired bool, err error) {
	if p <= 0 {
		return false, &models.IntegrityError{Field: "fair_odds", Detail: "undefined at p=0"}
	}
	expected := p*v.Odds - 1
	drift := math.Abs(v.EV - expected)
	if drift <= evRepairTolerance {
		return false, nil
	}

	hard := drift > evHardTolerance
	v.EV = expected
	v.EVPerProb = expected / p
	v.FairOdds = 1 / p
	v.ImpliedP = 1 / v.Odds
	v.Edge = p - v.ImpliedP
	v.Mispricing = v.Odds - v.FairOdds
	if hard {
		return true, &models.IntegrityError{
			Field:  "ev",
			Detail: fmt.Sprintf("drift %.4f exceeds hard tolerance", drift),
		}
	}
	return true, nil
}

// FilterDecision applies the pre-tier quality filters. sEligible is
// whether the selection would clear the S gate, which exempts it from
// the ev/p efficiency floor.
type FilterDecision struct {
	Keep   bool
	Reason string
}

// Filter decides whether a selection survives to tiering.
func Filter(v models.ValueResult, p float64, watchlist, sEligible bool) FilterDecision {
	if v.Edge <= 0 {
		return FilterDecision{Keep: false, Reason: "non-positive edge"}
	}
	if p < 0.50 && !watchlist {
		return FilterDecision{Keep: false, Reason: "probability below coin flip"}
	}
	if v.EVPerProb < MinEVPerProb && !sEligible {
		return FilterDecision{Keep: false, Reason: "ev per probability below floor"}
	}
	return FilterDecision{Keep: true}
}

// KellyStake returns the quarter-Kelly stake fraction for a selection,
// capped at 5% of bankroll. Advisory only; it never affects tiering.
func KellyStake(p float64, odds models.Odds) float64 {
	b := float64(odds) - 1
	if b <= 0 || p <= 0 {
		return 0
	}
	q := 1 - p
	kelly := (b*p - q) / b
	if kelly <= 0 {
		return 0
	}
	return math.Min(kelly*0.25, 0.05)
}
