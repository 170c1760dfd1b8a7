package projection

import (
	"math"

	"courtedge/internal/models"
)

// Dispersion assumptions for team markets, in points.
const (
	marginSigma = 12.0
	totalSigma  = 18.0
	homeCourt   = 3.0
)

// TeamInput is the evidence bundle for a team-market projection.
type TeamInput struct {
	Market  models.Market
	Odds    models.Odds
	Home    models.TeamForm
	Away    models.TeamForm
	Matchup models.MatchupFactors
}

// ProjectTeam forecasts moneyline, spread and total markets from the
// two teams' form records under a Normal score-margin model.
func (e *Engine) ProjectTeam(in TeamInput) (models.ProjectionResult, bool) {
	expMargin := teamStrength(in.Home) - teamStrength(in.Away) + homeCourt
	expTotal := ((in.Home.PointsForAvg+in.Away.PointsAgainstAvg)/2 +
		(in.Away.PointsForAvg+in.Home.PointsAgainstAvg)/2) * in.Matchup.PaceMultiplier

	var p, projected, margin float64
	switch in.Market.Kind {
	case models.MarketMoneyline:
		pHome := 1 - normalCDF((0-expMargin)/marginSigma)
		p = pHome
		if in.Market.Side == models.SideAway {
			p = 1 - pHome
		}
		projected = expMargin
		margin = math.Abs(expMargin)

	case models.MarketSpread:
		// side covers when its handicapped margin stays positive
		sideMargin := expMargin
		if in.Market.Side == models.SideAway {
			sideMargin = -expMargin
		}
		p = 1 - normalCDF((-in.Market.Line-sideMargin)/marginSigma)
		projected = sideMargin
		margin = sideMargin + in.Market.Line

	case models.MarketTotal:
		p = coverProbability(expTotal, totalSigma, in.Market.Line, in.Market.Side)
		projected = expTotal
		margin = expTotal - in.Market.Line
		if in.Market.Side == models.SideUnder {
			margin = in.Market.Line - expTotal
		}

	default:
		return models.ProjectionResult{}, false
	}

	if math.IsNaN(p) || math.IsNaN(projected) {
		return models.ProjectionResult{}, false
	}

	sample := len(in.Home.LastResults)
	if len(in.Away.LastResults) < sample {
		sample = len(in.Away.LastResults)
	}

	combinedP := clampProb(p + in.Matchup.TotalAdjustment)
	fighting := in.Odds.Valid() &&
		math.Abs(combinedP-clampProb(in.Odds.Implied())) > e.cfg.FightMarketThreshold

	return models.ProjectionResult{
		MarketKey:            in.Market.Key(),
		ProjectedValue:       projected,
		ProjectedProbability: combinedP,
		ProjectionMargin:     margin,
		Evidence: models.ProjectionEvidence{
			SampleSize:       sample,
			RecentWindowSize: sample,
			VolatilityCV:     models.ProfileFor(models.StatPoints).DefaultCV,
			MethodsUsed:      []string{PathDeterministic},
			ModelOnly:        sample < e.cfg.MinSample,
			FightingMarket:   fighting,
		},
	}, true
}

func teamStrength(form models.TeamForm) float64 {
	if form.StrengthIndex != 0 {
		return form.StrengthIndex
	}
	return form.PointsForAvg - form.PointsAgainstAvg
}
