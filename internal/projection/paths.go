package projection

import (
	"math"
	"strings"

	"courtedge/internal/models"
)

// Path names recorded in projection evidence.
const (
	PathDeterministic = "deterministic"
	PathEmpirical     = "empirical"
	PathRegression    = "regression"
	PathMarketImplied = "market_implied"
	PathBayesian      = "bayesian"
)

// pathResult is one forecaster's view of a market: a projected mean for
// the stat and a probability that the line is covered.
type pathResult struct {
	name string
	mean float64
	prob float64
	// meanless paths (market-implied) contribute a probability only
	meanless bool
	note     string
}

func (p pathResult) valid() bool {
	return !math.IsNaN(p.prob) && !math.IsInf(p.prob, 0) &&
		(p.meanless || (!math.IsNaN(p.mean) && !math.IsInf(p.mean, 0)))
}

// pathInput bundles everything the per-player paths consume.
type pathInput struct {
	stat     models.StatKind
	side     models.Side
	line     float64
	log      []models.GameLogEntry // horizon-filtered, ascending
	player   models.PlayerContext
	matchup  models.MatchupFactors
	odds     models.Odds
	isHome   bool
	daysRest int
	weights  []float64 // recency weights aligned with log
	cv       float64   // observed CV over the window
}

// deterministicPath projects minutes x per-minute rate x pace and
// defense multipliers, with cover probability from a Normal(mu, CV*mu)
// approximation. Blowout risk stays out of the mean; it reaches the
// combined probability through the additive matchup shift.
func deterministicPath(in pathInput) (pathResult, bool) {
	mins := minutesSeries(in.log)
	stats := series(in.log, in.stat)

	expMinutes, ok1 := weightedMean(mins, in.weights)
	if len(in.player.RecentMinutes) >= 3 {
		// The context window reflects current role better than the
		// full log when the two disagree.
		recent, ok := mean(in.player.RecentMinutes)
		if ok {
			expMinutes = recent
			ok1 = true
		}
	}
	totalStat, ok2 := weightedMean(stats, in.weights)
	totalMin, ok3 := weightedMean(mins, in.weights)
	if !ok1 || !ok2 || !ok3 || totalMin < 1 || expMinutes <= 0 {
		return pathResult{}, false
	}

	perMinute := totalStat / totalMin
	mu := expMinutes * perMinute * in.matchup.PaceMultiplier * in.matchup.DefenseMultiplier
	sigma := in.cv * mu
	return pathResult{
		name: PathDeterministic,
		mean: mu,
		prob: coverProbability(mu, sigma, in.line, in.side),
	}, true
}

// empiricalPath is the covered fraction of the window, recency
// weighted, filtered to today's venue when enough filtered games exist.
func empiricalPath(in pathInput) (pathResult, bool) {
	if len(in.log) == 0 {
		return pathResult{}, false
	}

	filtered := make([]models.GameLogEntry, 0, len(in.log))
	for _, e := range in.log {
		if e.IsHome == in.isHome {
			filtered = append(filtered, e)
		}
	}
	window := in.log
	weights := in.weights
	if len(filtered) >= 5 {
		window = filtered
		weights = decayWeightsFor(window, in.weights, in.log)
	}

	var covered, total, statSum float64
	for i, e := range window {
		v := e.Stat(in.stat)
		if math.IsNaN(v) {
			continue
		}
		w := weights[i]
		if (in.side == models.SideOver && v > in.line) || (in.side == models.SideUnder && v < in.line) {
			covered += w
		}
		total += w
		statSum += v * w
	}
	if total == 0 {
		return pathResult{}, false
	}
	return pathResult{
		name: PathEmpirical,
		mean: statSum / total,
		prob: covered / total,
	}, true
}

// decayWeightsFor realigns recency weights after venue filtering.
func decayWeightsFor(window []models.GameLogEntry, weights []float64, full []models.GameLogEntry) []float64 {
	byDate := make(map[string]float64, len(full))
	for i, e := range full {
		byDate[e.Date.Format("2006-01-02")] = weights[i]
	}
	out := make([]float64, len(window))
	for i, e := range window {
		w, ok := byDate[e.Date.Format("2006-01-02")]
		if !ok {
			w = 1
		}
		out[i] = w
	}
	return out
}

// regressionPath fits stat on {minutes, is_home, days_rest} and
// evaluates at today's context. Features constant over the window
// (every game at home, identical rest) are collinear with the
// intercept, so they are excluded from the fit and noted.
func regressionPath(in pathInput) (pathResult, bool) {
	const minFit = 8
	if len(in.log) < minFit {
		return pathResult{}, false
	}

	featureNames := []string{"minutes", "is_home", "days_rest"}
	y := make([]float64, 0, len(in.log))
	rows := make([][]float64, 0, len(in.log))
	for _, e := range in.log {
		v := e.Stat(in.stat)
		if math.IsNaN(v) {
			continue
		}
		home := 0.0
		if e.IsHome {
			home = 1.0
		}
		y = append(y, v)
		rows = append(rows, []float64{e.Minutes, home, float64(e.DaysRest)})
	}
	if len(y) < minFit {
		return pathResult{}, false
	}

	kept, dropped := varyingColumns(rows)
	if len(kept) == 0 {
		return pathResult{}, false
	}
	xs := make([][]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, len(kept))
		for j, c := range kept {
			row[j] = r[c]
		}
		xs[i] = row
	}

	coef, ok := olsFit(y, xs)
	if !ok {
		return pathResult{}, false
	}

	expMinutes, ok := mean(in.player.RecentMinutes)
	if !ok {
		expMinutes, ok = mean(minutesSeries(in.log))
		if !ok {
			return pathResult{}, false
		}
	}
	home := 0.0
	if in.isHome {
		home = 1.0
	}
	today := []float64{expMinutes, home, float64(in.daysRest)}

	mu := coef[0]
	for j, c := range kept {
		mu += coef[j+1] * today[c]
	}

	var note string
	if len(dropped) > 0 {
		names := make([]string, len(dropped))
		for i, c := range dropped {
			names[i] = featureNames[c]
		}
		note = "regression fit excluded constant features: " + strings.Join(names, ", ")
	}

	profile := models.ProfileFor(in.stat)
	mu = clamp(mu, profile.MinValue, profile.MaxValue)
	sigma := in.cv * mu
	return pathResult{
		name: PathRegression,
		mean: mu,
		prob: coverProbability(mu, sigma, in.line, in.side),
		note: note,
	}, true
}

// marketImpliedPath inverts the offered odds. It participates only as a
// disagreement signal, never in the combination, unless no other path
// is available.
func marketImpliedPath(in pathInput) (pathResult, bool) {
	if !in.odds.Valid() {
		return pathResult{}, false
	}
	return pathResult{
		name:     PathMarketImplied,
		prob:     clampProb(in.odds.Implied()),
		meanless: true,
	}, true
}

// bayesianPath shrinks the recent window toward the season baseline:
// a Beta-style update on cover rate and a Normal update on the mean,
// prior strength fixed at 10 effective games.
func bayesianPath(in pathInput, lastK int) (pathResult, bool) {
	const priorN = 10.0
	if len(in.log) == 0 {
		return pathResult{}, false
	}

	seasonStats := series(in.log, in.stat)
	seasonMean, ok := mean(seasonStats)
	if !ok {
		return pathResult{}, false
	}
	var seasonCovers float64
	for _, v := range seasonStats {
		if (in.side == models.SideOver && v > in.line) || (in.side == models.SideUnder && v < in.line) {
			seasonCovers++
		}
	}
	seasonRate := seasonCovers / float64(len(seasonStats))

	recent := in.log
	if lastK > 0 && len(recent) > lastK {
		recent = recent[len(recent)-lastK:]
	}
	recentStats := series(recent, in.stat)
	recentMean, ok := mean(recentStats)
	if !ok {
		return pathResult{}, false
	}
	var recentCovers float64
	for _, v := range recentStats {
		if (in.side == models.SideOver && v > in.line) || (in.side == models.SideUnder && v < in.line) {
			recentCovers++
		}
	}

	k := float64(len(recentStats))
	postMean := (priorN*seasonMean + k*recentMean) / (priorN + k)
	postRate := (priorN*seasonRate + recentCovers) / (priorN + k)

	return pathResult{
		name: PathBayesian,
		mean: postMean,
		prob: clampProb(postRate),
	}, true
}
