package projection

import (
	"math"

	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

// Config parameterizes the multi-path forecaster.
type Config struct {
	// Path weights in order: deterministic, empirical, regression,
	// market-implied, bayesian. Renormalized over available paths;
	// the market weight only matters when it is the lone path.
	Weights [5]float64 `yaml:"weights"`

	// RecencyDecay in (0, 1]; 1 disables decay.
	RecencyDecay float64 `yaml:"recency_decay"`

	// LastK games feed the bayesian likelihood and the volatility CV.
	LastK int `yaml:"last_k"`

	// MinSample is the evidence floor below which a projection is
	// declared model-only.
	MinSample int `yaml:"min_sample"`

	DisagreementThreshold float64 `yaml:"disagreement_threshold"`
	FightMarketThreshold  float64 `yaml:"fight_market_threshold"`
}

// DefaultConfig returns the production path weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights:               [5]float64{0.45, 0.25, 0.20, 0.10, 0.05},
		RecencyDecay:          1.0,
		LastK:                 10,
		MinSample:             5,
		DisagreementThreshold: 0.10,
		FightMarketThreshold:  0.15,
	}
}

// Engine fuses the five projection paths into one ProjectionResult.
type Engine struct {
	cfg Config
}

// NewEngine creates a projection engine.
func NewEngine(cfg Config) *Engine {
	if cfg.RecencyDecay <= 0 || cfg.RecencyDecay > 1 {
		cfg.RecencyDecay = 1.0
	}
	if cfg.MinSample <= 0 {
		cfg.MinSample = 5
	}
	return &Engine{cfg: cfg}
}

// Input is the evidence bundle for one player-prop projection.
type Input struct {
	Market   models.Market
	Odds     models.Odds
	Log      []models.GameLogEntry
	Player   models.PlayerContext
	Matchup  models.MatchupFactors
	IsHome   bool
	DaysRest int
}

// Project produces the fused forecast for a player prop. The returned
// ok is false when no path could run at all.
func (e *Engine) Project(in Input) (models.ProjectionResult, bool) {
	weights := decayWeights(len(in.Log), e.cfg.RecencyDecay)

	cvWindow := in.Log
	if e.cfg.LastK > 0 && len(cvWindow) > e.cfg.LastK {
		cvWindow = cvWindow[len(cvWindow)-e.cfg.LastK:]
	}
	cv := coefficientOfVariation(series(cvWindow, in.Market.Stat), in.Market.Stat)

	pin := pathInput{
		stat:     in.Market.Stat,
		side:     in.Market.Side,
		line:     in.Market.Line,
		log:      in.Log,
		player:   in.Player,
		matchup:  in.Matchup,
		odds:     in.Odds,
		isHome:   in.IsHome,
		daysRest: in.DaysRest,
		weights:  weights,
		cv:       cv,
	}

	var paths []pathResult
	var notes []string
	runners := []struct {
		name string
		run  func() (pathResult, bool)
	}{
		{PathDeterministic, func() (pathResult, bool) { return deterministicPath(pin) }},
		{PathEmpirical, func() (pathResult, bool) { return empiricalPath(pin) }},
		{PathRegression, func() (pathResult, bool) { return regressionPath(pin) }},
		{PathMarketImplied, func() (pathResult, bool) { return marketImpliedPath(pin) }},
		{PathBayesian, func() (pathResult, bool) { return bayesianPath(pin, e.cfg.LastK) }},
	}
	for _, r := range runners {
		res, ok := r.run()
		if !ok {
			continue
		}
		if !res.valid() {
			notes = append(notes, r.name+" path dropped: non-finite output")
			continue
		}
		if res.note != "" {
			notes = append(notes, res.note)
		}
		paths = append(paths, res)
	}
	if len(paths) == 0 {
		return models.ProjectionResult{}, false
	}

	result := e.combine(in, paths, cv, notes)
	return result, true
}

var pathWeightIndex = map[string]int{
	PathDeterministic: 0,
	PathEmpirical:     1,
	PathRegression:    2,
	PathMarketImplied: 3,
	PathBayesian:      4,
}

// combine applies the weighted mean with the disagreement penalty
// bookkeeping. The market-implied path is held out as a signal unless
// it is the only path available.
func (e *Engine) combine(in Input, paths []pathResult, cv float64, notes []string) models.ProjectionResult {
	primary := make([]pathResult, 0, len(paths))
	var marketP float64
	hasMarket := false
	for _, p := range paths {
		if p.name == PathMarketImplied {
			marketP = p.prob
			hasMarket = true
			continue
		}
		primary = append(primary, p)
	}

	marketOnly := false
	if len(primary) == 0 {
		// No statistical path could run; the inverted price is all
		// we have.
		primary = paths
		marketOnly = true
	}

	var probSum, meanSum, meanWSum, wSum float64
	methods := make([]string, 0, len(primary))
	for _, p := range primary {
		w := e.cfg.Weights[pathWeightIndex[p.name]]
		if w <= 0 {
			continue
		}
		probSum += w * p.prob
		wSum += w
		if !p.meanless {
			meanSum += w * p.mean
			meanWSum += w
		}
		methods = append(methods, p.name)
	}
	if wSum == 0 {
		wSum = 1
	}
	combinedP := clampProb(probSum / wSum)

	var projected float64
	if meanWSum > 0 {
		projected = meanSum / meanWSum
	}

	// Matchup shift is additive on the combined probability.
	combinedP = clampProb(combinedP + in.Matchup.TotalAdjustment)

	disagreement := pathDisagreement(primary)
	fighting := hasMarket && math.Abs(combinedP-marketP) > e.cfg.FightMarketThreshold
	if fighting {
		log.Debug().
			Str("market", in.Market.Key()).
			Float64("p_model", combinedP).
			Float64("p_market", marketP).
			Msg("projection fighting the market")
	}

	margin := projected - in.Market.Line
	if in.Market.Side == models.SideUnder {
		margin = in.Market.Line - projected
	}

	sample := len(in.Log)
	modelOnly := marketOnly || sample < e.cfg.MinSample

	recentWindow := e.cfg.LastK
	if sample < recentWindow {
		recentWindow = sample
	}

	return models.ProjectionResult{
		MarketKey:            in.Market.Key(),
		ProjectedValue:       projected,
		ProjectedProbability: combinedP,
		ProjectionMargin:     margin,
		Evidence: models.ProjectionEvidence{
			SampleSize:       sample,
			RecentWindowSize: recentWindow,
			BayesEffectiveN:  10 + float64(recentWindow),
			VolatilityCV:     cv,
			MethodsUsed:      methods,
			ModelOnly:        modelOnly,
			Disagreement:     disagreement,
			FightingMarket:   fighting,
			Notes:            notes,
		},
	}
}

// pathDisagreement is the coefficient of variation of the per-path
// means; meanless paths do not participate.
func pathDisagreement(paths []pathResult) float64 {
	means := make([]float64, 0, len(paths))
	for _, p := range paths {
		if !p.meanless {
			means = append(means, p.mean)
		}
	}
	if len(means) < 2 {
		return 0
	}
	mu, _ := mean(means)
	if mu < 1e-9 {
		return 0
	}
	return stddev(means) / mu
}
