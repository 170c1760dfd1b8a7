package confidence

import (
	"math"

	"courtedge/internal/models"
)

// Penalty reason keys logged in ConfidenceResult.Penalties.
const (
	ReasonSampleCap      = "sample_cap"
	ReasonVolatility     = "volatility"
	ReasonRoleChange     = "role_change"
	ReasonMinutesVar     = "minutes_variance"
	ReasonMatchup        = "matchup"
	ReasonLineDifficulty = "line_difficulty"
	ReasonDisagreement   = "disagreement"
	ReasonCorrelation    = "correlation"
)

// Config holds the caps/weights table the confidence chain runs on.
// There is a single pipeline; variants are expressed through this
// table, not through alternative engines.
type Config struct {
	MaxConfidence float64 `yaml:"max_confidence"` // hard ceiling, 95

	// highPenaltyFloor is the magnitude at which a penalty counts as
	// HIGH for risk classification.
	HighPenaltyFloor float64 `yaml:"high_penalty_floor"`
}

// DefaultConfig returns the production confidence table.
func DefaultConfig() Config {
	return Config{
		MaxConfidence:    95,
		HighPenaltyFloor: 10,
	}
}

// Engine converts a projection and its evidentiary context into a
// bounded confidence score with a risk classification.
type Engine struct {
	cfg Config
}

// NewEngine creates a confidence engine.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxConfidence <= 0 {
		cfg.MaxConfidence = 95
	}
	if cfg.HighPenaltyFloor <= 0 {
		cfg.HighPenaltyFloor = 10
	}
	return &Engine{cfg: cfg}
}

// Input bundles what the confidence chain consumes. MatchupShift is
// the additive probability adjustment from the matchup engine.
type Input struct {
	Projection   models.ProjectionResult
	Player       models.PlayerContext
	Market       models.Market
	Odds         models.Odds
	MatchupShift float64
}

// sampleCap is the hard upper bound on confidence by games observed.
func sampleCap(n int) float64 {
	switch {
	case n < 15:
		return 75
	case n < 30:
		return 85
	case n < 60:
		return 90
	default:
		return 95
	}
}

// shrinkPriorWeight is the league-mean prior weight by sample size.
func shrinkPriorWeight(n int) float64 {
	switch {
	case n < 8:
		return 15
	case n < 12:
		return 10
	case n < 20:
		return 6
	default:
		return 3
	}
}

// Score runs the full adjustment chain: sample cap, Bayesian shrinkage
// toward the 0.50 league mean, then the volatility, role, matchup,
// line-difficulty and disagreement adjustments, every step logged in
// the penalties map.
func (e *Engine) Score(in Input) models.ConfidenceResult {
	p := in.Projection.ProjectedProbability
	n := in.Projection.Evidence.SampleSize
	penalties := make(map[string]float64)
	var flags []string

	base := p * 100

	cap := sampleCap(n)
	capped := math.Min(base, cap)
	if capped < base {
		penalties[ReasonSampleCap] = capped - base
	}

	prior := shrinkPriorWeight(n)
	shrunkP := ((prior * 0.5) + (float64(n) * (capped / 100))) / (prior + float64(n))
	afterShrinkage := shrunkP * 100

	conf := afterShrinkage

	if v := volatilityPenalty(in.Projection.Evidence.VolatilityCV); v != 0 {
		penalties[ReasonVolatility] = v
		conf += v
	}

	if in.Player.RoleTrend != "" && in.Player.RoleTrend != models.RoleStable {
		penalties[ReasonRoleChange] = -15
		conf -= 15
	}
	if minutesVolatile(in.Player.RecentMinutes) {
		penalties[ReasonMinutesVar] = -5
		conf -= 5
	}

	// Matchup shift: a ±0.15 probability adjustment becomes ±7.5
	// points, clamped to ±10.
	matchupAdj := clamp(in.MatchupShift*50, -10, 10)
	if matchupAdj != 0 {
		penalties[ReasonMatchup] = matchupAdj
		conf += matchupAdj
	}

	if in.Market.Stat == models.StatPoints {
		switch {
		case in.Market.Line >= 35:
			penalties[ReasonLineDifficulty] = -10
			conf -= 10
		case in.Market.Line >= 30:
			penalties[ReasonLineDifficulty] = -5
			conf -= 5
		}
	}

	if in.Projection.Evidence.Disagreement > 0.10 {
		penalties[ReasonDisagreement] = -5
		conf -= 5
	}

	final := clamp(math.Min(conf, cap), 0, e.cfg.MaxConfidence)

	// Market-efficiency guard: thin edge inside the efficient zone
	// without strong conviction is flagged, not scored down.
	if in.Odds.Valid() {
		impliedP := in.Odds.Implied()
		edge := p - impliedP
		if edge < 0.03 && impliedP >= 0.55 && impliedP <= 0.60 && final < 85 {
			flags = append(flags, models.FlagSuppressInefficient)
		}
	}

	result := models.ConfidenceResult{
		Base:           base,
		AfterShrinkage: afterShrinkage,
		Final:          final,
		Penalties:      penalties,
		Flags:          flags,
	}
	e.classify(&result, n)
	return result
}

// ApplyPenalty adds a post-hoc penalty (correlation control) and
// re-derives the final score and risk class.
func (e *Engine) ApplyPenalty(result *models.ConfidenceResult, reason string, amount float64, sampleSize int) {
	if result.Penalties == nil {
		result.Penalties = make(map[string]float64)
	}
	result.Penalties[reason] += amount
	result.Final = clamp(result.Final+amount, 0, e.cfg.MaxConfidence)
	e.classify(result, sampleSize)
}

// classify derives the risk class from the final score and the count
// of HIGH-magnitude penalties; small samples count as one.
func (e *Engine) classify(result *models.ConfidenceResult, sampleSize int) {
	high := 0
	for _, v := range result.Penalties {
		if v <= -e.cfg.HighPenaltyFloor {
			high++
		}
	}
	if sampleSize < 8 {
		high++
	}

	switch {
	case result.Final < 50 || high >= 3:
		result.Risk = models.RiskExtreme
	case result.Final < 60 || high == 2:
		result.Risk = models.RiskHigh
	case result.Final < 70 || high == 1:
		result.Risk = models.RiskMedium
	default:
		result.Risk = models.RiskLow
	}
	result.MultiSafe = result.Risk == models.RiskLow || result.Risk == models.RiskMedium
}

func volatilityPenalty(cv float64) float64 {
	switch {
	case cv > 0.40:
		return -15
	case cv > 0.30:
		return -8
	case cv > 0.20:
		return -3
	default:
		return 0
	}
}

// minutesVolatile reports whether the spread of the recent minutes
// window exceeds 20% of its mean.
func minutesVolatile(recent []float64) bool {
	if len(recent) < 3 {
		return false
	}
	var sum float64
	for _, m := range recent {
		sum += m
	}
	mu := sum / float64(len(recent))
	if mu <= 0 {
		return false
	}
	var sq float64
	for _, m := range recent {
		d := m - mu
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(len(recent)))
	return sd/mu > 0.20
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
