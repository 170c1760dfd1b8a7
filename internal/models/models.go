package models

import (
	"fmt"
	"strings"
	"time"
)

// Side identifies which side of a market a selection is on.
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
	SideHome  Side = "home"
	SideAway  Side = "away"
)

// StatKind enumerates the player-prop stat families the pipeline understands.
type StatKind string

const (
	StatPoints   StatKind = "points"
	StatRebounds StatKind = "rebounds"
	StatAssists  StatKind = "assists"
	StatThrees   StatKind = "threes"
	StatBlocks   StatKind = "blocks"
	StatSteals   StatKind = "steals"
)

// AllStats lists the recognized stat families in a stable order.
var AllStats = []StatKind{StatPoints, StatRebounds, StatAssists, StatThrees, StatBlocks, StatSteals}

// MarketKind is the tagged-variant discriminator for Market.
type MarketKind string

const (
	MarketMoneyline  MarketKind = "moneyline"
	MarketSpread     MarketKind = "spread"
	MarketTotal      MarketKind = "total"
	MarketPlayerProp MarketKind = "player_prop"
)

// Odds are decimal odds, strictly greater than 1.0.
type Odds float64

// Valid reports whether the odds are payable decimal odds.
func (o Odds) Valid() bool {
	return float64(o) > 1.0
}

// Implied returns the bookmaker-implied probability 1/odds.
func (o Odds) Implied() float64 {
	return 1.0 / float64(o)
}

// Market is a tagged variant over the recognized market shapes.
// Line carries the numeric threshold for spread/total/prop markets;
// whole-number phrasings ("4+") are stored as k-0.5 by the adapters.
type Market struct {
	Kind     MarketKind `json:"kind"`
	Side     Side       `json:"side"`
	Line     float64    `json:"line,omitempty"`
	PlayerID string     `json:"player_id,omitempty"`
	Stat     StatKind   `json:"stat,omitempty"`
}

// Key returns a stable identity string for the market.
func (m Market) Key() string {
	switch m.Kind {
	case MarketPlayerProp:
		return fmt.Sprintf("prop:%s:%s:%s:%.1f", m.PlayerID, m.Stat, m.Side, m.Line)
	case MarketSpread, MarketTotal:
		return fmt.Sprintf("%s:%s:%.1f", m.Kind, m.Side, m.Line)
	default:
		return fmt.Sprintf("%s:%s", m.Kind, m.Side)
	}
}

// IsPlayerProp reports whether the market is a player prop.
func (m Market) IsPlayerProp() bool {
	return m.Kind == MarketPlayerProp
}

// Game identifies one scheduled matchup. Identity is by
// (tip_time, away_team, home_team); GameID is a convenience handle.
type Game struct {
	GameID   string    `json:"game_id"`
	TipTime  time.Time `json:"tip_time"`
	AwayTeam string    `json:"away_team"`
	HomeTeam string    `json:"home_team"`
}

// Key returns the identity string of the game.
func (g Game) Key() string {
	return fmt.Sprintf("%s|%s@%s", g.TipTime.UTC().Format(time.RFC3339), g.AwayTeam, g.HomeTeam)
}

func (g Game) String() string {
	return fmt.Sprintf("%s @ %s (%s)", g.AwayTeam, g.HomeTeam, g.TipTime.Format("Jan 2 15:04"))
}

// GameLogEntry is one historical game for a player. For a given player,
// entries form a strictly increasing sequence by date.
type GameLogEntry struct {
	Date     time.Time             `json:"date"`
	Opponent string                `json:"opponent"`
	IsHome   bool                  `json:"is_home"`
	Minutes  float64               `json:"minutes"`
	Stats    map[StatKind]float64  `json:"stats"`
	Win      bool                  `json:"win"`
	DaysRest int                   `json:"days_rest,omitempty"`
}

// Stat returns the recorded value for the stat family, 0 if absent.
func (e GameLogEntry) Stat(k StatKind) float64 {
	return e.Stats[k]
}

// RoleTrend describes the direction of a player's recent usage.
type RoleTrend string

const (
	RoleStable  RoleTrend = "stable"
	RoleRising  RoleTrend = "rising"
	RoleFalling RoleTrend = "falling"
)

// PlayerContext carries identity plus the usage signals the confidence
// engine penalizes on.
type PlayerContext struct {
	PlayerID      string    `json:"player_id"`
	DisplayName   string    `json:"display_name"`
	TeamID        string    `json:"team_id"`
	RecentMinutes []float64 `json:"recent_minutes"`
	RoleTrend     RoleTrend `json:"role_trend"`
}

// TeamForm is the static-per-run record for one team.
type TeamForm struct {
	TeamID           string    `json:"team_id"`
	LastResults      []bool    `json:"last_results"`
	PointsForAvg     float64   `json:"points_for_avg"`
	PointsAgainstAvg float64   `json:"points_against_avg"`
	PaceEstimate     float64   `json:"pace_estimate"`
	HomeAwaySplit    float64   `json:"home_away_split"`
	StrengthIndex    float64   `json:"strength_index"`

	// Per-stat allowed multipliers, 1.00 = league mean. Missing -> 1.00.
	AllowedMultipliers map[StatKind]float64 `json:"allowed_multipliers"`
}

// Allowed returns the normalized allowed multiplier for a stat family,
// defaulting to the league mean when absent.
func (t TeamForm) Allowed(k StatKind) (float64, bool) {
	if t.AllowedMultipliers == nil {
		return 1.0, false
	}
	v, ok := t.AllowedMultipliers[k]
	if !ok || v <= 0 {
		return 1.0, false
	}
	return v, true
}

// MatchupFactors are the opponent/pace adjustments for one
// (team, opponent, stat family) triple.
type MatchupFactors struct {
	PaceMultiplier      float64  `json:"pace_multiplier"`       // [0.85, 1.15]
	DefenseMultiplier   float64  `json:"defense_multiplier"`    // [0.85, 1.15]
	BlowoutRisk         float64  `json:"blowout_risk"`          // [0.90, 1.00]
	TotalMultiplier     float64  `json:"total_multiplier"`
	TotalAdjustment     float64  `json:"total_adjustment"`      // additive probability shift
	Favorable           bool     `json:"favorable"`
	OpponentRankForStat int      `json:"opponent_rank_for_stat"`
	Notes               []string `json:"notes,omitempty"`
}

// ProjectionEvidence summarizes the evidentiary context behind a projection.
type ProjectionEvidence struct {
	SampleSize       int      `json:"sample_size"`
	RecentWindowSize int      `json:"recent_window_size"`
	BayesEffectiveN  float64  `json:"bayes_effective_n"`
	VolatilityCV     float64  `json:"volatility_cv"`
	MethodsUsed      []string `json:"methods_used"`
	ModelOnly        bool     `json:"model_only"`
	Disagreement     float64  `json:"disagreement"`
	FightingMarket   bool     `json:"fighting_market"`
	Notes            []string `json:"notes,omitempty"`
}

// ProjectionResult is the fused multi-path forecast for one market.
type ProjectionResult struct {
	MarketKey            string             `json:"market_key"`
	ProjectedValue       float64            `json:"projected_value"`
	ProjectedProbability float64            `json:"projected_probability"` // [0,1]
	ProjectionMargin     float64            `json:"projection_margin"`
	Evidence             ProjectionEvidence `json:"evidence"`
}

// RiskLevel classifies a confidence result.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// ConfidenceResult is the bounded confidence score with its audit trail.
type ConfidenceResult struct {
	Base           float64            `json:"base"`
	AfterShrinkage float64            `json:"after_shrinkage"`
	Final          float64            `json:"final"` // [0, 95]
	Penalties      map[string]float64 `json:"penalties"`
	Risk           RiskLevel          `json:"risk"`
	MultiSafe      bool               `json:"multi_safe"`
	Flags          []string           `json:"flags,omitempty"`
}

// ValueResult carries the mispricing arithmetic for one selection.
type ValueResult struct {
	FairOdds   float64 `json:"fair_odds"`
	Odds       float64 `json:"odds"`
	Mispricing float64 `json:"mispricing"`
	ImpliedP   float64 `json:"implied_p"`
	Edge       float64 `json:"edge"`
	EV         float64 `json:"ev"`
	EVPerProb  float64 `json:"ev_per_prob"`
}

// Tier is the S/A/B/C/D quality classification. C is do-not-bet, D is avoid.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Rank returns the sort rank of the tier, S first.
func (t Tier) Rank() int {
	switch t {
	case TierS:
		return 0
	case TierA:
		return 1
	case TierB:
		return 2
	case TierC:
		return 3
	default:
		return 4
	}
}

// Well-known warning and note labels attached to recommendations.
const (
	NoteEVRecomputed      = "EVRecomputed"
	NoteExcessCorrelation = "ExcessCorrelation"
	NoteIntegrityError    = "IntegrityError"
	NoteWatchlist         = "Watchlist"

	WarnMinutesVolatility = "MinutesVolatility"
	WarnFightingMarket    = "FightingMarket"
	WarnRoleChange        = "RoleChange"

	FlagSuppressInefficient = "SuppressInEfficientZone"
)

// Recommendation is the final per-selection output of the pipeline.
type Recommendation struct {
	Game       Game             `json:"game"`
	Market     Market           `json:"market"`
	Odds       Odds             `json:"odds"`
	Projection ProjectionResult `json:"projection"`
	Matchup    MatchupFactors   `json:"matchup"`
	Confidence ConfidenceResult `json:"confidence"`
	Value      ValueResult      `json:"value"`
	Tier       Tier             `json:"tier"`
	Warnings   []string         `json:"warnings,omitempty"`
	Notes      []string         `json:"notes,omitempty"`
	FinalScore float64          `json:"final_score"`
	KellyStake float64          `json:"kelly_stake"`
}

// HasNote reports whether the recommendation carries the given note.
func (r Recommendation) HasNote(note string) bool {
	for _, n := range r.Notes {
		if n == note {
			return true
		}
	}
	return false
}

// AddNote appends a note once.
func (r *Recommendation) AddNote(note string) {
	if !r.HasNote(note) {
		r.Notes = append(r.Notes, note)
	}
}

// ValidationResult is the outcome of checking a recommendation against
// the pipeline invariants.
type ValidationResult struct {
	OK         bool     `json:"ok"`
	Violations []string `json:"violations,omitempty"`
}

// HealthSnapshot is a validation summary over all emitted recommendations.
type HealthSnapshot struct {
	Count                 int             `json:"count"`
	MeanP                 float64         `json:"mean_p"`
	MeanEV                float64         `json:"mean_ev"`
	MeanConfidence        float64         `json:"mean_confidence"`
	TierCounts            map[Tier]int    `json:"tier_counts"`
	EVIdentityViolations  int             `json:"ev_identity_violations"`
	SampleFloorViolations int             `json:"sample_floor_violations"`
}

// UnitError records a per-game-unit failure surfaced in RunOutput.
type UnitError struct {
	GameKey string `json:"game_key"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}

func (e UnitError) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.GameKey, e.Kind, e.Detail)
}

// RunInput parameterizes one analyze run.
type RunInput struct {
	Strict   bool `json:"strict"`    // fail on empty game list
	MaxGames int  `json:"max_games"` // 0 = unlimited
}

// RunOutput is the always-well-formed result of analyze.
type RunOutput struct {
	RunID           string           `json:"run_id"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Recommendations []Recommendation `json:"recommendations"`
	Health          HealthSnapshot   `json:"health"`
	Errors          []UnitError      `json:"errors,omitempty"`
	MissingPlayers  []string         `json:"missing_players,omitempty"`
}

// StatProfile carries per-stat-family defaults: assumed dispersion when a
// player's own history is too thin, and the natural range used to reject
// corrupt inputs.
type StatProfile struct {
	DefaultCV float64
	MinValue  float64
	MaxValue  float64
}

var statProfiles = map[StatKind]StatProfile{
	StatPoints:   {DefaultCV: 0.30, MinValue: 0, MaxValue: 200},
	StatRebounds: {DefaultCV: 0.35, MinValue: 0, MaxValue: 40},
	StatAssists:  {DefaultCV: 0.40, MinValue: 0, MaxValue: 30},
	StatThrees:   {DefaultCV: 0.55, MinValue: 0, MaxValue: 15},
	StatBlocks:   {DefaultCV: 0.70, MinValue: 0, MaxValue: 12},
	StatSteals:   {DefaultCV: 0.65, MinValue: 0, MaxValue: 10},
}

// ProfileFor returns the handler profile for a stat family. Unknown
// families get a conservative generic profile.
func ProfileFor(k StatKind) StatProfile {
	if p, ok := statProfiles[k]; ok {
		return p
	}
	return StatProfile{DefaultCV: 0.50, MinValue: 0, MaxValue: 100}
}

// ParseStat maps a free-form stat token to a StatKind.
func ParseStat(s string) (StatKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "points", "pts", "point":
		return StatPoints, true
	case "rebounds", "reb", "rebound", "boards":
		return StatRebounds, true
	case "assists", "ast", "assist":
		return StatAssists, true
	case "threes", "3pm", "three pointers", "3-pointers", "threes made":
		return StatThrees, true
	case "blocks", "blk", "block":
		return StatBlocks, true
	case "steals", "stl", "steal":
		return StatSteals, true
	}
	return "", false
}
