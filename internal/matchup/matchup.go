package matchup

import (
	"math"
	"sort"

	"courtedge/internal/models"
)

// League carries the per-run static table the matchup engine ranks
// against: every team's form record plus the league pace baseline.
type League struct {
	Teams      map[string]models.TeamForm
	LeaguePace float64
}

// Engine derives opponent/pace/blowout multipliers for a
// (team, opponent, stat family) triple. All outputs are pure functions
// of the league table; missing inputs fall back to the league mean with
// a note.
type Engine struct {
	league League
	ranks  map[models.StatKind]map[string]int
}

const (
	multiplierFloor = 0.85
	multiplierCeil  = 1.15

	blowoutHeavy   = 0.92
	blowoutModest  = 0.96
	blowoutNeutral = 1.00

	// Additive probability shift derived from the total multiplier,
	// clamped to a ±0.15 swing.
	adjustmentScale = 0.5
	adjustmentClamp = 0.15
)

// NewEngine builds the engine and precomputes per-stat defensive ranks.
func NewEngine(league League) *Engine {
	e := &Engine{league: league, ranks: make(map[models.StatKind]map[string]int)}
	for _, stat := range models.AllStats {
		e.ranks[stat] = rankByAllowed(league.Teams, stat)
	}
	return e
}

// rankByAllowed orders teams 1..N by how little of the stat they allow;
// ties break by team_id so ranks are deterministic.
func rankByAllowed(teams map[string]models.TeamForm, stat models.StatKind) map[string]int {
	type entry struct {
		id      string
		allowed float64
	}
	entries := make([]entry, 0, len(teams))
	for id, form := range teams {
		allowed, _ := form.Allowed(stat)
		entries = append(entries, entry{id: id, allowed: allowed})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].allowed != entries[j].allowed {
			return entries[i].allowed < entries[j].allowed
		}
		return entries[i].id < entries[j].id
	})
	ranks := make(map[string]int, len(entries))
	for i, e := range entries {
		ranks[e.id] = i + 1
	}
	return ranks
}

// Factors computes the matchup multipliers for a player (or team
// market) on team, facing opponent, for the given stat family.
func (e *Engine) Factors(team, opponent models.TeamForm, stat models.StatKind) models.MatchupFactors {
	var notes []string

	pace, paceNote := e.paceMultiplier(team, opponent)
	if paceNote != "" {
		notes = append(notes, paceNote)
	}

	defense, known := opponent.Allowed(stat)
	if !known {
		notes = append(notes, "opponent allowed multiplier missing, league mean used")
	}
	defense = clamp(defense, multiplierFloor, multiplierCeil)

	blowout := blowoutRisk(strengthIndex(team), strengthIndex(opponent))

	total := pace * defense * blowout
	adjustment := clamp((total-1)*adjustmentScale, -adjustmentClamp, adjustmentClamp)

	rank := len(e.league.Teams)
	if r, ok := e.ranks[stat][opponent.TeamID]; ok {
		rank = r
	} else {
		notes = append(notes, "opponent missing from league table, worst rank assumed")
	}

	return models.MatchupFactors{
		PaceMultiplier:      pace,
		DefenseMultiplier:   defense,
		BlowoutRisk:         blowout,
		TotalMultiplier:     total,
		TotalAdjustment:     adjustment,
		Favorable:           total > 1.00,
		OpponentRankForStat: rank,
		Notes:               notes,
	}
}

func (e *Engine) paceMultiplier(team, opponent models.TeamForm) (float64, string) {
	leaguePace := e.league.LeaguePace
	if leaguePace <= 0 || team.PaceEstimate <= 0 || opponent.PaceEstimate <= 0 {
		return 1.0, "pace estimate missing, league mean used"
	}
	raw := ((team.PaceEstimate + opponent.PaceEstimate) / 2) / leaguePace
	return clamp(raw, multiplierFloor, multiplierCeil), ""
}

// strengthIndex prefers the upstream-supplied index and falls back to
// net scoring margin.
func strengthIndex(form models.TeamForm) float64 {
	if form.StrengthIndex != 0 {
		return form.StrengthIndex
	}
	return form.PointsForAvg - form.PointsAgainstAvg
}

// blowoutRisk discounts projections when the strength gap points to
// reduced starter minutes in a lopsided game.
func blowoutRisk(team, opponent float64) float64 {
	diff := math.Abs(team - opponent)
	switch {
	case diff > 10:
		return blowoutHeavy
	case diff > 5:
		return blowoutModest
	default:
		return blowoutNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
