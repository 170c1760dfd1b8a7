package gates

import (
	"sort"

	"github.com/rs/zerolog/log"

	"courtedge/internal/confidence"
	"courtedge/internal/models"
)

// Tier gate floors. First match wins, S down to C; D is the residue.
const (
	sTierEV   = 0.20
	sTierEdge = 0.12
	sTierProb = 0.68

	aTierEV   = 0.10
	aTierEdge = 0.08
	aTierProb = 0.75

	bTierEV   = 0.05
	bTierEdge = 0.04

	cTierConfidence = 60.0
	cTierEdge       = 0.05
	cTierMispricing = 0.10
	cTierSample     = 5
)

// legacyAEdge is the historical, looser A-tier edge floor kept behind a
// flag for calibration comparisons.
const legacyAEdge = 0.05

// Config parameterizes tiering and correlation control.
type Config struct {
	// LegacyEdgeGate lowers the A-tier edge floor from 0.08 to 0.05.
	// Off in production.
	LegacyEdgeGate bool `yaml:"legacy_edge_gate"`

	// MaxPropsPerGame caps surviving player props per game; overflow is
	// demoted to C.
	MaxPropsPerGame int `yaml:"max_props_per_game"`
}

// DefaultConfig returns the production gate configuration.
func DefaultConfig() Config {
	return Config{
		LegacyEdgeGate:  false,
		MaxPropsPerGame: 2,
	}
}

// Engine assigns tiers and applies the cross-recommendation
// correlation rules. It holds the confidence engine so correlation
// penalties go through the same scoring chain as everything else.
type Engine struct {
	cfg  Config
	conf *confidence.Engine
}

// NewEngine creates a tiering engine.
func NewEngine(cfg Config, conf *confidence.Engine) *Engine {
	if cfg.MaxPropsPerGame <= 0 {
		cfg.MaxPropsPerGame = 2
	}
	return &Engine{cfg: cfg, conf: conf}
}

func (e *Engine) aEdgeFloor() float64 {
	if e.cfg.LegacyEdgeGate {
		return legacyAEdge
	}
	return aTierEdge
}

// SEligible reports whether a selection clears the S gate. Used by the
// value filters, which exempt S candidates from the ev/p floor.
func SEligible(v models.ValueResult, p float64) bool {
	return v.EV >= sTierEV && v.Edge >= sTierEdge && p >= sTierProb
}

// Assign evaluates the tier gates top-down and stamps the tier and the
// final score onto the recommendation.
func (e *Engine) Assign(rec *models.Recommendation) {
	p := rec.Projection.ProjectedProbability
	v := rec.Value
	conf := rec.Confidence.Final
	sample := rec.Projection.Evidence.SampleSize

	switch {
	case SEligible(v, p):
		rec.Tier = models.TierS
	case v.EV >= aTierEV && v.Edge >= e.aEdgeFloor() && p >= aTierProb:
		rec.Tier = models.TierA
	case v.EV >= bTierEV && v.Edge >= bTierEdge:
		rec.Tier = models.TierB
	case conf >= cTierConfidence && v.Edge >= cTierEdge && v.Mispricing >= cTierMispricing && sample >= cTierSample:
		rec.Tier = models.TierC
	default:
		rec.Tier = models.TierD
	}
	rec.FinalScore = FinalScore(*rec)
}

// FinalScore orders recommendations within a tier. It never affects
// the tier itself.
func FinalScore(rec models.Recommendation) float64 {
	return rec.Value.EV*100 + rec.Confidence.Final*0.2 + rec.Value.Edge*50
}

// Finalize applies the global correlation rules across all games, then
// returns the recommendations in the canonical output order. Must run
// after every unit has reported; the rules span games.
func (e *Engine) Finalize(recs []models.Recommendation) []models.Recommendation {
	byGame := make(map[string][]int)
	for i, r := range recs {
		if r.Market.IsPlayerProp() {
			k := r.Game.Key()
			byGame[k] = append(byGame[k], i)
		}
	}

	for gameKey, idxs := range byGame {
		// Rank the game's props by projected probability, stable on
		// market key so equal probabilities resolve the same way every
		// run.
		sort.SliceStable(idxs, func(a, b int) bool {
			pa := recs[idxs[a]].Projection.ProjectedProbability
			pb := recs[idxs[b]].Projection.ProjectedProbability
			if pa != pb {
				return pa > pb
			}
			return recs[idxs[a]].Market.Key() < recs[idxs[b]].Market.Key()
		})

		for rank, i := range idxs {
			if rank < e.cfg.MaxPropsPerGame {
				continue
			}
			rec := &recs[i]
			if rec.Tier.Rank() < models.TierC.Rank() {
				rec.Tier = models.TierC
			}
			rec.AddNote(models.NoteExcessCorrelation)
			rec.FinalScore = FinalScore(*rec)
			log.Debug().
				Str("game", gameKey).
				Str("market", rec.Market.Key()).
				Msg("player prop demoted over per-game cap")
		}

		// Shared stat family: the lower-ranked of any pair takes a
		// confidence penalty scaled by how thin its own margin is.
		seenStat := make(map[models.StatKind]bool)
		for _, i := range idxs {
			rec := &recs[i]
			stat := rec.Market.Stat
			if !seenStat[stat] {
				seenStat[stat] = true
				continue
			}
			penalty := correlationPenalty(rec.Projection.ProjectionMargin)
			e.conf.ApplyPenalty(&rec.Confidence, confidence.ReasonCorrelation, penalty, rec.Projection.Evidence.SampleSize)
			rec.FinalScore = FinalScore(*rec)
		}
	}

	Sort(recs)
	return recs
}

// correlationPenalty scales with the lower-ranked selection's own
// projection margin: thin margins are the most exposed to a shared
// swing.
func correlationPenalty(margin float64) float64 {
	switch {
	case margin < 2:
		return -10
	case margin < 4:
		return -6
	default:
		return -4
	}
}

// Sort orders recommendations deterministically: tier rank, then final
// score descending, projected probability descending, tip time
// ascending, market key as the last-resort tiebreak.
func Sort(recs []models.Recommendation) {
	sort.SliceStable(recs, func(a, b int) bool {
		ra, rb := recs[a], recs[b]
		if ra.Tier.Rank() != rb.Tier.Rank() {
			return ra.Tier.Rank() < rb.Tier.Rank()
		}
		if ra.FinalScore != rb.FinalScore {
			return ra.FinalScore > rb.FinalScore
		}
		pa := ra.Projection.ProjectedProbability
		pb := rb.Projection.ProjectedProbability
		if pa != pb {
			return pa > pb
		}
		if !ra.Game.TipTime.Equal(rb.Game.TipTime) {
			return ra.Game.TipTime.Before(rb.Game.TipTime)
		}
		return ra.Market.Key() < rb.Market.Key()
	})
}
