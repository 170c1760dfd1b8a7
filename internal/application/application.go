package application

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"courtedge/internal/gates"
	"courtedge/internal/metrics"
	"courtedge/internal/models"
	"courtedge/internal/scan/pipeline"
)

// Archiver persists finished runs. Optional; a nil archiver disables
// archival.
type Archiver interface {
	SaveRun(ctx context.Context, run models.RunOutput) error
}

// App composes the slate source, the orchestrator and the global
// tiering rules into the public analyze operation.
type App struct {
	slate pipeline.MarketSource
	orch  *pipeline.Orchestrator
	tiers *gates.Engine
	reg   *metrics.Registry
	store Archiver
	now   func() time.Time
}

// New wires the application driver. store may be nil.
func New(slate pipeline.MarketSource, orch *pipeline.Orchestrator, tiers *gates.Engine, reg *metrics.Registry, store Archiver) *App {
	if reg == nil {
		reg = metrics.NewNopRegistry()
	}
	return &App{
		slate: slate,
		orch:  orch,
		tiers: tiers,
		reg:   reg,
		store: store,
		now:   time.Now,
	}
}

// Analyze runs the full pipeline over the current slate. The only
// failure mode is invalid input: an empty slate under strict mode.
// Everything else degrades into RunOutput.Errors and downgraded tiers.
func (a *App) Analyze(ctx context.Context, in models.RunInput) (models.RunOutput, error) {
	started := a.now()
	out := models.RunOutput{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	games, err := a.slate.Games(ctx)
	if err != nil {
		if in.Strict {
			return models.RunOutput{}, err
		}
		log.Warn().Err(err).Msg("slate unavailable, run proceeds empty")
	}
	if len(games) == 0 && in.Strict {
		return models.RunOutput{}, models.ErrEmptyGameList
	}
	if in.MaxGames > 0 && len(games) > in.MaxGames {
		games = games[:in.MaxGames]
	}

	units := a.orch.Run(ctx, games)

	var recs []models.Recommendation
	missing := make(map[string]bool)
	for _, u := range units {
		recs = append(recs, u.Recommendations...)
		out.Errors = append(out.Errors, u.Errors...)
		for _, key := range u.Missing {
			missing[key] = true
		}
	}

	// Correlation control and ordering span games, so they run here,
	// after every unit has reported.
	recs = a.tiers.Finalize(recs)

	out.Recommendations = recs
	out.MissingPlayers = sortedKeys(missing)
	out.Health = Health(recs)
	out.FinishedAt = a.now()

	a.reg.RecordRecommendations(recs)
	a.reg.RunDuration.Observe(out.FinishedAt.Sub(started).Seconds())

	if a.store != nil {
		if err := a.store.SaveRun(ctx, out); err != nil {
			log.Warn().Err(err).Str("run_id", out.RunID).Msg("run archive failed")
		}
	}

	log.Info().
		Str("run_id", out.RunID).
		Int("games", len(games)).
		Int("recommendations", len(recs)).
		Int("errors", len(out.Errors)).
		Dur("took", out.FinishedAt.Sub(started)).
		Msg("analyze run finished")
	return out, nil
}

// Health summarizes a set of recommendations for the health surface.
func Health(recs []models.Recommendation) models.HealthSnapshot {
	snap := models.HealthSnapshot{
		Count:      len(recs),
		TierCounts: make(map[models.Tier]int),
	}
	if len(recs) == 0 {
		return snap
	}

	var sumP, sumEV, sumConf float64
	for _, r := range recs {
		sumP += r.Projection.ProjectedProbability
		sumEV += r.Value.EV
		sumConf += r.Confidence.Final
		snap.TierCounts[r.Tier]++

		v := Validate(r)
		for _, violation := range v.Violations {
			switch violation {
			case violationEVIdentity:
				snap.EVIdentityViolations++
			case violationSampleFloor:
				snap.SampleFloorViolations++
			}
		}
	}
	n := float64(len(recs))
	snap.MeanP = sumP / n
	snap.MeanEV = sumEV / n
	snap.MeanConfidence = sumConf / n
	return snap
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
