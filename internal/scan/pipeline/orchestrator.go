package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"courtedge/internal/adapters"
	"courtedge/internal/confidence"
	"courtedge/internal/gates"
	"courtedge/internal/matchup"
	"courtedge/internal/metrics"
	"courtedge/internal/models"
	"courtedge/internal/projection"
	"courtedge/internal/value"
)

// Config parameterizes the per-run fan-out.
type Config struct {
	// Workers is the bound on concurrent game units.
	Workers int `yaml:"workers"`

	// Inter-unit delay sampled uniformly from [DelayMin, DelayMax] to
	// smooth burstiness beyond the token buckets.
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`

	// Watchlist player keys are exempt from the p >= 0.50 filter.
	Watchlist []string `yaml:"watchlist"`
}

// DefaultConfig returns the production orchestration settings.
func DefaultConfig() Config {
	return Config{
		Workers:  3,
		DelayMin: 100 * time.Millisecond,
		DelayMax: 400 * time.Millisecond,
	}
}

// UnitResult is one game unit's contribution to a run.
type UnitResult struct {
	Game            models.Game
	Recommendations []models.Recommendation
	Errors          []models.UnitError
	Missing         []string // normalized player keys unknown upstream
}

// Orchestrator fans a run out over bounded worker units. Each unit
// handles one game end-to-end: board, props, matchup, projection,
// confidence, value, tier. A unit failure never fails the run.
type Orchestrator struct {
	cfg     Config
	markets MarketSource
	logs    GameLogSource
	teams   TeamFormSource

	proj  *projection.Engine
	conf  *confidence.Engine
	tiers *gates.Engine
	reg   *metrics.Registry

	watch map[string]bool
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New wires an orchestrator over the evidence sources and engines.
func New(cfg Config, markets MarketSource, logs GameLogSource, teams TeamFormSource,
	proj *projection.Engine, conf *confidence.Engine, tiers *gates.Engine, reg *metrics.Registry) *Orchestrator {

	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if reg == nil {
		reg = metrics.NewNopRegistry()
	}
	watch := make(map[string]bool, len(cfg.Watchlist))
	for _, k := range cfg.Watchlist {
		watch[adapters.NormalizePlayerName(k)] = true
	}
	return &Orchestrator{
		cfg:     cfg,
		markets: markets,
		logs:    logs,
		teams:   teams,
		proj:    proj,
		conf:    conf,
		tiers:   tiers,
		reg:     reg,
		watch:   watch,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes the given games under the worker bound and returns one
// UnitResult per launched unit, in input order. Cancellation is honored
// between units: in-flight units complete, unlaunched ones are skipped.
func (o *Orchestrator) Run(ctx context.Context, games []models.Game) []UnitResult {
	league, err := o.teams.League(ctx)
	if err != nil {
		// Cold cache or throttled form upstream: league-mean fallbacks
		// apply everywhere downstream.
		log.Warn().Err(err).Msg("league table unavailable, using neutral matchups")
		league = matchup.League{}
	}
	eng := matchup.NewEngine(league)

	results := make([]UnitResult, len(games))
	launched := 0

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, game := range games {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			o.pause(ctx)
		}
		i, game := i, game
		launched++
		g.Go(func() error {
			results[i] = o.runUnit(ctx, game, eng, league)
			return nil
		})
	}
	g.Wait()

	return results[:launched]
}

// pause sleeps the sampled inter-unit delay, returning early on
// cancellation.
func (o *Orchestrator) pause(ctx context.Context) {
	min, max := o.cfg.DelayMin, o.cfg.DelayMax
	if max <= min {
		if min <= 0 {
			return
		}
		max = min
	}
	o.mu.Lock()
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(o.rng.Int63n(int64(span) + 1))
	}
	o.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// runUnit executes one game unit. Panics are contained here: the unit's
// partial output is discarded and a UnitError recorded.
func (o *Orchestrator) runUnit(ctx context.Context, game models.Game, eng *matchup.Engine, league matchup.League) (res UnitResult) {
	start := o.now()
	o.reg.ActiveUnits.Inc()
	defer o.reg.ActiveUnits.Dec()

	res.Game = game
	defer func() {
		if r := recover(); r != nil {
			res.Recommendations = nil
			res.Errors = []models.UnitError{{
				GameKey: game.Key(),
				Kind:    "UnitError",
				Detail:  fmt.Sprintf("panic: %v", r),
			}}
			o.reg.UnitErrors.WithLabelValues("panic").Inc()
			o.reg.ObserveUnit("panic", time.Since(start))
			log.Error().Str("game", game.Key()).Interface("panic", r).Msg("game unit panicked")
		}
	}()

	quotes, insights, err := o.markets.Markets(ctx, game)
	if err != nil {
		res.Errors = append(res.Errors, unitError(game, err))
		o.reg.UnitErrors.WithLabelValues(res.Errors[0].Kind).Inc()
		o.reg.ObserveUnit("failed", time.Since(start))
		return res
	}

	homeForm := league.Teams[game.HomeTeam]
	awayForm := league.Teams[game.AwayTeam]

	seen := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		seen[q.Market.Key()] = true
		o.processQuote(ctx, &res, game, q, eng, homeForm, awayForm)
	}

	// Insights can surface props the structured board omitted; they
	// carry no price, so only those matching a quoted market are new.
	quoteByKey := make(map[string]adapters.MarketQuote, len(quotes))
	for _, q := range quotes {
		quoteByKey[q.Market.Key()] = q
	}
	for _, text := range insights {
		prop, ok := adapters.ParseInsight(text, game)
		if !ok {
			continue
		}
		m := models.Market{
			Kind:     models.MarketPlayerProp,
			Side:     prop.Side,
			Line:     prop.Line,
			PlayerID: prop.PlayerKey,
			Stat:     prop.Stat,
		}
		q, priced := quoteByKey[m.Key()]
		if !priced || seen[m.Key()] {
			continue
		}
		seen[m.Key()] = true
		o.processQuote(ctx, &res, game, q, eng, homeForm, awayForm)
	}

	o.reg.ObserveUnit("ok", time.Since(start))
	return res
}

func (o *Orchestrator) processQuote(ctx context.Context, res *UnitResult, game models.Game,
	q adapters.MarketQuote, eng *matchup.Engine, homeForm, awayForm models.TeamForm) {

	var rec models.Recommendation
	var ok bool
	if q.Market.IsPlayerProp() {
		rec, ok = o.propRecommendation(ctx, res, game, q, eng, homeForm, awayForm)
	} else {
		rec, ok = o.teamRecommendation(game, q, eng, homeForm, awayForm)
	}
	if ok {
		res.Recommendations = append(res.Recommendations, rec)
	}
}

// propRecommendation runs one player-prop candidate through the full
// enrichment chain. Soft misses drop the prop; transient exhaustion is
// recorded on the unit and the remaining props continue.
func (o *Orchestrator) propRecommendation(ctx context.Context, res *UnitResult, game models.Game,
	q adapters.MarketQuote, eng *matchup.Engine, homeForm, awayForm models.TeamForm) (models.Recommendation, bool) {

	playerKey := q.Market.PlayerID
	player, entries, err := o.logs.PlayerLog(ctx, playerKey)
	if err != nil {
		var notFound *models.PlayerNotFoundError
		switch {
		case errors.As(err, &notFound):
			res.Missing = append(res.Missing, notFound.Key)
		case models.IsSoftMiss(err):
			log.Debug().Err(err).Str("player", playerKey).Msg("prop dropped on soft miss")
		default:
			res.Errors = append(res.Errors, unitError(game, err))
			o.reg.UnitErrors.WithLabelValues(res.Errors[len(res.Errors)-1].Kind).Inc()
		}
		return models.Recommendation{}, false
	}

	isHome := player.TeamID == game.HomeTeam
	teamForm, oppForm := awayForm, homeForm
	if isHome {
		teamForm, oppForm = homeForm, awayForm
	}
	factors := eng.Factors(teamForm, oppForm, q.Market.Stat)

	proj, ok := o.proj.Project(projection.Input{
		Market:   q.Market,
		Odds:     q.Odds,
		Log:      entries,
		Player:   player,
		Matchup:  factors,
		IsHome:   isHome,
		DaysRest: daysRest(entries, game.TipTime),
	})
	if !ok {
		log.Debug().Str("market", q.Market.Key()).Msg("no projection path available, prop dropped")
		return models.Recommendation{}, false
	}

	conf := o.conf.Score(confidence.Input{
		Projection:   proj,
		Player:       player,
		Market:       q.Market,
		Odds:         q.Odds,
		MatchupShift: factors.TotalAdjustment,
	})

	return o.assemble(game, q, proj, factors, conf, o.watch[playerKey])
}

// teamRecommendation prices a moneyline/spread/total market from the
// two teams' form records.
func (o *Orchestrator) teamRecommendation(game models.Game, q adapters.MarketQuote,
	eng *matchup.Engine, homeForm, awayForm models.TeamForm) (models.Recommendation, bool) {

	factors := eng.Factors(homeForm, awayForm, models.StatPoints)
	proj, ok := o.proj.ProjectTeam(projection.TeamInput{
		Market:  q.Market,
		Odds:    q.Odds,
		Home:    homeForm,
		Away:    awayForm,
		Matchup: factors,
	})
	if !ok {
		return models.Recommendation{}, false
	}

	conf := o.conf.Score(confidence.Input{
		Projection:   proj,
		Market:       q.Market,
		Odds:         q.Odds,
		MatchupShift: factors.TotalAdjustment,
	})

	return o.assemble(game, q, proj, factors, conf, false)
}

// assemble runs value, the pre-tier filters and tiering, and stamps
// warnings and notes.
func (o *Orchestrator) assemble(game models.Game, q adapters.MarketQuote,
	proj models.ProjectionResult, factors models.MatchupFactors,
	conf models.ConfidenceResult, watchlisted bool) (models.Recommendation, bool) {

	p := proj.ProjectedProbability
	val, err := value.Compute(p, q.Odds)
	if err != nil {
		return models.Recommendation{}, false
	}

	rec := models.Recommendation{
		Game:       game,
		Market:     q.Market,
		Odds:       q.Odds,
		Projection: proj,
		Matchup:    factors,
		Confidence: conf,
		Value:      val,
		KellyStake: value.KellyStake(p, q.Odds),
	}
	if watchlisted {
		rec.AddNote(models.NoteWatchlist)
	}

	repaired, integrityErr := value.VerifyIntegrity(&rec.Value, p)
	if repaired {
		rec.AddNote(models.NoteEVRecomputed)
	}

	decision := value.Filter(rec.Value, p, watchlisted, gates.SEligible(rec.Value, p))
	if !decision.Keep {
		log.Debug().Str("market", q.Market.Key()).Str("reason", decision.Reason).Msg("candidate filtered before tiering")
		return models.Recommendation{}, false
	}

	o.tiers.Assign(&rec)
	if integrityErr != nil {
		rec.Tier = models.TierD
		rec.AddNote(models.NoteIntegrityError)
		rec.FinalScore = gates.FinalScore(rec)
	}

	if proj.Evidence.FightingMarket {
		rec.Warnings = append(rec.Warnings, models.WarnFightingMarket)
	}
	if _, hit := conf.Penalties[confidence.ReasonMinutesVar]; hit {
		rec.Warnings = append(rec.Warnings, models.WarnMinutesVolatility)
	}
	if _, hit := conf.Penalties[confidence.ReasonRoleChange]; hit {
		rec.Warnings = append(rec.Warnings, models.WarnRoleChange)
	}

	return rec, true
}

// daysRest is the rest gap between the player's last logged game and
// the tip date.
func daysRest(entries []models.GameLogEntry, tip time.Time) int {
	if len(entries) == 0 {
		return 2
	}
	last := entries[len(entries)-1].Date
	rest := int(tip.Sub(last).Hours()/24) - 1
	if rest < 0 {
		rest = 0
	}
	if rest > 10 {
		rest = 10
	}
	return rest
}

// unitError classifies an upstream failure into its error-kind label.
func unitError(game models.Game, err error) models.UnitError {
	kind := "UnitError"
	var throttled *models.ThrottledError
	var bad *models.BadUpstreamError
	var exhausted *models.TransientExhaustedError
	switch {
	case errors.As(err, &exhausted):
		kind = "TransientExhausted"
	case errors.As(err, &throttled):
		kind = "Throttled"
	case errors.As(err, &bad):
		kind = "BadUpstream"
	case errors.Is(err, models.ErrCircuitOpen):
		kind = "CircuitOpen"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		kind = "Canceled"
	}
	return models.UnitError{GameKey: game.Key(), Kind: kind, Detail: err.Error()}
}
