package facade

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"courtedge/internal/adapters"
	"courtedge/internal/data/cache"
	"courtedge/internal/matchup"
	"courtedge/internal/models"
)

// Upstream names used for cache keys, rate limits and breakers.
const (
	UpstreamMarkets  = "markets"
	UpstreamGameLog  = "gamelog"
	UpstreamTeamForm = "teamform"
)

// LoaderSet supplies the raw payload loaders for each upstream. The
// actual transport (scraper, HTTP client, file reader) lives behind
// these functions; the client only sees bytes.
type LoaderSet struct {
	GameList func(ctx context.Context) ([]byte, error)
	Markets  func(ctx context.Context, game models.Game) ([]byte, error)
	GameLog  func(ctx context.Context, playerID string) ([]byte, error)
	TeamForm func(ctx context.Context) ([]byte, error)

	// ResolvePlayer maps a normalized player key to the upstream's
	// identifier. Unknown keys return PlayerNotFoundError.
	ResolvePlayer func(ctx context.Context, key string) (string, error)
}

// HorizonConfig bounds how much game log history feeds projections.
type HorizonConfig struct {
	MaxGames int           `yaml:"max_games"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// DefaultHorizon returns the production history horizon.
func DefaultHorizon() HorizonConfig {
	return HorizonConfig{MaxGames: 60, MaxAge: 120 * 24 * time.Hour}
}

// Client is the typed evidence source over the protected fetch path:
// every payload goes through the facade, every identity through the
// permanent map.
type Client struct {
	fetch   Fetcher
	loaders LoaderSet
	ids     cache.PermanentMap
	horizon HorizonConfig
	ttls    map[string]time.Duration
	now     func() time.Time
}

// NewClient wires the evidence client.
func NewClient(f Fetcher, loaders LoaderSet, ids cache.PermanentMap, horizon HorizonConfig, ttls map[string]time.Duration) *Client {
	if horizon.MaxGames <= 0 && horizon.MaxAge <= 0 {
		horizon = DefaultHorizon()
	}
	return &Client{
		fetch:   f,
		loaders: loaders,
		ids:     ids,
		horizon: horizon,
		ttls:    ttls,
		now:     time.Now,
	}
}

func (c *Client) ttl(upstream string) time.Duration {
	if d, ok := c.ttls[upstream]; ok {
		return d
	}
	return 24 * time.Hour
}

// Games fetches and parses the slate.
func (c *Client) Games(ctx context.Context) ([]models.Game, error) {
	key := cache.Key{Upstream: UpstreamMarkets, EntityID: "slate", QueryShape: "game_list"}
	payload, err := c.fetch.Fetch(ctx, key, c.ttl(UpstreamMarkets), c.loaders.GameList)
	if err != nil {
		return nil, err
	}
	return adapters.ParseGameList(payload)
}

// Markets fetches and parses one game's board.
func (c *Client) Markets(ctx context.Context, game models.Game) ([]adapters.MarketQuote, []string, error) {
	key := cache.Key{Upstream: UpstreamMarkets, EntityID: game.Key(), QueryShape: "board"}
	payload, err := c.fetch.Fetch(ctx, key, c.ttl(UpstreamMarkets), func(ctx context.Context) ([]byte, error) {
		return c.loaders.Markets(ctx, game)
	})
	if err != nil {
		return nil, nil, err
	}
	return adapters.ParseMarkets(payload, game)
}

// gameLogHeader is the identity block riding alongside the log entries.
type gameLogHeader struct {
	Player struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Team string `json:"team"`
	} `json:"player"`
}

// PlayerLog resolves the player key and returns context plus the
// horizon-filtered log.
func (c *Client) PlayerLog(ctx context.Context, playerKey string) (models.PlayerContext, []models.GameLogEntry, error) {
	id, ok := c.ids.Lookup(ctx, playerKey)
	if !ok {
		resolved, err := c.loaders.ResolvePlayer(ctx, playerKey)
		if err != nil {
			return models.PlayerContext{}, nil, err
		}
		id, _ = c.ids.PutIfAbsent(ctx, playerKey, resolved)
	}

	key := cache.Key{Upstream: UpstreamGameLog, EntityID: id, QueryShape: "log"}
	payload, err := c.fetch.Fetch(ctx, key, c.ttl(UpstreamGameLog), func(ctx context.Context) ([]byte, error) {
		return c.loaders.GameLog(ctx, id)
	})
	if err != nil {
		return models.PlayerContext{}, nil, err
	}

	entries, err := adapters.ParseGameLog(payload)
	if err != nil {
		return models.PlayerContext{}, nil, err
	}
	entries = adapters.FilterHorizon(entries, c.horizon.MaxGames, c.horizon.MaxAge, c.now())

	var header gameLogHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		log.Debug().Err(err).Str("player", playerKey).Msg("game log header unreadable")
	}
	name := header.Player.Name
	if name == "" {
		name = playerKey
	}
	player := adapters.DerivePlayerContext(id, name, header.Player.Team, entries)
	return player, entries, nil
}

// League fetches the per-run league table. The team form upstream is
// cache-only by policy: a cold cache surfaces as Throttled, which the
// caller treats as neutral matchups.
func (c *Client) League(ctx context.Context) (matchup.League, error) {
	key := cache.Key{Upstream: UpstreamTeamForm, EntityID: "league", QueryShape: "table"}
	payload, err := c.fetch.Fetch(ctx, key, c.ttl(UpstreamTeamForm), c.loaders.TeamForm)
	if err != nil {
		return matchup.League{}, err
	}
	teams, pace, err := adapters.ParseTeamForms(payload)
	if err != nil {
		return matchup.League{}, err
	}
	return matchup.League{Teams: teams, LeaguePace: pace}, nil
}
