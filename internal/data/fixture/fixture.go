package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courtedge/internal/adapters"
	"courtedge/internal/data/facade"
	"courtedge/internal/matchup"
	"courtedge/internal/models"
)

// Source serves evidence from a fixture directory, for offline scans
// and deterministic end-to-end tests. Layout:
//
//	games.json                slate payload
//	teamform.json             league table payload
//	markets/<game_id>.json    per-game board payload
//	gamelogs/<player_key>.json per-player log payload (spaces -> _)
type Source struct {
	dir     string
	horizon facade.HorizonConfig
	now     func() time.Time
}

// New creates a fixture source over dir.
func New(dir string) *Source {
	return &Source{dir: dir, horizon: facade.DefaultHorizon(), now: time.Now}
}

func (s *Source) read(parts ...string) ([]byte, error) {
	return os.ReadFile(filepath.Join(append([]string{s.dir}, parts...)...))
}

// Games loads the slate.
func (s *Source) Games(ctx context.Context) ([]models.Game, error) {
	payload, err := s.read("games.json")
	if err != nil {
		return nil, &models.BadUpstreamError{Reason: "fixture slate unreadable", Excerpt: err.Error()}
	}
	return adapters.ParseGameList(payload)
}

// Markets loads one game's board.
func (s *Source) Markets(ctx context.Context, game models.Game) ([]adapters.MarketQuote, []string, error) {
	payload, err := s.read("markets", game.GameID+".json")
	if err != nil {
		return nil, nil, &models.BadUpstreamError{Reason: "fixture board unreadable", Excerpt: err.Error()}
	}
	return adapters.ParseMarkets(payload, game)
}

// PlayerLog loads a player's log; a missing fixture file is an unknown
// player.
func (s *Source) PlayerLog(ctx context.Context, playerKey string) (models.PlayerContext, []models.GameLogEntry, error) {
	payload, err := s.read("gamelogs", playerFile(playerKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.PlayerContext{}, nil, &models.PlayerNotFoundError{Key: playerKey}
		}
		return models.PlayerContext{}, nil, &models.BadUpstreamError{Reason: "fixture game log unreadable", Excerpt: err.Error()}
	}
	entries, err := adapters.ParseGameLog(payload)
	if err != nil {
		return models.PlayerContext{}, nil, err
	}
	entries = adapters.FilterHorizon(entries, s.horizon.MaxGames, s.horizon.MaxAge, s.now())
	player := adapters.DerivePlayerContext(playerKey, playerKey, teamOf(payload), entries)
	return player, entries, nil
}

// League loads the league table.
func (s *Source) League(ctx context.Context) (matchup.League, error) {
	payload, err := s.read("teamform.json")
	if err != nil {
		return matchup.League{}, &models.BadUpstreamError{Reason: "fixture team form unreadable", Excerpt: err.Error()}
	}
	teams, pace, err := adapters.ParseTeamForms(payload)
	if err != nil {
		return matchup.League{}, err
	}
	return matchup.League{Teams: teams, LeaguePace: pace}, nil
}

// Loaders adapts the fixture into raw payload loaders so it can back
// the protected fetch path in tests and offline runs.
func (s *Source) Loaders() facade.LoaderSet {
	return facade.LoaderSet{
		GameList: func(ctx context.Context) ([]byte, error) {
			return s.read("games.json")
		},
		Markets: func(ctx context.Context, game models.Game) ([]byte, error) {
			return s.read("markets", game.GameID+".json")
		},
		GameLog: func(ctx context.Context, playerID string) ([]byte, error) {
			return s.read("gamelogs", playerFile(playerID))
		},
		TeamForm: func(ctx context.Context) ([]byte, error) {
			return s.read("teamform.json")
		},
		ResolvePlayer: func(ctx context.Context, key string) (string, error) {
			if _, err := os.Stat(filepath.Join(s.dir, "gamelogs", playerFile(key))); err != nil {
				return "", &models.PlayerNotFoundError{Key: key}
			}
			return key, nil
		},
	}
}

func playerFile(key string) string {
	return strings.ReplaceAll(key, " ", "_") + ".json"
}

// teamOf pulls the team id from the log header without reparsing the
// entries.
func teamOf(payload []byte) string {
	var header struct {
		Player struct {
			Team string `json:"team"`
		} `json:"player"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return ""
	}
	return header.Player.Team
}
