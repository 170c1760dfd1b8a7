package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "markets"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gamelogs"), 0o755))

	write := func(rel, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(body), 0o644))
	}

	write("games.json", `{"games":[
		{"game_id":"g1","tip_time":"2026-01-20T19:00:00Z","away_team":"WAS","home_team":"BOS"}
	]}`)
	write("teamform.json", `{"league_pace":100,"teams":[
		{"team_id":"BOS","pace_estimate":99,"strength_index":8},
		{"team_id":"WAS","pace_estimate":102,"strength_index":-6}
	]}`)
	write(filepath.Join("markets", "g1.json"), `{"markets":[
		{"market":"player_prop","side":"over","line":"23.5","odds":1.90,"player":"Steady Scorer","stat":"points"},
		{"market":"moneyline","side":"home","odds":1.45}
	],"insights":["Steady Scorer to score 24+ points"]}`)
	write(filepath.Join("gamelogs", "steady_scorer.json"), `{
		"player":{"id":"p1","name":"Steady Scorer","team":"BOS"},
		"entries":[
			{"date":"2026-01-14","opponent":"NYK","is_home":true,"minutes":30,"stats":{"points":26},"win":true},
			{"date":"2026-01-16","opponent":"PHI","is_home":false,"minutes":28,"stats":{"points":24},"win":false},
			{"date":"2026-01-18","opponent":"MIA","is_home":true,"minutes":31,"stats":{"points":29},"win":true}
		]}`)
	return dir
}

func newTestSource(t *testing.T) *Source {
	s := New(writeFixtures(t))
	s.now = func() time.Time { return time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestFixtureGames(t *testing.T) {
	s := newTestSource(t)
	games, err := s.Games(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "g1", games[0].GameID)
	assert.Equal(t, "BOS", games[0].HomeTeam)
}

func TestFixtureMarkets(t *testing.T) {
	s := newTestSource(t)
	game := models.Game{GameID: "g1"}

	quotes, insights, err := s.Markets(context.Background(), game)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, models.MarketPlayerProp, quotes[0].Market.Kind)
	assert.Equal(t, 23.5, quotes[0].Market.Line)
	assert.Len(t, insights, 1)
}

func TestFixturePlayerLog(t *testing.T) {
	s := newTestSource(t)

	player, entries, err := s.PlayerLog(context.Background(), "steady scorer")
	require.NoError(t, err)
	assert.Equal(t, "BOS", player.TeamID)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Date.Before(entries[2].Date))
}

func TestFixtureUnknownPlayer(t *testing.T) {
	s := newTestSource(t)
	_, _, err := s.PlayerLog(context.Background(), "nobody at all")
	var notFound *models.PlayerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nobody at all", notFound.Key)
}

func TestFixtureLeague(t *testing.T) {
	s := newTestSource(t)
	league, err := s.League(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, league.LeaguePace)
	assert.Contains(t, league.Teams, "BOS")
	assert.Contains(t, league.Teams, "WAS")
}

func TestFixtureLoadersResolvePlayer(t *testing.T) {
	s := newTestSource(t)
	loaders := s.Loaders()

	id, err := loaders.ResolvePlayer(context.Background(), "steady scorer")
	require.NoError(t, err)
	assert.Equal(t, "steady scorer", id)

	_, err = loaders.ResolvePlayer(context.Background(), "nobody at all")
	var notFound *models.PlayerNotFoundError
	require.ErrorAs(t, err, &notFound)
}
