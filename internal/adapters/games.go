package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"courtedge/internal/models"
)

// gameListPayload is the wire shape delivered by the markets upstream
// for the slate of upcoming games.
type gameListPayload struct {
	Games []gameRow `json:"games"`
}

type gameRow struct {
	GameID   string `json:"game_id"`
	TipTime  string `json:"tip_time"`
	AwayTeam string `json:"away_team"`
	HomeTeam string `json:"home_team"`
}

// ParseGameList converts an opaque games payload into the internal Game
// slice, ordered by tip time. Two entries colliding on
// (tip_time, away_team, home_team) fail the whole payload.
func ParseGameList(payload []byte) ([]models.Game, error) {
	var raw gameListPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &models.BadUpstreamError{Reason: "game list not valid JSON", Excerpt: excerpt(payload)}
	}

	games := make([]models.Game, 0, len(raw.Games))
	seen := make(map[string]bool, len(raw.Games))
	for _, row := range raw.Games {
		if row.AwayTeam == "" || row.HomeTeam == "" {
			return nil, &models.BadUpstreamError{Reason: "game row missing team", Excerpt: row.GameID}
		}
		tip, err := time.Parse(time.RFC3339, row.TipTime)
		if err != nil {
			return nil, &models.BadUpstreamError{Reason: fmt.Sprintf("unparseable tip time %q", row.TipTime)}
		}
		g := models.Game{
			GameID:   row.GameID,
			TipTime:  tip,
			AwayTeam: strings.TrimSpace(row.AwayTeam),
			HomeTeam: strings.TrimSpace(row.HomeTeam),
		}
		if g.GameID == "" {
			g.GameID = g.Key()
		}
		if seen[g.Key()] {
			return nil, &models.BadUpstreamError{Reason: "duplicate game identity", Excerpt: g.Key()}
		}
		seen[g.Key()] = true
		games = append(games, g)
	}

	sort.Slice(games, func(i, j int) bool {
		if !games[i].TipTime.Equal(games[j].TipTime) {
			return games[i].TipTime.Before(games[j].TipTime)
		}
		return games[i].Key() < games[j].Key()
	})
	return games, nil
}

func excerpt(b []byte) string {
	const max = 80
	s := string(b)
	if len(s) > max {
		return s[:max]
	}
	return s
}
