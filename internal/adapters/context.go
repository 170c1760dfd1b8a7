package adapters

import (
	"courtedge/internal/models"
)

const contextWindow = 5

// DerivePlayerContext builds the usage-signal context from a player's
// game log: the recent minutes window and the role trend inferred from
// it against the season baseline.
func DerivePlayerContext(playerID, displayName, teamID string, entries []models.GameLogEntry) models.PlayerContext {
	recent := make([]float64, 0, contextWindow)
	start := len(entries) - contextWindow
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		recent = append(recent, e.Minutes)
	}

	return models.PlayerContext{
		PlayerID:      playerID,
		DisplayName:   displayName,
		TeamID:        teamID,
		RecentMinutes: recent,
		RoleTrend:     roleTrend(entries, recent),
	}
}

// roleTrend compares recent minutes against the season baseline; a
// shift beyond 15% in either direction marks the role as moving.
func roleTrend(entries []models.GameLogEntry, recent []float64) models.RoleTrend {
	if len(entries) < contextWindow*2 || len(recent) == 0 {
		return models.RoleStable
	}
	var season float64
	for _, e := range entries {
		season += e.Minutes
	}
	season /= float64(len(entries))
	if season <= 0 {
		return models.RoleStable
	}

	var rec float64
	for _, m := range recent {
		rec += m
	}
	rec /= float64(len(recent))

	switch ratio := rec / season; {
	case ratio > 1.15:
		return models.RoleRising
	case ratio < 0.85:
		return models.RoleFalling
	default:
		return models.RoleStable
	}
}
