package adapters

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

type gameLogPayload struct {
	Entries []gameLogRow `json:"entries"`
}

type gameLogRow struct {
	Date     string             `json:"date"` // YYYY-MM-DD
	Opponent string             `json:"opponent"`
	IsHome   bool               `json:"is_home"`
	Minutes  float64            `json:"minutes"`
	Stats    map[string]float64 `json:"stats"`
	Win      bool               `json:"win"`
}

// ParseGameLog converts a game log payload into chronologically
// ascending entries. Duplicate dates are deduplicated (last one wins),
// stat values outside the family's natural range are dropped from the
// entry, and rest days are derived from the date sequence.
func ParseGameLog(payload []byte) ([]models.GameLogEntry, error) {
	var raw gameLogPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &models.BadUpstreamError{Reason: "game log not valid JSON", Excerpt: excerpt(payload)}
	}

	byDate := make(map[string]models.GameLogEntry, len(raw.Entries))
	for _, row := range raw.Entries {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, &models.BadUpstreamError{Reason: "unparseable game log date", Excerpt: row.Date}
		}
		if row.Minutes < 0 || row.Minutes > 60 {
			log.Debug().Str("date", row.Date).Float64("minutes", row.Minutes).Msg("game log entry with implausible minutes dropped")
			continue
		}

		stats := make(map[models.StatKind]float64, len(row.Stats))
		for k, v := range row.Stats {
			stat, ok := models.ParseStat(k)
			if !ok {
				continue
			}
			profile := models.ProfileFor(stat)
			if v < profile.MinValue || v > profile.MaxValue {
				log.Debug().Str("stat", string(stat)).Float64("value", v).Msg("stat value outside natural range dropped")
				continue
			}
			stats[stat] = v
		}

		byDate[row.Date] = models.GameLogEntry{
			Date:     date,
			Opponent: row.Opponent,
			IsHome:   row.IsHome,
			Minutes:  row.Minutes,
			Stats:    stats,
			Win:      row.Win,
		}
	}

	entries := make([]models.GameLogEntry, 0, len(byDate))
	for _, e := range byDate {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })

	for i := range entries {
		if i == 0 {
			entries[i].DaysRest = 2 // unknown before first entry; league-typical
			continue
		}
		rest := int(entries[i].Date.Sub(entries[i-1].Date).Hours()/24) - 1
		if rest < 0 {
			rest = 0
		}
		entries[i].DaysRest = rest
	}
	return entries, nil
}

// FilterHorizon drops entries older than the configured horizon: keep
// at most maxGames of the most recent entries, and none older than
// maxAge before now.
func FilterHorizon(entries []models.GameLogEntry, maxGames int, maxAge time.Duration, now time.Time) []models.GameLogEntry {
	cutoff := now.Add(-maxAge)
	fresh := make([]models.GameLogEntry, 0, len(entries))
	for _, e := range entries {
		if maxAge > 0 && e.Date.Before(cutoff) {
			continue
		}
		fresh = append(fresh, e)
	}
	if maxGames > 0 && len(fresh) > maxGames {
		fresh = fresh[len(fresh)-maxGames:]
	}
	return fresh
}
