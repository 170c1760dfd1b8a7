package adapters

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

type teamFormPayload struct {
	LeaguePace float64       `json:"league_pace"`
	Teams      []teamFormRow `json:"teams"`
}

type teamFormRow struct {
	TeamID             string             `json:"team_id"`
	LastResults        []bool             `json:"last_results"`
	PointsForAvg       float64            `json:"points_for_avg"`
	PointsAgainstAvg   float64            `json:"points_against_avg"`
	PaceEstimate       float64            `json:"pace_estimate"`
	HomeAwaySplit      float64            `json:"home_away_split"`
	StrengthIndex      float64            `json:"strength_index"`
	AllowedMultipliers map[string]float64 `json:"allowed_multipliers"`
}

// ParseTeamForms converts the league table payload into per-team form
// records plus the league pace baseline. Rows without a team_id are
// dropped; unrecognized stat families in the multiplier table are
// ignored.
func ParseTeamForms(payload []byte) (map[string]models.TeamForm, float64, error) {
	var raw teamFormPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, 0, &models.BadUpstreamError{Reason: "team form payload not valid JSON", Excerpt: excerpt(payload)}
	}

	teams := make(map[string]models.TeamForm, len(raw.Teams))
	for _, row := range raw.Teams {
		if row.TeamID == "" {
			log.Debug().Msg("team form row without team_id dropped")
			continue
		}
		multipliers := make(map[models.StatKind]float64, len(row.AllowedMultipliers))
		for k, v := range row.AllowedMultipliers {
			stat, ok := models.ParseStat(k)
			if !ok {
				continue
			}
			multipliers[stat] = v
		}
		teams[row.TeamID] = models.TeamForm{
			TeamID:             row.TeamID,
			LastResults:        row.LastResults,
			PointsForAvg:       row.PointsForAvg,
			PointsAgainstAvg:   row.PointsAgainstAvg,
			PaceEstimate:       row.PaceEstimate,
			HomeAwaySplit:      row.HomeAwaySplit,
			StrengthIndex:      row.StrengthIndex,
			AllowedMultipliers: multipliers,
		}
	}
	return teams, raw.LeaguePace, nil
}
