package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func TestParseTeamForms(t *testing.T) {
	payload := []byte(`{
		"league_pace": 99.5,
		"teams": [
			{"team_id": "BOS", "points_for_avg": 118.2, "points_against_avg": 109.1,
			 "pace_estimate": 98.0, "strength_index": 9.1,
			 "allowed_multipliers": {"points": 0.94, "rebounds": 1.02, "turnovers": 1.1}},
			{"team_id": "", "points_for_avg": 100}
		]
	}`)

	teams, pace, err := ParseTeamForms(payload)
	require.NoError(t, err)
	assert.Equal(t, 99.5, pace)
	require.Len(t, teams, 1) // row without team_id dropped

	bos := teams["BOS"]
	assert.Equal(t, 9.1, bos.StrengthIndex)

	mult, known := bos.Allowed(models.StatPoints)
	assert.True(t, known)
	assert.Equal(t, 0.94, mult)

	// unrecognized stat family ignored, unknown lookups fall to league mean
	mult, known = bos.Allowed(models.StatThrees)
	assert.False(t, known)
	assert.Equal(t, 1.0, mult)
}
