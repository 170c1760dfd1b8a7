package pipeline

import (
	"context"

	"courtedge/internal/adapters"
	"courtedge/internal/matchup"
	"courtedge/internal/models"
)

// MarketSource supplies the day's slate and each game's board. Both are
// typed evidence; transport, caching and throttling live behind the
// implementation.
type MarketSource interface {
	Games(ctx context.Context) ([]models.Game, error)
	Markets(ctx context.Context, game models.Game) ([]adapters.MarketQuote, []string, error)
}

// GameLogSource resolves a normalized player key into context plus the
// horizon-filtered game log. Unknown keys return PlayerNotFoundError.
type GameLogSource interface {
	PlayerLog(ctx context.Context, playerKey string) (models.PlayerContext, []models.GameLogEntry, error)
}

// TeamFormSource supplies the per-run league table. Cache-only by
// policy; a cold cache means missing form, not a fetch.
type TeamFormSource interface {
	League(ctx context.Context) (matchup.League, error)
}
