package adapters

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

// MarketQuote pairs a recognized market with its offered decimal odds.
type MarketQuote struct {
	Market models.Market
	Odds   models.Odds
}

// marketsPayload is the wire shape for a single game's board: priced
// markets plus free-text prop insights.
type marketsPayload struct {
	Markets  []marketRow `json:"markets"`
	Insights []string    `json:"insights"`
}

type marketRow struct {
	Market string  `json:"market"` // "moneyline", "spread", "total", "player_prop"
	Side   string  `json:"side"`   // "home", "away", "over", "under"
	Line   string  `json:"line"`   // "23.5" or whole-number phrasing "4+"
	Odds   float64 `json:"odds"`
	Player string  `json:"player,omitempty"`
	Stat   string  `json:"stat,omitempty"`
}

// ParseMarkets converts a game's board payload into ordered
// (Market, Odds) pairs. Odds must be strictly greater than 1.0;
// markets outside the recognized fingerprint set are dropped with a
// debug note rather than failing the payload.
func ParseMarkets(payload []byte, game models.Game) ([]MarketQuote, []string, error) {
	var raw marketsPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, &models.BadUpstreamError{Reason: "markets payload not valid JSON", Excerpt: excerpt(payload)}
	}

	quotes := make([]MarketQuote, 0, len(raw.Markets))
	for _, row := range raw.Markets {
		odds := models.Odds(row.Odds)
		if !odds.Valid() {
			return nil, nil, &models.BadUpstreamError{Reason: "odds not > 1.0", Excerpt: row.Market}
		}

		market, ok := parseMarketRow(row)
		if !ok {
			log.Debug().
				Str("game", game.Key()).
				Str("market", row.Market).
				Msg("unrecognized market fingerprint dropped")
			continue
		}
		quotes = append(quotes, MarketQuote{Market: market, Odds: odds})
	}
	return quotes, raw.Insights, nil
}

func parseMarketRow(row marketRow) (models.Market, bool) {
	side, ok := parseSide(row.Side)
	if !ok {
		return models.Market{}, false
	}

	switch strings.ToLower(strings.TrimSpace(row.Market)) {
	case "moneyline", "ml":
		if side != models.SideHome && side != models.SideAway {
			return models.Market{}, false
		}
		return models.Market{Kind: models.MarketMoneyline, Side: side}, true

	case "spread", "handicap":
		line, ok := ParseLine(row.Line)
		if !ok || (side != models.SideHome && side != models.SideAway) {
			return models.Market{}, false
		}
		return models.Market{Kind: models.MarketSpread, Side: side, Line: line}, true

	case "total", "totals":
		line, ok := ParseLine(row.Line)
		if !ok || (side != models.SideOver && side != models.SideUnder) {
			return models.Market{}, false
		}
		return models.Market{Kind: models.MarketTotal, Side: side, Line: line}, true

	case "player_prop", "prop":
		line, ok := ParseLine(row.Line)
		if !ok || (side != models.SideOver && side != models.SideUnder) {
			return models.Market{}, false
		}
		stat, ok := models.ParseStat(row.Stat)
		if !ok || row.Player == "" {
			return models.Market{}, false
		}
		return models.Market{
			Kind:     models.MarketPlayerProp,
			Side:     side,
			Line:     line,
			Stat:     stat,
			PlayerID: NormalizePlayerName(row.Player),
		}, true
	}
	return models.Market{}, false
}

func parseSide(s string) (models.Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "over", "o":
		return models.SideOver, true
	case "under", "u":
		return models.SideUnder, true
	case "home", "h":
		return models.SideHome, true
	case "away", "a":
		return models.SideAway, true
	}
	return "", false
}

// ParseLine converts a line token to its numeric threshold. Whole-number
// phrasings ("4+") mean "k or more" and are stored as k-0.5 so that
// cover probability is computed against the same boundary.
func ParseLine(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasSuffix(s, "+") {
		k, err := strconv.ParseFloat(strings.TrimSuffix(s, "+"), 64)
		if err != nil {
			return 0, false
		}
		return k - 0.5, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
