package adapters

import (
	"regexp"
	"strings"

	"courtedge/internal/models"
)

// ParsedProp is the structured extraction of a free-text prop insight.
type ParsedProp struct {
	PlayerKey string
	Stat      models.StatKind
	Side      models.Side
	Line      float64
}

// Insight phrasings seen on game boards, most specific first:
//
//	"Jayson Tatum to record 4+ assists"
//	"J. Brown Over 24.5 points"
//	"Under 6.5 rebounds - Derrick White"
var (
	propToVerbRe = regexp.MustCompile(`(?i)^([a-z][a-z .'\-]+?)\s+to\s+(?:score|record|grab|dish|make|hit)\s+(\d+(?:\.\d+)?\+?)\s+([a-z -]+?)\s*$`)
	propSideRe   = regexp.MustCompile(`(?i)^([a-z][a-z .'\-]+?)\s+(over|under)\s+(\d+(?:\.\d+)?)\s+([a-z -]+?)\s*$`)
	propLeadRe   = regexp.MustCompile(`(?i)^(over|under)\s+(\d+(?:\.\d+)?)\s+([a-z -]+?)\s*[-–]\s*([a-z][a-z .'\-]+?)\s*$`)
)

var statKeywords = []string{
	"points", "rebounds", "assists", "threes", "blocks", "steals",
	"pts", "reb", "ast", "blk", "stl",
}

var teamMarketTokens = []string{
	"moneyline", "spread", "total", "handicap", "team", "to win", "margin",
}

// ParseInsight deterministically extracts a player prop from one insight
// string. It returns ok=false when the subject is a team name, the text
// indicates a team market, the player-name match collides with a stat
// keyword, or the phrasing is unrecognized.
func ParseInsight(text string, game models.Game) (ParsedProp, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return ParsedProp{}, false
	}

	lower := strings.ToLower(t)
	for _, tok := range teamMarketTokens {
		if strings.Contains(lower, tok) {
			return ParsedProp{}, false
		}
	}

	var name, lineTok, statTok string
	var side models.Side

	switch {
	case propToVerbRe.MatchString(t):
		m := propToVerbRe.FindStringSubmatch(t)
		name, lineTok, statTok = m[1], m[2], m[3]
		side = models.SideOver
		if !strings.HasSuffix(lineTok, "+") {
			// "to record N stat" is always a threshold phrasing
			lineTok += "+"
		}
	case propSideRe.MatchString(t):
		m := propSideRe.FindStringSubmatch(t)
		name, statTok = m[1], m[4]
		lineTok = m[3]
		side, _ = parseSide(m[2])
	case propLeadRe.MatchString(t):
		m := propLeadRe.FindStringSubmatch(t)
		name, statTok = m[4], m[3]
		lineTok = m[2]
		side, _ = parseSide(m[1])
	default:
		return ParsedProp{}, false
	}

	stat, ok := models.ParseStat(statTok)
	if !ok {
		return ParsedProp{}, false
	}
	line, ok := ParseLine(lineTok)
	if !ok {
		return ParsedProp{}, false
	}

	key := NormalizePlayerName(name)
	if key == "" || isTeamSubject(key, game) || overlapsStatKeyword(key) {
		return ParsedProp{}, false
	}

	return ParsedProp{PlayerKey: key, Stat: stat, Side: side, Line: line}, true
}

func isTeamSubject(key string, game models.Game) bool {
	for _, team := range []string{game.AwayTeam, game.HomeTeam} {
		if team == "" {
			continue
		}
		norm := NormalizePlayerName(team)
		if key == norm || strings.Contains(norm, key) || strings.Contains(key, norm) {
			return true
		}
	}
	return false
}

func overlapsStatKeyword(key string) bool {
	for _, kw := range statKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}
