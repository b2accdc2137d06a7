package model

import (
	"fmt"
	"strings"
)

// GameID uniquely identifies a game
type GameID string

// MatchMode selects the matchmaking policy, chosen once at server startup
type MatchMode string

const (
	MatchModeFIFO   MatchMode = "fifo"   // Oldest players first
	MatchModeRanked MatchMode = "ranked" // Players grouped by rank proximity
)

// ParseMatchMode converts a user supplied selector into a MatchMode
// Accepts the mode names as well as the numeric selectors 0 (fifo) and 1 (ranked)
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "simple", "0":
		return MatchModeFIFO, nil
	case "ranked", "rank", "1":
		return MatchModeRanked, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMatchMode, s)
	}
}

// GameResult is a lightweight record of a completed game
type GameResult struct {
	ID     GameID
	Scores map[string]int // username -> final score
	Winner string         // Empty if tie or no players left
}
