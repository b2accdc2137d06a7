package matchmaking

import (
	"time"

	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/model"
)

// Game is a formed group of players; the handles belong to the game until it ends
type Game struct {
	ID        model.GameID
	Mode      model.MatchMode
	Players   []*handle.Handle
	CreatedAt time.Time
}

// Usernames returns the players' identities in group order
func (g *Game) Usernames() []string {
	names := make([]string, len(g.Players))
	for i, p := range g.Players {
		names[i] = p.Username()
	}
	return names
}

// Ranks returns the players' ranks in group order
func (g *Game) Ranks() []int {
	ranks := make([]int, len(g.Players))
	for i, p := range g.Players {
		ranks[i] = p.Rank()
	}
	return ranks
}

// Close closes every player connection
func (g *Game) Close() {
	for _, p := range g.Players {
		p.Close()
	}
}
