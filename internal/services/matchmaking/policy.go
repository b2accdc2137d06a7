package matchmaking

import (
	"fmt"

	"github.com/mcoot/quizmatch/internal/model"
)

// Policy chooses which queued players form the next game
// Select receives ranks in queue order and returns ascending indices of exactly size
// members, or nil when no group qualifies
type Policy interface {
	Mode() model.MatchMode
	Select(ranks []int, size int) []int
}

// NewPolicy returns the single policy for the configured mode
func NewPolicy(mode model.MatchMode, threshold int) (Policy, error) {
	switch mode {
	case model.MatchModeFIFO:
		return FIFO{}, nil
	case model.MatchModeRanked:
		return RankProximity{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidMatchMode, mode)
	}
}

// FIFO groups the longest-waiting players
type FIFO struct{}

func (FIFO) Mode() model.MatchMode { return model.MatchModeFIFO }

func (FIFO) Select(ranks []int, size int) []int {
	if size <= 0 || len(ranks) < size {
		return nil
	}
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// RankProximity groups players whose rank is within Threshold of a starting player
type RankProximity struct {
	Threshold int
}

func (RankProximity) Mode() model.MatchMode { return model.MatchModeRanked }

// Select scans starting players from the front; for each it collects later players
// in queue order within Threshold of the starter, stopping at size
func (p RankProximity) Select(ranks []int, size int) []int {
	if size <= 0 || len(ranks) < size {
		return nil
	}

	for start := 0; start <= len(ranks)-size; start++ {
		group := make([]int, 0, size)
		group = append(group, start)
		for j := start + 1; j < len(ranks) && len(group) < size; j++ {
			if abs(ranks[j]-ranks[start]) <= p.Threshold {
				group = append(group, j)
			}
		}
		if len(group) == size {
			return group
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
