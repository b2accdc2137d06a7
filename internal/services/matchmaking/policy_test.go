package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/quizmatch/internal/model"
)

func TestFIFOSelect(t *testing.T) {
	tests := []struct {
		name  string
		ranks []int
		size  int
		want  []int
	}{
		{name: "too few", ranks: []int{100, 200}, size: 3, want: nil},
		{name: "exact", ranks: []int{100, 900, 5}, size: 3, want: []int{0, 1, 2}},
		{name: "takes earliest", ranks: []int{1, 2, 3, 4, 5}, size: 3, want: []int{0, 1, 2}},
		{name: "zero size", ranks: []int{1}, size: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FIFO{}.Select(tt.ranks, tt.size))
		})
	}
}

func TestRankProximitySelect(t *testing.T) {
	policy := RankProximity{Threshold: 100}

	tests := []struct {
		name  string
		ranks []int
		want  []int
	}{
		{name: "no qualifying group", ranks: []int{100, 250, 140}, want: nil},
		{name: "whole queue qualifies", ranks: []int{100, 140, 150}, want: []int{0, 1, 2}},
		{name: "skips outlier", ranks: []int{100, 500, 150, 190}, want: []int{0, 2, 3}},
		{name: "boundary is inclusive", ranks: []int{100, 200, 0}, want: []int{0, 1, 2}},
		{name: "advances starting player", ranks: []int{1000, 100, 150, 180}, want: []int{1, 2, 3}},
		{name: "compares against starter only", ranks: []int{100, 199, 1, 300}, want: []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Select(tt.ranks, 3))
		})
	}
}

func TestRankProximityGroupsStayWithinThreshold(t *testing.T) {
	policy := RankProximity{Threshold: 50}
	ranks := []int{10, 400, 70, 55, 420, 900, 30, 430, 12}

	indices := policy.Select(ranks, 3)
	require.Len(t, indices, 3)

	start := ranks[indices[0]]
	for _, i := range indices {
		assert.LessOrEqual(t, abs(ranks[i]-start), 50)
	}
	assert.IsIncreasing(t, indices)
}

func TestNewPolicyIsExclusivePerMode(t *testing.T) {
	fifo, err := NewPolicy(model.MatchModeFIFO, 100)
	require.NoError(t, err)
	assert.IsType(t, FIFO{}, fifo)

	ranked, err := NewPolicy(model.MatchModeRanked, 100)
	require.NoError(t, err)
	assert.Equal(t, RankProximity{Threshold: 100}, ranked)

	_, err = NewPolicy("both", 100)
	assert.ErrorIs(t, err, model.ErrInvalidMatchMode)
}
