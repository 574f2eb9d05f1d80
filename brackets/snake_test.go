package brackets

import (
	"testing"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededEntries(n int) []*models.Entry {
	entries := make([]*models.Entry, n)
	for i := range entries {
		seed := i + 1
		entries[i] = &models.Entry{ID: uuid.New(), TeamID: uuid.New(), Seed: &seed}
	}
	return entries
}

func TestSnakeDistribute_TwoGroups(t *testing.T) {
	entries := seededEntries(8)
	groups, err := SnakeDistribute(entries, 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	seedsOf := func(group []*models.Entry) []int {
		out := make([]int, len(group))
		for i, e := range group {
			out[i] = *e.Seed
		}
		return out
	}

	// Serpentine: 1 and 4 share a group, 2 and 3 share the other.
	assert.Equal(t, []int{1, 4, 5, 8}, seedsOf(groups[0]))
	assert.Equal(t, []int{2, 3, 6, 7}, seedsOf(groups[1]))
}

func TestSnakeDistribute_UnevenSplit(t *testing.T) {
	entries := seededEntries(7)
	groups, err := SnakeDistribute(entries, 2)
	require.NoError(t, err)

	// The serpentine walk is 0,1,1,0,0,1,1: the extra seed lands in the
	// group the direction flip favours, not necessarily the first one.
	seedsOf := func(group []*models.Entry) []int {
		out := make([]int, len(group))
		for i, e := range group {
			out[i] = *e.Seed
		}
		return out
	}
	assert.Equal(t, []int{1, 4, 5}, seedsOf(groups[0]))
	assert.Equal(t, []int{2, 3, 6, 7}, seedsOf(groups[1]))

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 7, total)
}

func TestSnakeDistribute_Errors(t *testing.T) {
	_, err := SnakeDistribute(seededEntries(4), 0)
	require.Error(t, err)

	_, err = SnakeDistribute(seededEntries(2), 3)
	require.Error(t, err)
}
