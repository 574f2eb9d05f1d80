package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketSize(t *testing.T) {
	cases := map[int]int{1: 2, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 9: 16, 16: 16, 17: 32}
	for teams, want := range cases {
		assert.Equal(t, want, BracketSize(teams), "teams=%d", teams)
	}
}

func TestPlayoffRounds_MatchCountIsBracketSizeMinusOne(t *testing.T) {
	for _, teams := range []int{2, 3, 4, 6, 8, 12, 16, 33} {
		rounds := PlayoffRounds(teams)
		total := 0
		for _, r := range rounds {
			total += r.Matches
		}
		assert.Equal(t, BracketSize(teams)-1, total, "teams=%d", teams)
	}
}

func TestPlayoffRounds_NamesAndShape(t *testing.T) {
	rounds := PlayoffRounds(8)
	require.Len(t, rounds, 3)

	assert.Equal(t, "Cuartos de Final", rounds[0].Name)
	assert.Equal(t, 4, rounds[0].Matches)
	assert.Equal(t, "Semifinales", rounds[1].Name)
	assert.Equal(t, 2, rounds[1].Matches)
	assert.Equal(t, "Final", rounds[2].Name)
	assert.Equal(t, 1, rounds[2].Matches)

	wide := PlayoffRounds(64)
	assert.Equal(t, "Ronda de 64", wide[0].Name)
	assert.Equal(t, "Dieciseisavos", wide[1].Name)
	assert.Equal(t, "Octavos de Final", wide[2].Name)
}

func TestPlayoffRounds_FourAdvancing(t *testing.T) {
	rounds := PlayoffRounds(4)
	require.Len(t, rounds, 2)
	assert.Equal(t, "Semifinales", rounds[0].Name)
	assert.Equal(t, "Final", rounds[1].Name)
}
