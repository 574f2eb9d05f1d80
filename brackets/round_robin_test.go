package brackets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinPairings_TooFewTeams(t *testing.T) {
	_, err := RoundRobinPairings(1)
	require.Error(t, err)
}

func TestRoundRobinPairings_EveryPairExactlyOnce(t *testing.T) {
	for n := 2; n <= 9; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			pairings, err := RoundRobinPairings(n)
			require.NoError(t, err)

			// C(n,2) pairings in total.
			require.Len(t, pairings, n*(n-1)/2)

			seen := make(map[[2]int]int)
			perRound := make(map[int]int)
			teamRounds := make(map[int]map[int]bool)
			for _, p := range pairings {
				require.NotEqual(t, p.Team1, p.Team2, "team paired against itself")
				require.GreaterOrEqual(t, p.Team1, 0)
				require.Less(t, p.Team1, n)
				require.GreaterOrEqual(t, p.Team2, 0)
				require.Less(t, p.Team2, n)

				key := [2]int{min(p.Team1, p.Team2), max(p.Team1, p.Team2)}
				seen[key]++
				perRound[p.Round]++

				for _, team := range []int{p.Team1, p.Team2} {
					if teamRounds[team] == nil {
						teamRounds[team] = make(map[int]bool)
					}
					require.False(t, teamRounds[team][p.Round], "team %d plays twice in round %d", team, p.Round)
					teamRounds[team][p.Round] = true
				}
			}
			for key, count := range seen {
				assert.Equal(t, 1, count, "pair %v repeated", key)
			}

			wantRounds := n - 1
			if n%2 != 0 {
				wantRounds = n
			}
			assert.Len(t, perRound, wantRounds)
			for round, count := range perRound {
				assert.LessOrEqual(t, count, n/2, "round %d overfull", round)
			}
		})
	}
}

func TestRoundRobinPairings_Deterministic(t *testing.T) {
	a, err := RoundRobinPairings(6)
	require.NoError(t, err)
	b, err := RoundRobinPairings(6)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
