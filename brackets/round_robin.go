package brackets

import "fmt"

// Pairing is one round-robin fixture between two positions of the
// seed-ordered team slice. Rounds are 1-based.
type Pairing struct {
	Round int
	Team1 int
	Team2 int
}

// RoundRobinPairings generates every pairing for n teams with the circle
// method: position 0 stays fixed while the remaining positions rotate one
// step per round. An odd n gets a sentinel bye slot whose pairings are
// discarded. The result covers n-1 rounds for even n, n rounds for odd n,
// with floor(n/2) pairings per round; the caller's seed order fully
// determines the output.
func RoundRobinPairings(n int) ([]Pairing, error) {
	if n < 2 {
		return nil, fmt.Errorf("round robin requires at least 2 teams, got %d", n)
	}

	size := n
	bye := -1
	if size%2 != 0 {
		bye = size
		size++
	}

	wheel := make([]int, size)
	for i := range wheel {
		wheel[i] = i
	}

	rounds := size - 1
	pairings := make([]Pairing, 0, rounds*size/2)
	for round := 1; round <= rounds; round++ {
		for i := 0; i < size/2; i++ {
			t1 := wheel[i]
			t2 := wheel[size-1-i]
			if t1 == bye || t2 == bye {
				continue
			}
			pairings = append(pairings, Pairing{Round: round, Team1: t1, Team2: t2})
		}
		// Rotate everything except the fixed first position.
		last := wheel[size-1]
		copy(wheel[2:], wheel[1:size-1])
		wheel[1] = last
	}

	return pairings, nil
}
