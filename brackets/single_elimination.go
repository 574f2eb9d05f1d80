package brackets

import "fmt"

// PlayoffRound is one elimination round of the playoff phase. Number is
// 1-based starting at the widest round; Matches is how many fixtures the
// round holds.
type PlayoffRound struct {
	Number  int
	Name    string
	Matches int
}

// BracketSize returns the single-elimination bracket size for teamCount
// teams: the next power of two at or above it. Teams on byes skip the first
// round implicitly; the bracket shell itself is always full.
func BracketSize(teamCount int) int {
	if teamCount < 2 {
		return 2
	}
	size := 1
	for size < teamCount {
		size <<= 1
	}
	return size
}

// PlayoffRounds enumerates the rounds of a bracket sized for teamCount
// teams, widest first. The total match count across rounds is always
// BracketSize(teamCount)-1.
func PlayoffRounds(teamCount int) []PlayoffRound {
	remaining := BracketSize(teamCount)

	var rounds []PlayoffRound
	number := 1
	for remaining > 1 {
		rounds = append(rounds, PlayoffRound{
			Number:  number,
			Name:    roundName(remaining),
			Matches: remaining / 2,
		})
		remaining /= 2
		number++
	}
	return rounds
}

// roundName follows the standard Spanish naming for the round of `teams`.
func roundName(teams int) string {
	switch teams {
	case 2:
		return "Final"
	case 4:
		return "Semifinales"
	case 8:
		return "Cuartos de Final"
	case 16:
		return "Octavos de Final"
	case 32:
		return "Dieciseisavos"
	default:
		return fmt.Sprintf("Ronda de %d", teams)
	}
}
