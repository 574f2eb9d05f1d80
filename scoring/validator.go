package scoring

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

// Failure codes surfaced to clients alongside a 400.
const (
	CodeSetInvalid       = "set_invalid"
	CodeTiebreakMissing  = "tiebreak_missing"
	CodeTiebreakInvalid  = "tiebreak_invalid"
	CodeTiebreakMismatch = "tiebreak_mismatch"
	CodeInsufficientSets = "insufficient_sets"
	CodeWinnerMismatch   = "winner_mismatch"
)

// ValidationError describes why a reported score is not a legal padel result.
// SetNumber is 0 when the failure is not tied to a single set.
type ValidationError struct {
	Code      string
	SetNumber int
	Message   string
}

func (e *ValidationError) Error() string {
	if e.SetNumber > 0 {
		return fmt.Sprintf("%s: set %d: %s", e.Code, e.SetNumber, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code string, setNumber int, format string, args ...interface{}) error {
	return &ValidationError{Code: code, SetNumber: setNumber, Message: fmt.Sprintf(format, args...)}
}

// Rules are the tournament-level scoring parameters.
type Rules struct {
	SetsToWin   int
	GamesPerSet int
}

// ValidateResult checks an ordered list of set scores against padel scoring
// rules and verifies that the declared winner is the team that actually won.
// A set ends at GamesPerSet games with a margin of two, at GamesPerSet+1
// games with a margin of two (the 7-5 extension), or at
// GamesPerSet+1 : GamesPerSet decided by a recorded tiebreak. Pure function:
// no I/O, no side effects.
func ValidateResult(sets []models.SetScore, winnerID, team1ID, team2ID uuid.UUID, rules Rules) error {
	if len(sets) == 0 {
		return invalid(CodeInsufficientSets, 0, "no sets reported")
	}

	team1Sets := 0
	team2Sets := 0
	for i, set := range sets {
		setNumber := set.SetNumber
		if setNumber == 0 {
			setNumber = i + 1
		}

		if team1Sets >= rules.SetsToWin || team2Sets >= rules.SetsToWin {
			return invalid(CodeSetInvalid, setNumber, "match already decided after %d sets", i)
		}

		setWinner, err := validateSet(set, setNumber, rules.GamesPerSet)
		if err != nil {
			return err
		}
		if setWinner == 1 {
			team1Sets++
		} else {
			team2Sets++
		}
	}

	var actualWinner uuid.UUID
	switch {
	case team1Sets >= rules.SetsToWin:
		actualWinner = team1ID
	case team2Sets >= rules.SetsToWin:
		actualWinner = team2ID
	default:
		return invalid(CodeInsufficientSets, 0, "no team reached %d sets (got %d-%d)", rules.SetsToWin, team1Sets, team2Sets)
	}

	if actualWinner != winnerID {
		return invalid(CodeWinnerMismatch, 0, "declared winner did not win %d sets", rules.SetsToWin)
	}
	return nil
}

// validateSet returns 1 or 2 for the side that won the set.
func validateSet(set models.SetScore, setNumber, gamesPerSet int) (int, error) {
	g1, g2 := set.Team1Games, set.Team2Games
	if g1 < 0 || g2 < 0 {
		return 0, invalid(CodeSetInvalid, setNumber, "negative game count")
	}
	if g1 == g2 {
		return 0, invalid(CodeSetInvalid, setNumber, "set cannot end level at %d-%d", g1, g2)
	}

	hi, lo := g1, g2
	setWinner := 1
	if g2 > g1 {
		hi, lo = g2, g1
		setWinner = 2
	}

	hasTiebreak := set.TiebreakTeam1 != nil || set.TiebreakTeam2 != nil
	tiebreakSet := hi == gamesPerSet+1 && lo == gamesPerSet

	switch {
	case tiebreakSet:
		if !hasTiebreak {
			return 0, invalid(CodeTiebreakMissing, setNumber, "%d-%d requires a tiebreak", hi, lo)
		}
		if set.TiebreakTeam1 == nil || set.TiebreakTeam2 == nil {
			return 0, invalid(CodeTiebreakInvalid, setNumber, "tiebreak must record both scores")
		}
		tb1, tb2 := *set.TiebreakTeam1, *set.TiebreakTeam2
		tbHi, tbLo := tb1, tb2
		tbWinner := 1
		if tb2 > tb1 {
			tbHi, tbLo = tb2, tb1
			tbWinner = 2
		}
		if tbLo < 0 || tbHi < 7 || tbHi-tbLo < 2 {
			return 0, invalid(CodeTiebreakInvalid, setNumber, "tiebreak %d-%d is not a valid result", tb1, tb2)
		}
		if tbWinner != setWinner {
			return 0, invalid(CodeTiebreakMismatch, setNumber, "tiebreak winner does not match set winner")
		}
	case hasTiebreak:
		return 0, invalid(CodeTiebreakInvalid, setNumber, "tiebreak recorded for a %d-%d set", g1, g2)
	case hi == gamesPerSet && hi-lo >= 2:
		// Regular set, e.g. 6-4.
	case hi == gamesPerSet+1 && hi-lo == 2:
		// Extended set, e.g. 7-5.
	default:
		return 0, invalid(CodeSetInvalid, setNumber, "%d-%d is not a valid set score", g1, g2)
	}

	return setWinner, nil
}
