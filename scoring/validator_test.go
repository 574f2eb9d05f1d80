package scoring

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	teamA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	teamB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func intPtr(v int) *int { return &v }

func set(n, g1, g2 int) models.SetScore {
	return models.SetScore{SetNumber: n, Team1Games: g1, Team2Games: g2}
}

func tbSet(n, g1, g2, tb1, tb2 int) models.SetScore {
	s := set(n, g1, g2)
	s.TiebreakTeam1 = intPtr(tb1)
	s.TiebreakTeam2 = intPtr(tb2)
	return s
}

func code(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Code
}

func TestValidateResult_StraightSetsWin(t *testing.T) {
	rules := Rules{SetsToWin: 2, GamesPerSet: 6}
	err := ValidateResult([]models.SetScore{set(1, 6, 4), set(2, 6, 3)}, teamA, teamA, teamB, rules)
	require.NoError(t, err)
}

func TestValidateResult_ThreeSetComeback(t *testing.T) {
	rules := Rules{SetsToWin: 2, GamesPerSet: 6}
	sets := []models.SetScore{set(1, 3, 6), set(2, 6, 2), tbSet(3, 7, 6, 7, 3)}
	require.NoError(t, ValidateResult(sets, teamA, teamA, teamB, rules))
}

func TestValidateResult_ExtendedSetSevenFive(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}
	require.NoError(t, ValidateResult([]models.SetScore{set(1, 7, 5)}, teamA, teamA, teamB, rules))
}

func TestValidateResult_SetInvalidScores(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}
	for _, s := range []models.SetScore{
		set(1, 6, 5),  // no margin
		set(1, 7, 4),  // should have ended 6-4
		set(1, 8, 6),  // beyond the extension
		set(1, 5, 5),  // level
		set(1, -1, 6), // negative
	} {
		err := ValidateResult([]models.SetScore{s}, teamA, teamA, teamB, rules)
		require.Error(t, err, "set %d-%d", s.Team1Games, s.Team2Games)
		assert.Equal(t, CodeSetInvalid, code(t, err))
	}
}

func TestValidateResult_TiebreakMissing(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}
	err := ValidateResult([]models.SetScore{set(1, 7, 6)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeTiebreakMissing, code(t, err))
}

func TestValidateResult_TiebreakValid(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}
	require.NoError(t, ValidateResult([]models.SetScore{tbSet(1, 7, 6, 7, 5)}, teamA, teamA, teamB, rules))
	// Tiebreaks extend past 7 with a two point margin.
	require.NoError(t, ValidateResult([]models.SetScore{tbSet(1, 6, 7, 10, 12)}, teamB, teamA, teamB, rules))
}

func TestValidateResult_TiebreakInvalid(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}

	err := ValidateResult([]models.SetScore{tbSet(1, 7, 6, 7, 6)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeTiebreakInvalid, code(t, err))

	err = ValidateResult([]models.SetScore{tbSet(1, 7, 6, 6, 4)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeTiebreakInvalid, code(t, err))

	// A tiebreak on a set that did not reach 7-6 is noise, not data.
	err = ValidateResult([]models.SetScore{tbSet(1, 6, 3, 7, 5)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeTiebreakInvalid, code(t, err))
}

func TestValidateResult_TiebreakMismatch(t *testing.T) {
	rules := Rules{SetsToWin: 1, GamesPerSet: 6}
	err := ValidateResult([]models.SetScore{tbSet(1, 7, 6, 3, 7)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeTiebreakMismatch, code(t, err))
}

func TestValidateResult_InsufficientSets(t *testing.T) {
	rules := Rules{SetsToWin: 2, GamesPerSet: 6}

	err := ValidateResult(nil, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeInsufficientSets, code(t, err))

	err = ValidateResult([]models.SetScore{set(1, 6, 4)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeInsufficientSets, code(t, err))

	// Split sets decide nothing.
	err = ValidateResult([]models.SetScore{set(1, 6, 4), set(2, 4, 6)}, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeInsufficientSets, code(t, err))
}

func TestValidateResult_WinnerMismatch(t *testing.T) {
	rules := Rules{SetsToWin: 2, GamesPerSet: 6}
	err := ValidateResult([]models.SetScore{set(1, 6, 4), set(2, 6, 3)}, teamB, teamA, teamB, rules)
	assert.Equal(t, CodeWinnerMismatch, code(t, err))
}

func TestValidateResult_ExtraSetAfterDecision(t *testing.T) {
	rules := Rules{SetsToWin: 2, GamesPerSet: 6}
	sets := []models.SetScore{set(1, 6, 4), set(2, 6, 3), set(3, 6, 0)}
	err := ValidateResult(sets, teamA, teamA, teamB, rules)
	assert.Equal(t, CodeSetInvalid, code(t, err))
}
