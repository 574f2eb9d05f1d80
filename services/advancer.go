package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
)

// BracketAdvancer promotes the winner of a finished match into its downstream
// playoff match and keeps the downstream schedule consistent with the rest
// constraint. When the finished match closes its group, the advancer also
// seeds the group's qualifiers into the first playoff round. It always runs
// inside the caller's transaction.
type BracketAdvancer struct {
	tournaments repositories.TournamentRepository
	matches     repositories.MatchRepository
	setResults  repositories.SetResultRepository
	logger      *slog.Logger
}

func NewBracketAdvancer(
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	setResults repositories.SetResultRepository,
	logger *slog.Logger,
) *BracketAdvancer {
	return &BracketAdvancer{tournaments: tournaments, matches: matches, setResults: setResults, logger: logger}
}

// Advance moves the winner of m into the next match, if any. Odd feeder match
// numbers fill team1, even fill team2, so both feeders of one downstream match
// land in distinct slots regardless of finishing order. Once both slots are
// populated the downstream match is (re)scheduled unless its current time
// already satisfies the rest constraint. A group-stage match carries no
// next_match link; finishing one triggers the group promotion check instead.
func (a *BracketAdvancer) Advance(ctx context.Context, q repositories.SQLExecutor, m *models.Match, now time.Time) error {
	if m.WinnerID == nil {
		return nil
	}
	if m.NextMatchID == nil {
		if groupOf(m.BracketPosition) != "" {
			return a.promoteGroup(ctx, q, m, now)
		}
		return nil
	}

	next, err := a.matches.GetByIDForUpdate(ctx, q, m.TenantID, *m.NextMatchID)
	if err != nil {
		return fmt.Errorf("failed to load next match %s: %w", *m.NextMatchID, err)
	}
	if next.IsTerminal() {
		a.logger.Warn("next match already terminal, winner not promoted",
			slog.String("match_id", m.ID.String()),
			slog.String("next_match_id", next.ID.String()))
		return nil
	}
	if next.HasTeam(*m.WinnerID) {
		return nil // already promoted, e.g. an override re-running the advance
	}

	team1, team2 := next.Team1ID, next.Team2ID
	if m.MatchNumber%2 == 1 {
		if team1 == nil {
			team1 = m.WinnerID
		} else if team2 == nil {
			team2 = m.WinnerID
		}
	} else {
		if team2 == nil {
			team2 = m.WinnerID
		} else if team1 == nil {
			team1 = m.WinnerID
		}
	}
	if err := a.matches.UpdateSlots(ctx, q, m.TenantID, next.ID, team1, team2); err != nil {
		return fmt.Errorf("failed to promote winner into match %s: %w", next.ID, err)
	}
	next.Team1ID, next.Team2ID = team1, team2

	a.logger.Info("winner promoted",
		slog.String("match_id", m.ID.String()),
		slog.String("next_match_id", next.ID.String()),
		slog.String("winner_id", m.WinnerID.String()))

	if next.Team1ID == nil || next.Team2ID == nil {
		return nil
	}
	return a.reschedule(ctx, q, next, now)
}

// promoteGroup seeds the first playoff round from a group whose last match
// just finished. Group winners take seeds 1..G, runners-up G+1..2G and so on,
// and seed s meets seed N+1-s in the bracket of size N, which pairs each
// group winner against another group's runner-up. A qualifier whose bracket
// opponent seed exceeds the qualifier count holds a bye: its first-round
// match is decided by walkover and the team advances immediately.
func (a *BracketAdvancer) promoteGroup(ctx context.Context, q repositories.SQLExecutor, m *models.Match, now time.Time) error {
	group := groupOf(m.BracketPosition)

	all, err := a.matches.ListByTournament(ctx, q, m.TenantID, m.TournamentID, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to list tournament matches: %w", err)
	}

	var (
		groupMatches []*models.Match
		ownMatchIDs  []uuid.UUID
		firstRound   = make(map[int]*models.Match)
		letters      []string
		seen         = make(map[string]bool)
	)
	for _, candidate := range all {
		if g := groupOf(candidate.BracketPosition); g != "" {
			groupMatches = append(groupMatches, candidate)
			if !seen[g] {
				seen[g] = true
				letters = append(letters, g)
			}
			if g == group {
				if !candidate.IsTerminal() {
					return nil // group still in play
				}
				ownMatchIDs = append(ownMatchIDs, candidate.ID)
			}
			continue
		}
		if strings.HasPrefix(candidate.BracketPosition, "PO-R1-") {
			firstRound[candidate.MatchNumber] = candidate
		}
	}
	if len(firstRound) == 0 {
		return nil
	}
	sort.Strings(letters)
	groupIndex := -1
	for i, letter := range letters {
		if letter == group {
			groupIndex = i
		}
	}
	if groupIndex < 0 {
		return nil
	}

	setsByMatch, err := a.setResults.ListByMatches(ctx, q, m.TenantID, ownMatchIDs)
	if err != nil {
		return fmt.Errorf("failed to load group set results: %w", err)
	}
	rows := groupTables(groupMatches, setsByMatch)[group]

	t, err := a.tournaments.GetByID(ctx, q, m.TenantID, m.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to load tournament %s: %w", m.TournamentID, err)
	}
	cfg := fixtureConfigFromSettings(t.Settings)

	groupCount := len(letters)
	qualifiers := groupCount * cfg.TeamsAdvancePerGroup
	size := brackets.BracketSize(qualifiers)
	half := size / 2

	advance := cfg.TeamsAdvancePerGroup
	if advance > len(rows) {
		advance = len(rows)
	}

	for rank := 0; rank < advance; rank++ {
		teamID := rows[rank].TeamID
		seed := rank*groupCount + groupIndex + 1
		opponentSeed := size + 1 - seed

		target := firstRound[seed]
		slot1 := true
		if seed > half {
			target = firstRound[opponentSeed]
			slot1 = false
		}
		if target == nil || target.IsTerminal() || target.HasTeam(teamID) {
			continue
		}

		team1, team2 := target.Team1ID, target.Team2ID
		if slot1 {
			if team1 != nil {
				continue
			}
			team1 = &teamID
		} else {
			if team2 != nil {
				continue
			}
			team2 = &teamID
		}
		if err := a.matches.UpdateSlots(ctx, q, m.TenantID, target.ID, team1, team2); err != nil {
			return fmt.Errorf("failed to seed qualifier into match %s: %w", target.ID, err)
		}
		target.Team1ID, target.Team2ID = team1, team2

		a.logger.Info("group qualifier seeded",
			slog.String("group", group),
			slog.Int("seed", seed),
			slog.String("team_id", teamID.String()),
			slog.String("match_id", target.ID.String()))

		if opponentSeed > qualifiers {
			// No qualifier holds the opposing seed: the slot stays empty and
			// the match is decided by walkover.
			winner := teamID
			if err := a.matches.UpdateResult(ctx, q, m.TenantID, target.ID, repositories.MatchResultUpdate{
				Status:     models.MatchWalkover,
				WinnerID:   &winner,
				FinishedAt: &now,
			}); err != nil {
				return fmt.Errorf("failed to record bye walkover for match %s: %w", target.ID, err)
			}
			target.Status = models.MatchWalkover
			target.WinnerID = &winner
			target.FinishedAt = &now
			if err := a.Advance(ctx, q, target, now); err != nil {
				return err
			}
			continue
		}
		if target.Team1ID != nil && target.Team2ID != nil {
			if err := a.reschedule(ctx, q, target, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *BracketAdvancer) reschedule(ctx context.Context, q repositories.SQLExecutor, next *models.Match, now time.Time) error {
	t, err := a.tournaments.GetByID(ctx, q, next.TenantID, next.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to load tournament %s: %w", next.TournamentID, err)
	}
	cfg := fixtureConfigFromSettings(t.Settings)

	lastEnds, err := a.lastEnds(ctx, q, next)
	if err != nil {
		return err
	}

	if next.ScheduledAt != nil &&
		!next.ScheduledAt.Before(now) &&
		brackets.SatisfiesRest(*next.ScheduledAt, lastEnds, cfg) {
		return nil
	}

	at := brackets.NextAvailableSlot(now, lastEnds, cfg)
	if err := a.matches.UpdateSchedule(ctx, q, next.TenantID, next.ID, &at, models.MatchScheduled); err != nil {
		return fmt.Errorf("failed to schedule match %s: %w", next.ID, err)
	}

	a.logger.Info("downstream match scheduled",
		slog.String("match_id", next.ID.String()),
		slog.Time("scheduled_at", at))
	return nil
}

func (a *BracketAdvancer) lastEnds(ctx context.Context, q repositories.SQLExecutor, next *models.Match) ([]time.Time, error) {
	ends := make([]time.Time, 0, 2)
	for _, teamID := range []*uuid.UUID{next.Team1ID, next.Team2ID} {
		if teamID == nil {
			continue
		}
		end, err := a.matches.LastFinishedEnd(ctx, q, next.TenantID, next.TournamentID, *teamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load last match end for team %s: %w", *teamID, err)
		}
		if end != nil {
			ends = append(ends, *end)
		}
	}
	return ends, nil
}
