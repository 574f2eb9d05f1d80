package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/events"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
)

// Broadcaster pushes live updates to websocket rooms. Satisfied by
// *brackets.Hub; a nil Broadcaster is a no-op.
type Broadcaster interface {
	BroadcastTournament(tournamentID uuid.UUID, msgType string, payload interface{})
}

// GroupSummary describes one generated group of the fixture.
type GroupSummary struct {
	Name    string      `json:"name"`
	TeamIDs []uuid.UUID `json:"team_ids"`
}

type GroupStageSummary struct {
	Groups       []GroupSummary `json:"groups"`
	MatchesCount int            `json:"matches_count"`
}

type PlayoffStageSummary struct {
	Rounds       int `json:"rounds"`
	MatchesCount int `json:"matches_count"`
}

// FixtureSummary is the result of a successful fixture generation.
type FixtureSummary struct {
	TournamentID uuid.UUID           `json:"tournament_id"`
	TotalMatches int                 `json:"total_matches"`
	GroupStage   GroupStageSummary   `json:"group_stage"`
	PlayoffStage PlayoffStageSummary `json:"playoff_stage"`
	Schedule     brackets.Schedule   `json:"schedule"`
}

// FixtureService builds the complete fixture of a tournament: snake-seeded
// groups, intra-group round robins, the playoff bracket shell, and the
// temporal schedule, all inside one serializable transaction.
type FixtureService struct {
	tx          repositories.TxRunner
	tournaments repositories.TournamentRepository
	entries     repositories.EntryRepository
	matches     repositories.MatchRepository
	publisher   events.Publisher
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewFixtureService(
	tx repositories.TxRunner,
	tournaments repositories.TournamentRepository,
	entries repositories.EntryRepository,
	matches repositories.MatchRepository,
	publisher events.Publisher,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *FixtureService {
	return &FixtureService{
		tx:          tx,
		tournaments: tournaments,
		entries:     entries,
		matches:     matches,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateFixture replaces any existing fixture of the tournament with a
// freshly generated one and moves the tournament to in_progress. Admin only.
func (s *FixtureService) GenerateFixture(ctx context.Context, caller Caller, tournamentID uuid.UUID, cfg *brackets.FixtureConfig) (*FixtureSummary, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	config := brackets.FixtureConfig{}
	if cfg != nil {
		config = *cfg
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var summary *FixtureSummary
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, q, caller.TenantID, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentRegistrationClosed && t.Status != models.TournamentInProgress {
			return fmt.Errorf("%w: status is %s", ErrTournamentNotReady, t.Status)
		}

		confirmed, err := s.entries.ListConfirmedForUpdate(ctx, q, caller.TenantID, tournamentID)
		if err != nil {
			return err
		}
		if len(confirmed) < t.MinTeams || len(confirmed) < 2 {
			return fmt.Errorf("%w: %d confirmed, minimum %d", ErrNotEnoughTeams, len(confirmed), t.MinTeams)
		}
		if len(confirmed) > t.MaxTeams {
			return fmt.Errorf("%w: %d confirmed, maximum %d", ErrTooManyTeams, len(confirmed), t.MaxTeams)
		}

		deleted, err := s.matches.DeleteByTournament(ctx, q, caller.TenantID, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to clear previous fixture: %w", err)
		}
		if deleted > 0 {
			s.logger.Info("previous fixture cleared",
				slog.String("tournament_id", tournamentID.String()),
				slog.Int64("matches_deleted", deleted))
		}

		groupCount := config.ResolveGroups(len(confirmed))
		groups, err := brackets.SnakeDistribute(confirmed, groupCount)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		for i, g := range groups {
			if len(g) < 2 {
				return fmt.Errorf("%w: group %s would hold %d teams", ErrValidation, groupLetter(i), len(g))
			}
		}

		groupMatches, maxGroupRound, err := s.buildGroupMatches(t, groups)
		if err != nil {
			return err
		}
		playoffMatches, playoffRounds := s.buildPlayoffMatches(t, groupCount*config.TeamsAdvancePerGroup, maxGroupRound)

		schedule := brackets.ScheduleMatches(groupMatches, playoffMatches, t.StartDate, config)

		all := append(append([]*models.Match{}, groupMatches...), playoffMatches...)
		if err := s.matches.CreateBatch(ctx, q, all); err != nil {
			return fmt.Errorf("failed to persist fixture: %w", err)
		}

		settings, err := mergeSettings(t.Settings, fixtureConfigKey, config)
		if err != nil {
			return err
		}
		if err := s.tournaments.UpdateSettings(ctx, q, caller.TenantID, tournamentID, settings); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.tournaments.StampFixtureGenerated(ctx, q, caller.TenantID, tournamentID, now, caller.TenantUserID); err != nil {
			return err
		}

		summary = &FixtureSummary{
			TournamentID: tournamentID,
			TotalMatches: len(all),
			GroupStage: GroupStageSummary{
				Groups:       groupSummaries(groups),
				MatchesCount: len(groupMatches),
			},
			PlayoffStage: PlayoffStageSummary{
				Rounds:       playoffRounds,
				MatchesCount: len(playoffMatches),
			},
			Schedule: schedule,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fixture generated",
		slog.String("tournament_id", tournamentID.String()),
		slog.Int("total_matches", summary.TotalMatches),
		slog.String("request_id", caller.RequestID))

	if s.publisher != nil {
		if err := s.publisher.Audit(ctx, events.AuditRecord{
			TenantID:  caller.TenantID,
			RequestID: caller.RequestID,
			ActorID:   caller.TenantUserID,
			Action:    "fixture.generate",
			Entity:    "tournament",
			EntityID:  tournamentID,
			Details:   map[string]interface{}{"total_matches": summary.TotalMatches},
		}); err != nil {
			s.logger.Warn("audit emit failed", slog.Any("error", err))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(tournamentID, brackets.EventFixtureGenerated, summary)
	}
	return summary, nil
}

// buildGroupMatches lays out every group's round robin. Match numbers are
// assigned per round across all groups, so (round_number, match_number) stays
// unique within the tournament.
func (s *FixtureService) buildGroupMatches(t *models.Tournament, groups [][]*models.Entry) ([]*models.Match, int, error) {
	type groupPairings struct {
		letter   string
		entries  []*models.Entry
		pairings []brackets.Pairing
	}

	plans := make([]groupPairings, len(groups))
	maxRound := 0
	for i, g := range groups {
		pairings, err := brackets.RoundRobinPairings(len(g))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		plans[i] = groupPairings{letter: groupLetter(i), entries: g, pairings: pairings}
		for _, p := range pairings {
			if p.Round > maxRound {
				maxRound = p.Round
			}
		}
	}

	matches := make([]*models.Match, 0)
	for round := 1; round <= maxRound; round++ {
		number := 1
		for _, plan := range plans {
			for _, p := range plan.pairings {
				if p.Round != round {
					continue
				}
				team1 := plan.entries[p.Team1].TeamID
				team2 := plan.entries[p.Team2].TeamID
				matches = append(matches, &models.Match{
					ID:              uuid.New(),
					TenantID:        t.TenantID,
					TournamentID:    t.ID,
					RoundNumber:     round,
					RoundName:       fmt.Sprintf("Grupo %s", plan.letter),
					MatchNumber:     number,
					BracketPosition: fmt.Sprintf("G%s-R%d-M%dv%d", plan.letter, round, p.Team1+1, p.Team2+1),
					Team1ID:         &team1,
					Team2ID:         &team2,
					Status:          models.MatchScheduled,
				})
				number++
			}
		}
	}
	return matches, maxRound, nil
}

// buildPlayoffMatches creates the empty bracket shells. Round numbers continue
// after the last group round; match m of a round feeds match ceil(m/2) of the
// next one.
func (s *FixtureService) buildPlayoffMatches(t *models.Tournament, advancing, maxGroupRound int) ([]*models.Match, int) {
	rounds := brackets.PlayoffRounds(advancing)

	byRound := make([][]*models.Match, len(rounds))
	all := make([]*models.Match, 0)
	for ri, round := range rounds {
		byRound[ri] = make([]*models.Match, round.Matches)
		for n := 1; n <= round.Matches; n++ {
			m := &models.Match{
				ID:              uuid.New(),
				TenantID:        t.TenantID,
				TournamentID:    t.ID,
				RoundNumber:     maxGroupRound + round.Number,
				RoundName:       round.Name,
				MatchNumber:     n,
				BracketPosition: fmt.Sprintf("PO-R%d-M%d", round.Number, n),
				Status:          models.MatchScheduled,
			}
			byRound[ri][n-1] = m
			all = append(all, m)
		}
	}

	for ri := 0; ri < len(byRound)-1; ri++ {
		for n, m := range byRound[ri] {
			next := byRound[ri+1][n/2]
			id := next.ID
			m.NextMatchID = &id
		}
	}
	return all, len(rounds)
}

func groupSummaries(groups [][]*models.Entry) []GroupSummary {
	out := make([]GroupSummary, len(groups))
	for i, g := range groups {
		teams := make([]uuid.UUID, len(g))
		for j, e := range g {
			teams[j] = e.TeamID
		}
		out[i] = GroupSummary{Name: groupLetter(i), TeamIDs: teams}
	}
	return out
}

// groupLetter maps 0..25 to A..Z, then AA, AB, ...
func groupLetter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return groupLetter(i/26-1) + groupLetter(i%26)
}
