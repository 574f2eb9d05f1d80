package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
	"github.com/padelops/tournament-engine/storage"
	"golang.org/x/sync/errgroup"
)

// TournamentService serves the tournament read model: the full fixture view,
// filtered match lists, group standings, and the poster upload.
type TournamentService struct {
	db          repositories.SQLExecutor
	tx          repositories.TxRunner
	tournaments repositories.TournamentRepository
	entries     repositories.EntryRepository
	matches     repositories.MatchRepository
	setResults  repositories.SetResultRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewTournamentService(
	db repositories.SQLExecutor,
	tx repositories.TxRunner,
	tournaments repositories.TournamentRepository,
	entries repositories.EntryRepository,
	matches repositories.MatchRepository,
	setResults repositories.SetResultRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		db:          db,
		tx:          tx,
		tournaments: tournaments,
		entries:     entries,
		matches:     matches,
		setResults:  setResults,
		uploader:    uploader,
		logger:      logger,
	}
}

// GetWithFixture returns the tournament with its entries and full fixture.
// The three reads run in parallel; set results are attached afterwards.
func (s *TournamentService) GetWithFixture(ctx context.Context, caller Caller, tournamentID uuid.UUID) (*models.Tournament, error) {
	var (
		tournament *models.Tournament
		entries    []*models.Entry
		matchList  []*models.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.tournaments.GetByID(gctx, s.db, caller.TenantID, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.entries.ListByTournament(gctx, s.db, caller.TenantID, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matchList, err = s.matches.ListByTournament(gctx, s.db, caller.TenantID, tournamentID, nil, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matchIDs := make([]uuid.UUID, len(matchList))
	for i, m := range matchList {
		matchIDs[i] = m.ID
	}
	setsByMatch, err := s.setResults.ListByMatches(ctx, s.db, caller.TenantID, matchIDs)
	if err != nil {
		return nil, err
	}

	tournament.Entries = make([]models.Entry, len(entries))
	for i, e := range entries {
		tournament.Entries[i] = *e
	}
	tournament.Matches = make([]models.Match, len(matchList))
	for i, m := range matchList {
		m.Sets = setsByMatch[m.ID]
		tournament.Matches[i] = *m
	}

	if tournament.PosterKey != nil && s.uploader != nil {
		if u := s.uploader.GetPublicURL(*tournament.PosterKey); u != "" {
			tournament.PosterURL = &u
		}
	}
	return tournament, nil
}

// ListMatches lists a tournament's matches with optional round and status
// filters.
func (s *TournamentService) ListMatches(ctx context.Context, caller Caller, tournamentID uuid.UUID, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matches.ListByTournament(ctx, s.db, caller.TenantID, tournamentID, round, status)
}

// Standing is one team's row in a group table.
type Standing struct {
	TeamID    uuid.UUID `json:"team_id"`
	Played    int       `json:"played"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	SetsWon   int       `json:"sets_won"`
	SetsLost  int       `json:"sets_lost"`
	GamesWon  int       `json:"games_won"`
	GamesLost int       `json:"games_lost"`
}

// GroupStandings is the computed table of one group, best team first.
type GroupStandings struct {
	Group     string     `json:"group"`
	Standings []Standing `json:"standings"`
}

// Standings computes group tables from finished and walkover group-stage
// matches: wins first, then set difference, then game difference.
func (s *TournamentService) Standings(ctx context.Context, caller Caller, tournamentID uuid.UUID) ([]GroupStandings, error) {
	matchList, err := s.matches.ListByTournament(ctx, s.db, caller.TenantID, tournamentID, nil, nil)
	if err != nil {
		return nil, err
	}

	groupMatches := make([]*models.Match, 0, len(matchList))
	matchIDs := make([]uuid.UUID, 0, len(matchList))
	for _, m := range matchList {
		if group := groupOf(m.BracketPosition); group != "" {
			groupMatches = append(groupMatches, m)
			matchIDs = append(matchIDs, m.ID)
		}
	}
	setsByMatch, err := s.setResults.ListByMatches(ctx, s.db, caller.TenantID, matchIDs)
	if err != nil {
		return nil, err
	}

	tables := groupTables(groupMatches, setsByMatch)

	groups := make([]string, 0, len(tables))
	for group := range tables {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	out := make([]GroupStandings, 0, len(groups))
	for _, group := range groups {
		out = append(out, GroupStandings{Group: group, Standings: tables[group]})
	}
	return out, nil
}

// groupTables folds finished and walkover group matches into per-group
// standings rows, best team first: wins, then set difference, then game
// difference. Shared by the standings endpoint and the playoff promotion.
func groupTables(groupMatches []*models.Match, setsByMatch map[uuid.UUID][]models.SetResult) map[string][]Standing {
	tables := make(map[string]map[uuid.UUID]*Standing)
	ensure := func(group string, teamID uuid.UUID) *Standing {
		if tables[group] == nil {
			tables[group] = make(map[uuid.UUID]*Standing)
		}
		if tables[group][teamID] == nil {
			tables[group][teamID] = &Standing{TeamID: teamID}
		}
		return tables[group][teamID]
	}

	for _, m := range groupMatches {
		group := groupOf(m.BracketPosition)
		if group == "" {
			continue
		}
		if m.Team1ID != nil {
			ensure(group, *m.Team1ID)
		}
		if m.Team2ID != nil {
			ensure(group, *m.Team2ID)
		}

		if m.Status != models.MatchFinished && m.Status != models.MatchWalkover {
			continue
		}
		if m.Team1ID == nil || m.Team2ID == nil || m.WinnerID == nil || m.LoserID == nil {
			continue
		}

		winner := ensure(group, *m.WinnerID)
		loser := ensure(group, *m.LoserID)
		winner.Played++
		winner.Wins++
		loser.Played++
		loser.Losses++

		for _, set := range setsByMatch[m.ID] {
			team1 := ensure(group, *m.Team1ID)
			team2 := ensure(group, *m.Team2ID)
			team1.GamesWon += set.Team1Games
			team1.GamesLost += set.Team2Games
			team2.GamesWon += set.Team2Games
			team2.GamesLost += set.Team1Games
			if set.Team1Games > set.Team2Games {
				team1.SetsWon++
				team2.SetsLost++
			} else {
				team2.SetsWon++
				team1.SetsLost++
			}
		}
	}

	out := make(map[string][]Standing, len(tables))
	for group, table := range tables {
		rows := make([]Standing, 0, len(table))
		for _, row := range table {
			rows = append(rows, *row)
		}
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if a.Wins != b.Wins {
				return a.Wins > b.Wins
			}
			if d1, d2 := a.SetsWon-a.SetsLost, b.SetsWon-b.SetsLost; d1 != d2 {
				return d1 > d2
			}
			if d1, d2 := a.GamesWon-a.GamesLost, b.GamesWon-b.GamesLost; d1 != d2 {
				return d1 > d2
			}
			return a.TeamID.String() < b.TeamID.String()
		})
		out[group] = rows
	}
	return out
}

// groupOf extracts the group letter from a bracket position, or "" for
// playoff positions.
func groupOf(bracketPosition string) string {
	if !strings.HasPrefix(bracketPosition, "G") {
		return ""
	}
	rest := strings.TrimPrefix(bracketPosition, "G")
	dash := strings.Index(rest, "-")
	if dash <= 0 {
		return ""
	}
	return rest[:dash]
}

// UploadPoster stores a tournament poster and records its key. Admin only.
// A previous poster is deleted best-effort.
func (s *TournamentService) UploadPoster(ctx context.Context, caller Caller, tournamentID uuid.UUID, contentType string, file io.Reader) (string, error) {
	if !caller.IsAdmin() {
		return "", ErrForbidden
	}
	if s.uploader == nil {
		return "", fmt.Errorf("poster storage is not configured")
	}

	ext := "bin"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	default:
		return "", fmt.Errorf("%w: unsupported poster content type %q", ErrValidation, contentType)
	}

	var previousKey *string
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, q, caller.TenantID, tournamentID)
		if err != nil {
			return err
		}
		previousKey = t.PosterKey
		return nil
	})
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("tournaments/%s/poster-%d.%s", tournamentID, time.Now().UTC().Unix(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload poster: %w", err)
	}

	err = s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		return s.tournaments.UpdatePosterKey(ctx, q, caller.TenantID, tournamentID, &result.Key)
	})
	if err != nil {
		return "", err
	}

	if previousKey != nil && *previousKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *previousKey); delErr != nil {
			s.logger.Warn("failed to delete previous poster",
				slog.String("key", *previousKey), slog.Any("error", delErr))
		}
	}
	return result.Location, nil
}
