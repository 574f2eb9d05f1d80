package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

type TournamentRepository interface {
	GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error)
	GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, status models.TournamentStatus) error
	StampFixtureGenerated(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, at time.Time, by uuid.UUID) error
	UpdateSettings(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error
	UpdatePosterKey(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, key *string) error
}

type postgresTournamentRepository struct{}

func NewPostgresTournamentRepository() TournamentRepository {
	return &postgresTournamentRepository{}
}

const tournamentColumns = `
	id, tenant_id, name, status, sets_to_win, games_per_set,
	min_teams, max_teams, start_date, settings, poster_key,
	fixture_generated_at, fixture_generated_by, created_at`

func scanTournament(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	var settings []byte
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.Name,
		&t.Status,
		&t.SetsToWin,
		&t.GamesPerSet,
		&t.MinTeams,
		&t.MaxTeams,
		&t.StartDate,
		&settings,
		&t.PosterKey,
		&t.FixtureGeneratedAt,
		&t.FixtureGeneratedBy,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	t.Settings = settings
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE tenant_id = $1 AND id = $2`
	return scanTournament(q.QueryRowContext(ctx, query, tenantID, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return scanTournament(q.QueryRowContext(ctx, query, tenantID, id))
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, status models.TournamentStatus) error {
	result, err := q.ExecContext(ctx,
		`UPDATE tournaments SET status = $1 WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) StampFixtureGenerated(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, at time.Time, by uuid.UUID) error {
	result, err := q.ExecContext(ctx,
		`UPDATE tournaments
		 SET status = $1, fixture_generated_at = $2, fixture_generated_by = $3
		 WHERE tenant_id = $4 AND id = $5`,
		models.TournamentInProgress, at, by, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateSettings(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error {
	result, err := q.ExecContext(ctx,
		`UPDATE tournaments SET settings = $1 WHERE tenant_id = $2 AND id = $3`,
		[]byte(settings), tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdatePosterKey(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, key *string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE tournaments SET poster_key = $1 WHERE tenant_id = $2 AND id = $3`,
		key, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
