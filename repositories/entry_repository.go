package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

var ErrEntryNotFound = errors.New("entry not found")

type EntryRepository interface {
	ListByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error)
	// ListConfirmedForUpdate locks every confirmed entry of the tournament,
	// ordered by (seed NULLS LAST, confirmed_at ASC). The lock order is part
	// of the fixture generation contract.
	ListConfirmedForUpdate(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error)
	GetByTeam(ctx context.Context, q SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*models.Entry, error)
	MarkDisqualified(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, at time.Time) error
}

type postgresEntryRepository struct{}

func NewPostgresEntryRepository() EntryRepository {
	return &postgresEntryRepository{}
}

const entryColumns = `
	id, tenant_id, tournament_id, team_id, seed, status,
	confirmed_at, disqualified_at, created_at`

func scanEntries(rows *sql.Rows) ([]*models.Entry, error) {
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e := &models.Entry{}
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.TournamentID,
			&e.TeamID,
			&e.Seed,
			&e.Status,
			&e.ConfirmedAt,
			&e.DisqualifiedAt,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresEntryRepository) ListByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM entries
		WHERE tenant_id = $1 AND tournament_id = $2
		ORDER BY seed ASC NULLS LAST, confirmed_at ASC`
	rows, err := q.QueryContext(ctx, query, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *postgresEntryRepository) ListConfirmedForUpdate(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM entries
		WHERE tenant_id = $1 AND tournament_id = $2 AND status = $3
		ORDER BY seed ASC NULLS LAST, confirmed_at ASC
		FOR UPDATE`
	rows, err := q.QueryContext(ctx, query, tenantID, tournamentID, models.EntryConfirmed)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *postgresEntryRepository) GetByTeam(ctx context.Context, q SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*models.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM entries
		WHERE tenant_id = $1 AND tournament_id = $2 AND team_id = $3`
	e := &models.Entry{}
	err := q.QueryRowContext(ctx, query, tenantID, tournamentID, teamID).Scan(
		&e.ID,
		&e.TenantID,
		&e.TournamentID,
		&e.TeamID,
		&e.Seed,
		&e.Status,
		&e.ConfirmedAt,
		&e.DisqualifiedAt,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEntryRepository) MarkDisqualified(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, at time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE entries SET status = $1, disqualified_at = $2 WHERE tenant_id = $3 AND id = $4`,
		models.EntryDisqualified, at, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEntryNotFound)
}
