package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/padelops/tournament-engine/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match references an unknown tournament")
	ErrMatchPositionConflict  = errors.New("match position already taken in this tournament")
)

// MatchResultUpdate is the column set touched when a match outcome changes.
// A nil Pending clears the embedded pending result.
type MatchResultUpdate struct {
	Status          models.MatchStatus
	WinnerID        *uuid.UUID
	LoserID         *uuid.UUID
	FinishedAt      *time.Time
	Pending         *models.PendingResult
	DurationMinutes *int
	Notes           *string
}

type MatchRepository interface {
	CreateBatch(ctx context.Context, q SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error)
	ListByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID, round *int, status *models.MatchStatus) ([]*models.Match, error)
	DeleteByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) (int64, error)
	UpdateResult(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, upd MatchResultUpdate) error
	UpdateSchedule(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, scheduledAt *time.Time, status models.MatchStatus) error
	UpdateSlots(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, team1ID, team2ID *uuid.UUID) error
	UpdateSettings(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error
	// ListExpiredPending returns matches across all tenants whose pending
	// result has been awaiting confirmation since before the cutoff.
	ListExpiredPending(ctx context.Context, q SQLExecutor, cutoff time.Time) ([]*models.Match, error)
	// LastFinishedEnd returns the latest finish timestamp of the team's
	// completed matches in the tournament, or nil if it has none.
	LastFinishedEnd(ctx context.Context, q SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*time.Time, error)
}

type postgresMatchRepository struct{}

func NewPostgresMatchRepository() MatchRepository {
	return &postgresMatchRepository{}
}

const matchColumns = `
	id, tenant_id, tournament_id, round_number, round_name, match_number,
	bracket_position, team1_id, team2_id, scheduled_at, status,
	winner_id, loser_id, next_match_id, duration_minutes, notes,
	finished_at, pending_result, settings, created_at`

func marshalPending(p *models.PendingResult) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending result: %w", err)
	}
	return raw, nil
}

func scanMatchRow(scan func(dest ...interface{}) error) (*models.Match, error) {
	m := &models.Match{}
	var pending, settings []byte
	err := scan(
		&m.ID,
		&m.TenantID,
		&m.TournamentID,
		&m.RoundNumber,
		&m.RoundName,
		&m.MatchNumber,
		&m.BracketPosition,
		&m.Team1ID,
		&m.Team2ID,
		&m.ScheduledAt,
		&m.Status,
		&m.WinnerID,
		&m.LoserID,
		&m.NextMatchID,
		&m.DurationMinutes,
		&m.Notes,
		&m.FinishedAt,
		&pending,
		&settings,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		m.PendingResult = &models.PendingResult{}
		if err := json.Unmarshal(pending, m.PendingResult); err != nil {
			return nil, fmt.Errorf("failed to decode pending result for match %s: %w", m.ID, err)
		}
	}
	m.Settings = settings
	return m, nil
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, q SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	const cols = 14
	var query strings.Builder
	query.WriteString(`
		INSERT INTO matches
			(id, tenant_id, tournament_id, round_number, round_name, match_number,
			 bracket_position, team1_id, team2_id, scheduled_at, status,
			 next_match_id, settings, created_at)
		VALUES `)

	args := make([]interface{}, 0, len(matches)*cols)
	now := time.Now().UTC()
	for i, m := range matches {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("(")
		for j := 1; j <= cols; j++ {
			if j > 1 {
				query.WriteString(", ")
			}
			fmt.Fprintf(&query, "$%d", i*cols+j)
		}
		query.WriteString(")")

		settings := []byte(m.Settings)
		if len(settings) == 0 {
			settings = []byte("{}")
		}
		m.CreatedAt = now
		args = append(args,
			m.ID, m.TenantID, m.TournamentID, m.RoundNumber, m.RoundName, m.MatchNumber,
			m.BracketPosition, m.Team1ID, m.Team2ID, m.ScheduledAt, m.Status,
			m.NextMatchID, settings, m.CreatedAt,
		)
	}

	_, err := q.ExecContext(ctx, query.String(), args...)
	return handleMatchError(err)
}

func (r *postgresMatchRepository) getByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, forUpdate bool) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMatchRow(q.QueryRowContext(ctx, query, tenantID, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error) {
	return r.getByID(ctx, q, tenantID, id, false)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error) {
	return r.getByID(ctx, q, tenantID, id, true)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	var query strings.Builder
	query.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tenant_id = $1 AND tournament_id = $2`)

	args := []interface{}{tenantID, tournamentID}
	if round != nil {
		args = append(args, *round)
		fmt.Fprintf(&query, " AND round_number = $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	query.WriteString(" ORDER BY round_number ASC, match_number ASC")

	rows, err := q.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatchRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) DeleteByTournament(ctx context.Context, q SQLExecutor, tenantID, tournamentID uuid.UUID) (int64, error) {
	// Set results cascade via their foreign key.
	result, err := q.ExecContext(ctx,
		`DELETE FROM matches WHERE tenant_id = $1 AND tournament_id = $2`,
		tenantID, tournamentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, upd MatchResultUpdate) error {
	pending, err := marshalPending(upd.Pending)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE matches
		 SET status = $1, winner_id = $2, loser_id = $3, finished_at = $4,
		     pending_result = $5,
		     duration_minutes = COALESCE($6, duration_minutes),
		     notes = COALESCE($7, notes)
		 WHERE tenant_id = $8 AND id = $9`,
		upd.Status, upd.WinnerID, upd.LoserID, upd.FinishedAt,
		pending, upd.DurationMinutes, upd.Notes,
		tenantID, id)
	if err != nil {
		return handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, scheduledAt *time.Time, status models.MatchStatus) error {
	result, err := q.ExecContext(ctx,
		`UPDATE matches SET scheduled_at = $1, status = $2 WHERE tenant_id = $3 AND id = $4`,
		scheduledAt, status, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSlots(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, team1ID, team2ID *uuid.UUID) error {
	result, err := q.ExecContext(ctx,
		`UPDATE matches SET team1_id = $1, team2_id = $2 WHERE tenant_id = $3 AND id = $4`,
		team1ID, team2ID, tenantID, id)
	if err != nil {
		return handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSettings(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error {
	result, err := q.ExecContext(ctx,
		`UPDATE matches SET settings = $1 WHERE tenant_id = $2 AND id = $3`,
		[]byte(settings), tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListExpiredPending(ctx context.Context, q SQLExecutor, cutoff time.Time) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE status = $1
		  AND pending_result->>'status' = $2
		  AND (pending_result->>'reported_at')::timestamptz < $3
		ORDER BY (pending_result->>'reported_at')::timestamptz ASC`

	rows, err := q.QueryContext(ctx, query, models.MatchInProgress, models.PendingConfirmation, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatchRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) LastFinishedEnd(ctx context.Context, q SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := q.QueryRowContext(ctx,
		`SELECT MAX(finished_at)
		 FROM matches
		 WHERE tenant_id = $1 AND tournament_id = $2
		   AND status IN ($3, $4)
		   AND (team1_id = $5 OR team2_id = $5)`,
		tenantID, tournamentID, models.MatchFinished, models.MatchWalkover, teamID).Scan(&last)
	if err != nil {
		return nil, err
	}
	return last, nil
}

func handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "matches_tournament_id_fkey" {
				return ErrMatchTournamentInvalid
			}
		case "23505": // unique_violation
			if pqErr.Constraint == "matches_tournament_round_number_key" {
				return ErrMatchPositionConflict
			}
		}
	}
	return err
}
