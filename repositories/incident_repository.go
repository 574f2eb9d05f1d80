package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

var ErrIncidentNotFound = errors.New("incident not found")

type IncidentRepository interface {
	Create(ctx context.Context, q SQLExecutor, incident *models.Incident) error
	GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error)
	GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error)
	ListByTenant(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, onlyOpen bool) ([]*models.Incident, error)
	MarkResolved(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, by uuid.UUID, at time.Time, notes string) error
}

type postgresIncidentRepository struct{}

func NewPostgresIncidentRepository() IncidentRepository {
	return &postgresIncidentRepository{}
}

const incidentColumns = `
	id, tenant_id, type, severity, title, description,
	tournament_id, match_id, affected_team_id, reported_by,
	resolved_by, resolved_at, resolution_notes, details, created_at`

func scanIncident(scan func(dest ...interface{}) error) (*models.Incident, error) {
	i := &models.Incident{}
	var details []byte
	err := scan(
		&i.ID,
		&i.TenantID,
		&i.Type,
		&i.Severity,
		&i.Title,
		&i.Description,
		&i.TournamentID,
		&i.MatchID,
		&i.AffectedTeamID,
		&i.ReportedBy,
		&i.ResolvedBy,
		&i.ResolvedAt,
		&i.ResolutionNotes,
		&details,
		&i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Details = details
	return i, nil
}

func (r *postgresIncidentRepository) Create(ctx context.Context, q SQLExecutor, incident *models.Incident) error {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	details := []byte(incident.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}
	return q.QueryRowContext(ctx,
		`INSERT INTO incidents
			(id, tenant_id, type, severity, title, description,
			 tournament_id, match_id, affected_team_id, reported_by, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		incident.ID, incident.TenantID, incident.Type, incident.Severity,
		incident.Title, incident.Description, incident.TournamentID,
		incident.MatchID, incident.AffectedTeamID, incident.ReportedBy, details,
	).Scan(&incident.CreatedAt)
}

func (r *postgresIncidentRepository) getByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, forUpdate bool) (*models.Incident, error) {
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	incident, err := scanIncident(q.QueryRowContext(ctx, query, tenantID, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}
	return incident, nil
}

func (r *postgresIncidentRepository) GetByID(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error) {
	return r.getByID(ctx, q, tenantID, id, false)
}

func (r *postgresIncidentRepository) GetByIDForUpdate(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error) {
	return r.getByID(ctx, q, tenantID, id, true)
}

func (r *postgresIncidentRepository) ListByTenant(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, onlyOpen bool) ([]*models.Incident, error) {
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE tenant_id = $1`
	if onlyOpen {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

func (r *postgresIncidentRepository) MarkResolved(ctx context.Context, q SQLExecutor, tenantID, id uuid.UUID, by uuid.UUID, at time.Time, notes string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE incidents
		 SET resolved_by = $1, resolved_at = $2, resolution_notes = $3
		 WHERE tenant_id = $4 AND id = $5 AND resolved_at IS NULL`,
		by, at, notes, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrIncidentNotFound)
}
