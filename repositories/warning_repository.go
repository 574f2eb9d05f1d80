package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

type WarningRepository interface {
	Create(ctx context.Context, q SQLExecutor, warning *models.Warning) error
	ListByTeam(ctx context.Context, q SQLExecutor, tenantID, teamID uuid.UUID) ([]models.Warning, error)
}

type postgresWarningRepository struct{}

func NewPostgresWarningRepository() WarningRepository {
	return &postgresWarningRepository{}
}

func (r *postgresWarningRepository) Create(ctx context.Context, q SQLExecutor, warning *models.Warning) error {
	if warning.ID == uuid.Nil {
		warning.ID = uuid.New()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO team_warnings
			(id, tenant_id, team_id, incident_id, reason, issued_by, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		warning.ID, warning.TenantID, warning.TeamID, warning.IncidentID,
		warning.Reason, warning.IssuedBy, warning.IssuedAt)
	return err
}

func (r *postgresWarningRepository) ListByTeam(ctx context.Context, q SQLExecutor, tenantID, teamID uuid.UUID) ([]models.Warning, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, tenant_id, team_id, incident_id, reason, issued_by, issued_at
		 FROM team_warnings
		 WHERE tenant_id = $1 AND team_id = $2
		 ORDER BY issued_at DESC`,
		tenantID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	warnings := make([]models.Warning, 0)
	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.ID, &w.TenantID, &w.TeamID, &w.IncidentID, &w.Reason, &w.IssuedBy, &w.IssuedAt); err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}
