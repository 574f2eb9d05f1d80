package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// MemberRepository answers membership questions resolved by the Gateway's
// identity tables: team rosters and tenant roles. The engine only reads.
type MemberRepository interface {
	IsTeamMember(ctx context.Context, q SQLExecutor, tenantID, teamID, tenantUserID uuid.UUID) (bool, error)
	ListTeamMemberIDs(ctx context.Context, q SQLExecutor, tenantID, teamID uuid.UUID) ([]uuid.UUID, error)
	ListAdminIDs(ctx context.Context, q SQLExecutor, tenantID uuid.UUID) ([]uuid.UUID, error)
}

type postgresMemberRepository struct{}

func NewPostgresMemberRepository() MemberRepository {
	return &postgresMemberRepository{}
}

func (r *postgresMemberRepository) IsTeamMember(ctx context.Context, q SQLExecutor, tenantID, teamID, tenantUserID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM team_members
			WHERE tenant_id = $1 AND team_id = $2 AND tenant_user_id = $3 AND left_at IS NULL
		)`,
		tenantID, teamID, tenantUserID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanIDs(rows *sql.Rows, err error) ([]uuid.UUID, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresMemberRepository) ListTeamMemberIDs(ctx context.Context, q SQLExecutor, tenantID, teamID uuid.UUID) ([]uuid.UUID, error) {
	return scanIDs(q.QueryContext(ctx,
		`SELECT tenant_user_id FROM team_members
		 WHERE tenant_id = $1 AND team_id = $2 AND left_at IS NULL`,
		tenantID, teamID))
}

func (r *postgresMemberRepository) ListAdminIDs(ctx context.Context, q SQLExecutor, tenantID uuid.UUID) ([]uuid.UUID, error) {
	return scanIDs(q.QueryContext(ctx,
		`SELECT id FROM tenant_users
		 WHERE tenant_id = $1 AND role IN ('admin', 'owner') AND deleted_at IS NULL`,
		tenantID))
}
