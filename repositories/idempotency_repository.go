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

type IdempotencyRepository interface {
	// Get returns the stored record for (tenant, key), or nil when absent
	// or expired. A present record is authoritative.
	Get(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error)
	Save(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, key string, response json.RawMessage, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, q SQLExecutor, now time.Time) (int64, error)
}

type postgresIdempotencyRepository struct{}

func NewPostgresIdempotencyRepository() IdempotencyRepository {
	return &postgresIdempotencyRepository{}
}

func (r *postgresIdempotencyRepository) Get(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	rec := &models.IdempotencyRecord{}
	var response []byte
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, key, response, expires_at, created_at
		 FROM idempotency_keys
		 WHERE tenant_id = $1 AND key = $2 AND expires_at > NOW()`,
		tenantID, key).Scan(&rec.TenantID, &rec.Key, &response, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Response = response
	return rec, nil
}

func (r *postgresIdempotencyRepository) Save(ctx context.Context, q SQLExecutor, tenantID uuid.UUID, key string, response json.RawMessage, expiresAt time.Time) error {
	// First writer wins; replays keep returning the original response.
	_, err := q.ExecContext(ctx,
		`INSERT INTO idempotency_keys (tenant_id, key, response, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, key) DO NOTHING`,
		tenantID, key, []byte(response), expiresAt)
	return err
}

func (r *postgresIdempotencyRepository) DeleteExpired(ctx context.Context, q SQLExecutor, now time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
