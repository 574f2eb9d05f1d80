package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord pins the first response produced for a (tenant, key)
// pair. While present and unexpired it is authoritative: the stored response
// is returned verbatim for every replay.
type IdempotencyRecord struct {
	TenantID  uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Key       string          `json:"key" db:"key"`
	Response  json.RawMessage `json:"response" db:"response"`
	ExpiresAt time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
