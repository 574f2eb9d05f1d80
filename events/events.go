package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification event types understood by downstream delivery.
const (
	TypeResultReported            = "result_reported"
	TypeResultPendingConfirmation = "result_pending_confirmation"
	TypeResultConfirmed           = "result_confirmed"
	TypeResultDisputed            = "result_disputed"
	TypeIncidentResolved          = "incident_resolved"
)

// Notification is one record appended to the notification queue. Recipients
// are tenant user ids; delivery happens outside the engine.
type Notification struct {
	TenantID   uuid.UUID              `json:"tenant"`
	Type       string                 `json:"type"`
	Recipients []uuid.UUID            `json:"recipients"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// AuditRecord is one record appended to the audit sink. The sink schema is
// opaque downstream; the engine only guarantees tenant and request ids.
type AuditRecord struct {
	TenantID  uuid.UUID              `json:"tenant"`
	RequestID string                 `json:"request_id"`
	ActorID   uuid.UUID              `json:"actor_id"`
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  uuid.UUID              `json:"entity_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	At        time.Time              `json:"at"`
}

// Publisher appends to the notification queue and audit sink. Both are
// best-effort and called post-commit only; implementations must never be
// consulted inside a transaction.
type Publisher interface {
	Notify(ctx context.Context, n Notification) error
	Audit(ctx context.Context, a AuditRecord) error
}

// DedupeRecipients drops duplicate and zero ids, preserving first-seen order.
func DedupeRecipients(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
