package models

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	EntryPendingPayment EntryStatus = "pending_payment"
	EntryConfirmed      EntryStatus = "confirmed"
	EntryWithdrawn      EntryStatus = "withdrawn"
	EntryDisqualified   EntryStatus = "disqualified"
)

// Entry is one team's enrolment in one tournament. Seed is optional;
// NULL seeds sort after every seeded entry.
type Entry struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	TenantID     uuid.UUID   `json:"tenant_id" db:"tenant_id"`
	TournamentID uuid.UUID   `json:"tournament_id" db:"tournament_id"`
	TeamID       uuid.UUID   `json:"team_id" db:"team_id"`
	Seed         *int        `json:"seed,omitempty" db:"seed"`
	Status       EntryStatus `json:"status" db:"status"`
	ConfirmedAt  *time.Time  `json:"confirmed_at,omitempty" db:"confirmed_at"`

	DisqualifiedAt *time.Time `json:"disqualified_at,omitempty" db:"disqualified_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Warning is an administrative sanction appended to a team's record when an
// incident is resolved with the warn action.
type Warning struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	TeamID     uuid.UUID `json:"team_id" db:"team_id"`
	IncidentID uuid.UUID `json:"incident_id" db:"incident_id"`
	Reason     string    `json:"reason" db:"reason"`
	IssuedBy   uuid.UUID `json:"issued_by" db:"issued_by"`
	IssuedAt   time.Time `json:"issued_at" db:"issued_at"`
}
