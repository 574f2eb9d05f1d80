package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type IncidentType string

const (
	IncidentInjury     IncidentType = "injury"
	IncidentNoShow     IncidentType = "no_show"
	IncidentDispute    IncidentType = "dispute"
	IncidentWeather    IncidentType = "weather"
	IncidentEquipment  IncidentType = "equipment"
	IncidentMisconduct IncidentType = "misconduct"
	IncidentOther      IncidentType = "other"
)

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentInjury, IncidentNoShow, IncidentDispute, IncidentWeather,
		IncidentEquipment, IncidentMisconduct, IncidentOther:
		return true
	}
	return false
}

type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

func (s IncidentSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Incident is an operational event awaiting admin adjudication. It is
// resolved iff ResolvedAt and ResolvedBy are both set, and immutable after.
type Incident struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	TenantID       uuid.UUID        `json:"tenant_id" db:"tenant_id"`
	Type           IncidentType     `json:"type" db:"type"`
	Severity       IncidentSeverity `json:"severity" db:"severity"`
	Title          string           `json:"title" db:"title"`
	Description    string           `json:"description" db:"description"`
	TournamentID   *uuid.UUID       `json:"tournament_id,omitempty" db:"tournament_id"`
	MatchID        *uuid.UUID       `json:"match_id,omitempty" db:"match_id"`
	AffectedTeamID *uuid.UUID       `json:"affected_team_id,omitempty" db:"affected_team_id"`
	ReportedBy     uuid.UUID        `json:"reported_by" db:"reported_by"`

	ResolvedBy      *uuid.UUID      `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes *string         `json:"resolution_notes,omitempty" db:"resolution_notes"`
	Details         json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

func (i *Incident) Resolved() bool {
	return i.ResolvedAt != nil && i.ResolvedBy != nil
}
