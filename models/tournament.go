package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentDraft              TournamentStatus = "draft"
	TournamentRegistrationOpen   TournamentStatus = "registration_open"
	TournamentRegistrationClosed TournamentStatus = "registration_closed"
	TournamentInProgress         TournamentStatus = "in_progress"
	TournamentFinished           TournamentStatus = "finished"
	TournamentCancelled          TournamentStatus = "cancelled"
)

// Tournament is the root aggregate of the engine. Every row is scoped by
// TenantID; the scoring rules (SetsToWin, GamesPerSet) are fixed at creation
// and consulted by the score validator on every report.
type Tournament struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	TenantID    uuid.UUID        `json:"tenant_id" db:"tenant_id"`
	Name        string           `json:"name" db:"name"`
	Status      TournamentStatus `json:"status" db:"status"`
	SetsToWin   int              `json:"sets_to_win" db:"sets_to_win"`
	GamesPerSet int              `json:"games_per_set" db:"games_per_set"`
	MinTeams    int              `json:"min_teams" db:"min_teams"`
	MaxTeams    int              `json:"max_teams" db:"max_teams"`
	StartDate   time.Time        `json:"start_date" db:"start_date"`
	Settings    json.RawMessage  `json:"settings,omitempty" db:"settings"`
	PosterKey   *string          `json:"-" db:"poster_key"`
	PosterURL   *string          `json:"poster_url,omitempty" db:"-"`

	FixtureGeneratedAt *time.Time `json:"fixture_generated_at,omitempty" db:"fixture_generated_at"`
	FixtureGeneratedBy *uuid.UUID `json:"fixture_generated_by,omitempty" db:"fixture_generated_by"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`

	// Loaded on demand, not mapped directly.
	Entries []Entry `json:"entries,omitempty" db:"-"`
	Matches []Match `json:"matches,omitempty" db:"-"`
}
