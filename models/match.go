package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchCalled     MatchStatus = "called"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
	MatchWalkover   MatchStatus = "walkover"
	MatchCancelled  MatchStatus = "cancelled"
	MatchPostponed  MatchStatus = "postponed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchCalled, MatchInProgress, MatchFinished, MatchWalkover, MatchCancelled, MatchPostponed:
		return true
	}
	return false
}

type PendingResultStatus string

const (
	PendingConfirmation PendingResultStatus = "pending_confirmation"
	PendingDisputed     PendingResultStatus = "disputed"
	PendingConfirmed    PendingResultStatus = "confirmed"
)

// SetScore is one set of a padel match as reported by a player. Tiebreak
// points are present only for a games_per_set+1 : games_per_set set.
type SetScore struct {
	SetNumber     int  `json:"set_number"`
	Team1Games    int  `json:"team1_games"`
	Team2Games    int  `json:"team2_games"`
	TiebreakTeam1 *int `json:"tiebreak_team1,omitempty"`
	TiebreakTeam2 *int `json:"tiebreak_team2,omitempty"`
}

// SetResult is a persisted SetScore owned by its match (deleted with it).
type SetResult struct {
	ID       uuid.UUID `json:"id" db:"id"`
	TenantID uuid.UUID `json:"tenant_id" db:"tenant_id"`
	MatchID  uuid.UUID `json:"match_id" db:"match_id"`
	SetScore
}

// PendingResult is a reported-but-not-yet-confirmed outcome embedded in the
// match row. It exists only while the match is in_progress without a winner.
type PendingResult struct {
	ReportedBy     uuid.UUID           `json:"reported_by"`
	ReporterTeamID uuid.UUID           `json:"reporter_team_id"`
	ReportedAt     time.Time           `json:"reported_at"`
	WinnerID       uuid.UUID           `json:"winner_id"`
	LoserID        uuid.UUID           `json:"loser_id"`
	Sets           []SetScore          `json:"sets"`
	Status         PendingResultStatus `json:"status"`
	DisputeReason  *string             `json:"dispute_reason,omitempty"`
	ConfirmedBy    *uuid.UUID          `json:"confirmed_by,omitempty"`
}

// Match is a single fixture slot. Group-stage positions read
// G<letter>-R<round>-M<i>v<j>, playoff positions PO-R<round>-M<n>.
// Team references stay nil in playoff rounds until the feeders finish.
type Match struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	TenantID        uuid.UUID   `json:"tenant_id" db:"tenant_id"`
	TournamentID    uuid.UUID   `json:"tournament_id" db:"tournament_id"`
	RoundNumber     int         `json:"round_number" db:"round_number"`
	RoundName       string      `json:"round_name" db:"round_name"`
	MatchNumber     int         `json:"match_number" db:"match_number"`
	BracketPosition string      `json:"bracket_position" db:"bracket_position"`
	Team1ID         *uuid.UUID  `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID         *uuid.UUID  `json:"team2_id,omitempty" db:"team2_id"`
	ScheduledAt     *time.Time  `json:"scheduled_at,omitempty" db:"scheduled_at"`
	Status          MatchStatus `json:"status" db:"status"`
	WinnerID        *uuid.UUID  `json:"winner_id,omitempty" db:"winner_id"`
	LoserID         *uuid.UUID  `json:"loser_id,omitempty" db:"loser_id"`
	NextMatchID     *uuid.UUID  `json:"next_match_id,omitempty" db:"next_match_id"`
	DurationMinutes *int        `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Notes           *string     `json:"notes,omitempty" db:"notes"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty" db:"finished_at"`

	PendingResult *PendingResult  `json:"pending_result,omitempty" db:"-"`
	Settings      json.RawMessage `json:"settings,omitempty" db:"settings"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`

	Sets []SetResult `json:"sets,omitempty" db:"-"`
}

// IsTerminal reports whether no further result can be reported on the match.
func (m *Match) IsTerminal() bool {
	return m.Status == MatchFinished || m.Status == MatchWalkover || m.Status == MatchCancelled
}

// OpponentOf returns the other team of the match, if both slots are resolved.
func (m *Match) OpponentOf(teamID uuid.UUID) *uuid.UUID {
	if m.Team1ID != nil && *m.Team1ID == teamID {
		return m.Team2ID
	}
	if m.Team2ID != nil && *m.Team2ID == teamID {
		return m.Team1ID
	}
	return nil
}

// HasTeam reports whether teamID occupies one of the two slots.
func (m *Match) HasTeam(teamID uuid.UUID) bool {
	return (m.Team1ID != nil && *m.Team1ID == teamID) || (m.Team2ID != nil && *m.Team2ID == teamID)
}
