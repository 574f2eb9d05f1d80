package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/events"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
)

type ResolutionAction string

const (
	ActionDismiss        ResolutionAction = "dismiss"
	ActionWarn           ResolutionAction = "warn"
	ActionDisqualify     ResolutionAction = "disqualify"
	ActionReschedule     ResolutionAction = "reschedule"
	ActionOverrideResult ResolutionAction = "override_result"
)

func (a ResolutionAction) Valid() bool {
	switch a {
	case ActionDismiss, ActionWarn, ActionDisqualify, ActionReschedule, ActionOverrideResult:
		return true
	}
	return false
}

// Resolution is the admin's decision on an incident: the action plus the
// arguments that action requires.
type Resolution struct {
	Action           ResolutionAction `json:"action"`
	Notes            string           `json:"resolution_notes"`
	OverrideWinnerID *uuid.UUID       `json:"override_winner_id,omitempty"`
	RescheduleTo     *time.Time       `json:"reschedule_to,omitempty"`
}

const (
	minResolutionNotes = 10
	maxResolutionNotes = 1000
)

func (r Resolution) validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidResolution, r.Action)
	}
	notes := strings.TrimSpace(r.Notes)
	if len(notes) < minResolutionNotes || len(notes) > maxResolutionNotes {
		return fmt.Errorf("%w: resolution notes must be %d to %d characters", ErrInvalidResolution, minResolutionNotes, maxResolutionNotes)
	}
	if r.Action == ActionOverrideResult && r.OverrideWinnerID == nil {
		return fmt.Errorf("%w: override_result requires override_winner_id", ErrInvalidResolution)
	}
	return nil
}

// ResolutionSummary reports what a resolution did.
type ResolutionSummary struct {
	IncidentID        uuid.UUID        `json:"incident_id"`
	Status            string           `json:"status"`
	Action            ResolutionAction `json:"action"`
	ActionResult      string           `json:"action_result"`
	ResolvedAt        time.Time        `json:"resolved_at"`
	ResolvedBy        uuid.UUID        `json:"resolved_by"`
	NotificationsSent int              `json:"notifications_sent"`
}

// IncidentService takes incident reports and executes admin resolutions with
// their cascading effects on matches, entries, and schedules.
type IncidentService struct {
	tx          repositories.TxRunner
	incidents   repositories.IncidentRepository
	matches     repositories.MatchRepository
	entries     repositories.EntryRepository
	warnings    repositories.WarningRepository
	members     repositories.MemberRepository
	advancer    *BracketAdvancer
	publisher   events.Publisher
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewIncidentService(
	tx repositories.TxRunner,
	incidents repositories.IncidentRepository,
	matches repositories.MatchRepository,
	entries repositories.EntryRepository,
	warnings repositories.WarningRepository,
	members repositories.MemberRepository,
	advancer *BracketAdvancer,
	publisher events.Publisher,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *IncidentService {
	return &IncidentService{
		tx:          tx,
		incidents:   incidents,
		matches:     matches,
		entries:     entries,
		warnings:    warnings,
		members:     members,
		advancer:    advancer,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

type ReportIncidentInput struct {
	Type           models.IncidentType     `json:"type"`
	Severity       models.IncidentSeverity `json:"severity"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	TournamentID   *uuid.UUID              `json:"tournament_id,omitempty"`
	MatchID        *uuid.UUID              `json:"match_id,omitempty"`
	AffectedTeamID *uuid.UUID              `json:"affected_team_id,omitempty"`
	Details        json.RawMessage         `json:"details,omitempty"`
}

// ReportIncident records an operational incident for later adjudication.
func (s *IncidentService) ReportIncident(ctx context.Context, caller Caller, in ReportIncidentInput) (*models.Incident, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown incident type %q", ErrValidation, in.Type)
	}
	if in.Severity == "" {
		in.Severity = models.SeverityLow
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 200 {
		return nil, fmt.Errorf("%w: title must be 1 to 200 characters", ErrValidation)
	}
	if len(in.Description) > 2000 {
		return nil, fmt.Errorf("%w: description exceeds 2000 characters", ErrValidation)
	}

	incident := &models.Incident{
		TenantID:       caller.TenantID,
		Type:           in.Type,
		Severity:       in.Severity,
		Title:          title,
		Description:    in.Description,
		TournamentID:   in.TournamentID,
		MatchID:        in.MatchID,
		AffectedTeamID: in.AffectedTeamID,
		ReportedBy:     caller.TenantUserID,
		Details:        in.Details,
	}
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		return s.incidents.Create(ctx, q, incident)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident reported",
		slog.String("incident_id", incident.ID.String()),
		slog.String("type", string(incident.Type)),
		slog.String("request_id", caller.RequestID))
	return incident, nil
}

// ListIncidents returns the tenant's incidents, optionally open ones only.
// Admin only.
func (s *IncidentService) ListIncidents(ctx context.Context, caller Caller, onlyOpen bool) ([]*models.Incident, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	var incidents []*models.Incident
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		var listErr error
		incidents, listErr = s.incidents.ListByTenant(ctx, q, caller.TenantID, onlyOpen)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// ResolveIncident applies one of the five resolution actions. Resolving an
// already-resolved incident is a no-op that reports the original resolution.
func (s *IncidentService) ResolveIncident(ctx context.Context, caller Caller, incidentID uuid.UUID, res Resolution) (*ResolutionSummary, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := res.validate(); err != nil {
		return nil, err
	}

	var (
		summary      *ResolutionSummary
		notification *events.Notification
		touchedMatch *uuid.UUID
		tournamentID *uuid.UUID
	)

	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		incident, err := s.incidents.GetByIDForUpdate(ctx, q, caller.TenantID, incidentID)
		if err != nil {
			return err
		}
		if incident.Resolved() {
			summary = &ResolutionSummary{
				IncidentID: incident.ID,
				Status:     "already_resolved",
				Action:     res.Action,
				ResolvedAt: *incident.ResolvedAt,
				ResolvedBy: *incident.ResolvedBy,
			}
			return nil
		}

		now := s.now().UTC()
		actionResult, matchID, err := s.applyAction(ctx, q, caller, incident, res, now)
		if err != nil {
			return err
		}
		touchedMatch = matchID
		tournamentID = incident.TournamentID

		notes := fmt.Sprintf("[%s] %s", strings.ToUpper(string(res.Action)), strings.TrimSpace(res.Notes))
		if err := s.incidents.MarkResolved(ctx, q, caller.TenantID, incident.ID, caller.TenantUserID, now, notes); err != nil {
			return err
		}

		recipients, err := s.resolutionRecipients(ctx, q, caller.TenantID, incident)
		if err != nil {
			return err
		}
		notification = &events.Notification{
			TenantID:   caller.TenantID,
			Type:       events.TypeIncidentResolved,
			Recipients: recipients,
			Title:      "Incidencia resuelta",
			Body:       actionResult,
			Data: map[string]interface{}{
				"incident_id": incident.ID,
				"action":      res.Action,
			},
		}

		summary = &ResolutionSummary{
			IncidentID:        incident.ID,
			Status:            "resolved",
			Action:            res.Action,
			ActionResult:      actionResult,
			ResolvedAt:        now,
			ResolvedBy:        caller.TenantUserID,
			NotificationsSent: len(recipients),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if summary.Status == "already_resolved" {
		return summary, nil
	}

	if s.publisher != nil {
		if notification != nil {
			if pubErr := s.publisher.Notify(ctx, *notification); pubErr != nil {
				s.logger.Warn("notification emit failed", slog.Any("error", pubErr))
			}
		}
		if auditErr := s.publisher.Audit(ctx, events.AuditRecord{
			TenantID:  caller.TenantID,
			RequestID: caller.RequestID,
			ActorID:   caller.TenantUserID,
			Action:    "incident.resolve",
			Entity:    "incident",
			EntityID:  incidentID,
			Details: map[string]interface{}{
				"action":        res.Action,
				"action_result": summary.ActionResult,
			},
		}); auditErr != nil {
			s.logger.Warn("audit emit failed", slog.Any("error", auditErr))
		}
	}
	if s.broadcaster != nil && touchedMatch != nil && tournamentID != nil {
		s.broadcaster.BroadcastTournament(*tournamentID, brackets.EventMatchUpdated, map[string]interface{}{
			"match_id":    touchedMatch,
			"incident_id": incidentID,
			"action":      res.Action,
		})
	}
	return summary, nil
}

// applyAction runs the side effects of one resolution action and returns a
// human-readable summary plus the match it touched, if any.
func (s *IncidentService) applyAction(ctx context.Context, q repositories.SQLExecutor, caller Caller, incident *models.Incident, res Resolution, now time.Time) (string, *uuid.UUID, error) {
	switch res.Action {
	case ActionDismiss:
		return "incident dismissed without further action", nil, nil

	case ActionWarn:
		if incident.AffectedTeamID == nil {
			return "", nil, fmt.Errorf("%w: warn requires an affected team", ErrInvalidResolution)
		}
		warning := &models.Warning{
			TenantID:   caller.TenantID,
			TeamID:     *incident.AffectedTeamID,
			IncidentID: incident.ID,
			Reason:     strings.TrimSpace(res.Notes),
			IssuedBy:   caller.TenantUserID,
			IssuedAt:   now,
		}
		if err := s.warnings.Create(ctx, q, warning); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("warning issued to team %s", warning.TeamID), nil, nil

	case ActionDisqualify:
		return s.disqualify(ctx, q, caller, incident, now)

	case ActionReschedule:
		return s.reschedule(ctx, q, caller, incident, res, now)

	case ActionOverrideResult:
		return s.overrideResult(ctx, q, caller, incident, *res.OverrideWinnerID, res.Notes, now)
	}
	return "", nil, fmt.Errorf("%w: unknown action %q", ErrInvalidResolution, res.Action)
}

func (s *IncidentService) disqualify(ctx context.Context, q repositories.SQLExecutor, caller Caller, incident *models.Incident, now time.Time) (string, *uuid.UUID, error) {
	if incident.TournamentID == nil || incident.AffectedTeamID == nil {
		return "", nil, fmt.Errorf("%w: disqualify requires a tournament and an affected team", ErrInvalidResolution)
	}

	entry, err := s.entries.GetByTeam(ctx, q, caller.TenantID, *incident.TournamentID, *incident.AffectedTeamID)
	if err != nil {
		return "", nil, err
	}
	if err := s.entries.MarkDisqualified(ctx, q, caller.TenantID, entry.ID, now); err != nil {
		return "", nil, err
	}

	result := fmt.Sprintf("team %s disqualified from the tournament", *incident.AffectedTeamID)
	if incident.MatchID == nil {
		return result, nil, nil
	}

	m, err := s.matches.GetByIDForUpdate(ctx, q, caller.TenantID, *incident.MatchID)
	if err != nil {
		return "", nil, err
	}
	if m.IsTerminal() || !m.HasTeam(*incident.AffectedTeamID) {
		return result, nil, nil
	}

	opponent := m.OpponentOf(*incident.AffectedTeamID)
	if opponent == nil {
		return result, nil, nil
	}
	loser := *incident.AffectedTeamID
	if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
		Status:     models.MatchWalkover,
		WinnerID:   opponent,
		LoserID:    &loser,
		FinishedAt: &now,
	}); err != nil {
		return "", nil, err
	}
	m.Status = models.MatchWalkover
	m.WinnerID = opponent
	m.LoserID = &loser
	m.FinishedAt = &now
	m.PendingResult = nil

	if err := s.advancer.Advance(ctx, q, m, now); err != nil {
		return "", nil, err
	}
	matchID := m.ID
	return result + "; linked match decided by walkover", &matchID, nil
}

func (s *IncidentService) reschedule(ctx context.Context, q repositories.SQLExecutor, caller Caller, incident *models.Incident, res Resolution, now time.Time) (string, *uuid.UUID, error) {
	if incident.MatchID == nil {
		return "", nil, fmt.Errorf("%w: reschedule requires a match", ErrInvalidResolution)
	}
	m, err := s.matches.GetByIDForUpdate(ctx, q, caller.TenantID, *incident.MatchID)
	if err != nil {
		return "", nil, err
	}
	if m.IsTerminal() {
		return "", nil, fmt.Errorf("%w: match is already %s", ErrInvalidResolution, m.Status)
	}

	record := map[string]interface{}{
		"from":   m.ScheduledAt,
		"to":     res.RescheduleTo,
		"reason": strings.TrimSpace(res.Notes),
		"by":     caller.TenantUserID,
		"at":     now,
	}
	// A pending result does not survive a postponement: the report is archived
	// with the reschedule record and the teams report again after the new date.
	if m.PendingResult != nil {
		record["cleared_pending"] = m.PendingResult
	}
	settings, err := appendToSettingsList(m.Settings, "reschedules", record)
	if err != nil {
		return "", nil, err
	}
	if err := s.matches.UpdateSettings(ctx, q, caller.TenantID, m.ID, settings); err != nil {
		return "", nil, err
	}
	if m.PendingResult != nil {
		if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
			Status: models.MatchPostponed,
		}); err != nil {
			return "", nil, err
		}
		m.PendingResult = nil
	}
	if err := s.matches.UpdateSchedule(ctx, q, caller.TenantID, m.ID, res.RescheduleTo, models.MatchPostponed); err != nil {
		return "", nil, err
	}

	matchID := m.ID
	if res.RescheduleTo == nil {
		return "match postponed without a new date", &matchID, nil
	}
	return fmt.Sprintf("match postponed to %s", res.RescheduleTo.Format(time.RFC3339)), &matchID, nil
}

func (s *IncidentService) overrideResult(ctx context.Context, q repositories.SQLExecutor, caller Caller, incident *models.Incident, winnerID uuid.UUID, notes string, now time.Time) (string, *uuid.UUID, error) {
	if incident.MatchID == nil {
		return "", nil, fmt.Errorf("%w: override_result requires a match", ErrInvalidResolution)
	}
	m, err := s.matches.GetByIDForUpdate(ctx, q, caller.TenantID, *incident.MatchID)
	if err != nil {
		return "", nil, err
	}
	if m.Status == models.MatchFinished || m.Status == models.MatchWalkover {
		return "", nil, fmt.Errorf("%w: match result is final", ErrInvalidResolution)
	}
	if !m.HasTeam(winnerID) {
		return "", nil, fmt.Errorf("%w: override winner is not a team of the match", ErrInvalidResolution)
	}
	winnerEntry, err := s.entries.GetByTeam(ctx, q, caller.TenantID, m.TournamentID, winnerID)
	if err != nil {
		return "", nil, err
	}
	if winnerEntry.Status == models.EntryDisqualified {
		return "", nil, fmt.Errorf("%w: team %s", ErrTeamDisqualified, winnerID)
	}

	settings, err := mergeSettings(m.Settings, "admin_override", map[string]interface{}{
		"previous_pending": m.PendingResult,
		"winner_id":        winnerID,
		"by":               caller.TenantUserID,
		"at":               now,
		"notes":            strings.TrimSpace(notes),
	})
	if err != nil {
		return "", nil, err
	}
	if err := s.matches.UpdateSettings(ctx, q, caller.TenantID, m.ID, settings); err != nil {
		return "", nil, err
	}

	loser := m.OpponentOf(winnerID)
	winner := winnerID
	if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
		Status:     models.MatchFinished,
		WinnerID:   &winner,
		LoserID:    loser,
		FinishedAt: &now,
	}); err != nil {
		return "", nil, err
	}
	m.Status = models.MatchFinished
	m.WinnerID = &winner
	m.LoserID = loser
	m.FinishedAt = &now
	m.PendingResult = nil

	if err := s.advancer.Advance(ctx, q, m, now); err != nil {
		return "", nil, err
	}
	matchID := m.ID
	return fmt.Sprintf("match result overridden, winner %s", winnerID), &matchID, nil
}

// resolutionRecipients collects the reporter, the affected team, and both
// teams of a linked match, deduplicated.
func (s *IncidentService) resolutionRecipients(ctx context.Context, q repositories.SQLExecutor, tenantID uuid.UUID, incident *models.Incident) ([]uuid.UUID, error) {
	recipients := []uuid.UUID{incident.ReportedBy}

	teamIDs := make([]uuid.UUID, 0, 3)
	if incident.AffectedTeamID != nil {
		teamIDs = append(teamIDs, *incident.AffectedTeamID)
	}
	if incident.MatchID != nil {
		m, err := s.matches.GetByID(ctx, q, tenantID, *incident.MatchID)
		if err == nil {
			if m.Team1ID != nil {
				teamIDs = append(teamIDs, *m.Team1ID)
			}
			if m.Team2ID != nil {
				teamIDs = append(teamIDs, *m.Team2ID)
			}
		} else if !errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, err
		}
	}

	for _, teamID := range teamIDs {
		ids, err := s.members.ListTeamMemberIDs(ctx, q, tenantID, teamID)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, ids...)
	}
	return events.DedupeRecipients(recipients), nil
}
