package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/brackets"
	"github.com/padelops/tournament-engine/events"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
	"github.com/padelops/tournament-engine/scoring"
)

const (
	maxNotesLength         = 500
	maxDisputeReasonLength = 500
	minDisputeReasonLength = 10

	idempotencyTTL = 24 * time.Hour
)

// ResultService drives a match through report, confirmation, dispute, and
// auto-confirmation. Every mutation runs in one serializable transaction with
// the match row locked; notifications and audit go out after commit.
type ResultService struct {
	tx          repositories.TxRunner
	tournaments repositories.TournamentRepository
	entries     repositories.EntryRepository
	matches     repositories.MatchRepository
	setResults  repositories.SetResultRepository
	incidents   repositories.IncidentRepository
	members     repositories.MemberRepository
	idempotency repositories.IdempotencyRepository
	advancer    *BracketAdvancer
	publisher   events.Publisher
	broadcaster Broadcaster

	confirmWindow time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewResultService(
	tx repositories.TxRunner,
	tournaments repositories.TournamentRepository,
	entries repositories.EntryRepository,
	matches repositories.MatchRepository,
	setResults repositories.SetResultRepository,
	incidents repositories.IncidentRepository,
	members repositories.MemberRepository,
	idempotency repositories.IdempotencyRepository,
	advancer *BracketAdvancer,
	publisher events.Publisher,
	broadcaster Broadcaster,
	confirmWindow time.Duration,
	logger *slog.Logger,
) *ResultService {
	return &ResultService{
		tx:            tx,
		tournaments:   tournaments,
		entries:       entries,
		matches:       matches,
		setResults:    setResults,
		incidents:     incidents,
		members:       members,
		idempotency:   idempotency,
		advancer:      advancer,
		publisher:     publisher,
		broadcaster:   broadcaster,
		confirmWindow: confirmWindow,
		logger:        logger,
		now:           time.Now,
	}
}

type ReportResultInput struct {
	MatchID         uuid.UUID         `json:"match_id"`
	Sets            []models.SetScore `json:"sets"`
	WinnerTeamID    uuid.UUID         `json:"winner_team_id"`
	DurationMinutes *int              `json:"duration_minutes,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	IdempotencyKey  string            `json:"-"`
}

type ReportResponse struct {
	MatchID           uuid.UUID          `json:"match_id"`
	Status            models.MatchStatus `json:"status"`
	NeedsConfirmation bool               `json:"needs_confirmation"`
	WinnerTeamID      uuid.UUID          `json:"winner_team_id"`
	Sets              []models.SetScore  `json:"sets"`
	Message           string             `json:"message"`
}

// ReportResult ingests a score report. Player reports leave the match
// in_progress with an embedded pending result; admin reports finish it
// immediately. Replays with a known idempotency key return the original
// response without touching state.
func (s *ResultService) ReportResult(ctx context.Context, caller Caller, in ReportResultInput) (*ReportResponse, error) {
	if in.Notes != nil && len(*in.Notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes exceed %d characters", ErrValidation, maxNotesLength)
	}

	var (
		resp         *ReportResponse
		replayed     bool
		notification *events.Notification
		tournamentID uuid.UUID
	)

	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		if in.IdempotencyKey != "" {
			rec, err := s.idempotency.Get(ctx, q, caller.TenantID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if rec != nil {
				stored := &ReportResponse{}
				if err := json.Unmarshal(rec.Response, stored); err != nil {
					return fmt.Errorf("failed to decode stored idempotent response: %w", err)
				}
				resp = stored
				replayed = true
				return nil
			}
		}

		m, err := s.matches.GetByIDForUpdate(ctx, q, caller.TenantID, in.MatchID)
		if err != nil {
			return err
		}
		if m.IsTerminal() {
			return fmt.Errorf("%w: match is %s", ErrMatchNotReportable, m.Status)
		}
		if m.PendingResult != nil {
			return fmt.Errorf("%w: reported by %s", ErrResultAlreadyPending, m.PendingResult.ReportedBy)
		}
		if m.Team1ID == nil || m.Team2ID == nil {
			return fmt.Errorf("%w: team slots not yet resolved", ErrMatchNotReportable)
		}

		tournamentID = m.TournamentID

		t, err := s.tournaments.GetByID(ctx, q, caller.TenantID, m.TournamentID)
		if err != nil {
			return err
		}

		var reporterTeam uuid.UUID
		if !caller.IsAdmin() {
			reporterTeam, err = s.callerTeam(ctx, q, caller, m)
			if err != nil {
				return err
			}
		}

		if !m.HasTeam(in.WinnerTeamID) {
			return fmt.Errorf("%w: declared winner %s", ErrTeamNotInMatch, in.WinnerTeamID)
		}
		winnerEntry, err := s.entries.GetByTeam(ctx, q, caller.TenantID, m.TournamentID, in.WinnerTeamID)
		if err != nil {
			return err
		}
		if winnerEntry.Status == models.EntryDisqualified {
			return fmt.Errorf("%w: team %s", ErrTeamDisqualified, in.WinnerTeamID)
		}
		if err := scoring.ValidateResult(in.Sets, in.WinnerTeamID, *m.Team1ID, *m.Team2ID, scoring.Rules{
			SetsToWin:   t.SetsToWin,
			GamesPerSet: t.GamesPerSet,
		}); err != nil {
			return err
		}

		now := s.now().UTC()
		loser := *m.OpponentOf(in.WinnerTeamID)
		needsConfirmation := !caller.IsAdmin()

		if needsConfirmation {
			pending := &models.PendingResult{
				ReportedBy:     caller.TenantUserID,
				ReporterTeamID: reporterTeam,
				ReportedAt:     now,
				WinnerID:       in.WinnerTeamID,
				LoserID:        loser,
				Sets:           in.Sets,
				Status:         models.PendingConfirmation,
			}
			if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
				Status:          models.MatchInProgress,
				Pending:         pending,
				DurationMinutes: in.DurationMinutes,
				Notes:           in.Notes,
			}); err != nil {
				return err
			}
			m.Status = models.MatchInProgress
			m.PendingResult = pending

			// Confirmation comes from whichever side did not report,
			// regardless of who was declared winner.
			opponents, err := s.members.ListTeamMemberIDs(ctx, q, caller.TenantID, *m.OpponentOf(reporterTeam))
			if err != nil {
				return err
			}
			notification = &events.Notification{
				TenantID:   caller.TenantID,
				Type:       events.TypeResultPendingConfirmation,
				Recipients: opponents,
				Title:      "Resultado pendiente de confirmación",
				Body:       "El equipo rival ha reportado un resultado. Confírmalo o dispútalo.",
				Data:       map[string]interface{}{"match_id": m.ID, "tournament_id": m.TournamentID},
			}
		} else {
			winner := in.WinnerTeamID
			if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
				Status:          models.MatchFinished,
				WinnerID:        &winner,
				LoserID:         &loser,
				FinishedAt:      &now,
				DurationMinutes: in.DurationMinutes,
				Notes:           in.Notes,
			}); err != nil {
				return err
			}
			m.Status = models.MatchFinished
			m.WinnerID = &winner
			m.LoserID = &loser
			m.FinishedAt = &now

			if err := s.advancer.Advance(ctx, q, m, now); err != nil {
				return err
			}

			recipients, err := s.matchParticipants(ctx, q, caller.TenantID, m)
			if err != nil {
				return err
			}
			notification = &events.Notification{
				TenantID:   caller.TenantID,
				Type:       events.TypeResultReported,
				Recipients: recipients,
				Title:      "Resultado registrado",
				Body:       "Un administrador ha registrado el resultado del partido.",
				Data:       map[string]interface{}{"match_id": m.ID, "tournament_id": m.TournamentID},
			}
		}

		if err := s.setResults.ReplaceForMatch(ctx, q, caller.TenantID, m.ID, in.Sets); err != nil {
			return err
		}

		resp = &ReportResponse{
			MatchID:           m.ID,
			Status:            m.Status,
			NeedsConfirmation: needsConfirmation,
			WinnerTeamID:      in.WinnerTeamID,
			Sets:              in.Sets,
			Message:           reportMessage(needsConfirmation),
		}

		if in.IdempotencyKey != "" {
			raw, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			if err := s.idempotency.Save(ctx, q, caller.TenantID, in.IdempotencyKey, raw, now.Add(idempotencyTTL)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.emit(ctx, caller, notification, "result.report", "match", in.MatchID, map[string]interface{}{
			"winner_team_id": in.WinnerTeamID,
			"status":         resp.Status,
		})
		if s.broadcaster != nil {
			s.broadcaster.BroadcastTournament(tournamentID, brackets.EventMatchUpdated, resp)
		}
	}
	return resp, nil
}

type AcceptResponse struct {
	MatchID      uuid.UUID  `json:"match_id"`
	Status       string     `json:"status"`
	IncidentID   *uuid.UUID `json:"incident_id,omitempty"`
	WinnerTeamID *uuid.UUID `json:"winner_team_id,omitempty"`
	Message      string     `json:"message"`
}

// AcceptResult confirms or disputes a pending result. Confirmation finishes
// the match and advances the bracket; a dispute freezes the pending result
// and opens an incident for admin adjudication.
func (s *ResultService) AcceptResult(ctx context.Context, caller Caller, matchID uuid.UUID, accept bool, disputeReason string) (*AcceptResponse, error) {
	var (
		resp         *AcceptResponse
		notification *events.Notification
		tournamentID uuid.UUID
	)

	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		m, err := s.matches.GetByIDForUpdate(ctx, q, caller.TenantID, matchID)
		if err != nil {
			return err
		}
		pending := m.PendingResult
		if pending == nil || pending.Status != models.PendingConfirmation {
			return ErrNoPendingResult
		}
		tournamentID = m.TournamentID

		if caller.TenantUserID == pending.ReportedBy {
			return ErrSelfConfirmation
		}
		sameTeam, err := s.members.IsTeamMember(ctx, q, caller.TenantID, pending.ReporterTeamID, caller.TenantUserID)
		if err != nil {
			return err
		}
		if sameTeam {
			return ErrSelfConfirmation
		}
		if !caller.IsAdmin() {
			opponent := m.OpponentOf(pending.ReporterTeamID)
			if opponent == nil {
				return ErrNotPendingParty
			}
			member, err := s.members.IsTeamMember(ctx, q, caller.TenantID, *opponent, caller.TenantUserID)
			if err != nil {
				return err
			}
			if !member {
				return ErrNotPendingParty
			}
		}

		now := s.now().UTC()
		if accept {
			notification, err = s.confirmPending(ctx, q, caller.TenantID, m, caller.TenantUserID, now)
			if err != nil {
				return err
			}
			winner := pending.WinnerID
			resp = &AcceptResponse{
				MatchID:      m.ID,
				Status:       string(models.MatchFinished),
				WinnerTeamID: &winner,
				Message:      "result confirmed, match finished",
			}
			return nil
		}

		reason := strings.TrimSpace(disputeReason)
		if len(reason) < minDisputeReasonLength {
			return ErrDisputeReasonShort
		}
		if len(reason) > maxDisputeReasonLength {
			return fmt.Errorf("%w: dispute reason exceeds %d characters", ErrValidation, maxDisputeReasonLength)
		}

		pending.Status = models.PendingDisputed
		pending.DisputeReason = &reason
		if err := s.matches.UpdateResult(ctx, q, caller.TenantID, m.ID, repositories.MatchResultUpdate{
			Status:  models.MatchInProgress,
			Pending: pending,
		}); err != nil {
			return err
		}

		details, err := json.Marshal(map[string]interface{}{
			"declared_winner_id": pending.WinnerID,
			"sets":               pending.Sets,
			"dispute_reason":     reason,
		})
		if err != nil {
			return err
		}
		incident := &models.Incident{
			TenantID:       caller.TenantID,
			Type:           models.IncidentDispute,
			Severity:       models.SeverityMedium,
			Title:          "Resultado disputado",
			Description:    reason,
			TournamentID:   &m.TournamentID,
			MatchID:        &m.ID,
			AffectedTeamID: &pending.ReporterTeamID,
			ReportedBy:     caller.TenantUserID,
			Details:        details,
		}
		if err := s.incidents.Create(ctx, q, incident); err != nil {
			return err
		}

		admins, err := s.members.ListAdminIDs(ctx, q, caller.TenantID)
		if err != nil {
			return err
		}
		notification = &events.Notification{
			TenantID:   caller.TenantID,
			Type:       events.TypeResultDisputed,
			Recipients: append(admins, pending.ReportedBy),
			Title:      "Resultado disputado",
			Body:       reason,
			Data:       map[string]interface{}{"match_id": m.ID, "incident_id": incident.ID},
		}

		incidentID := incident.ID
		resp = &AcceptResponse{
			MatchID:    m.ID,
			Status:     string(models.PendingDisputed),
			IncidentID: &incidentID,
			Message:    "dispute recorded, awaiting admin resolution",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, caller, notification, "result.accept", "match", matchID, map[string]interface{}{
		"accepted": accept,
		"status":   resp.Status,
	})
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(tournamentID, brackets.EventMatchUpdated, resp)
	}
	return resp, nil
}

// AutoConfirmExpired promotes every pending result older than the
// confirmation window, exactly as an explicit accept with the system identity
// as confirmer. Returns how many matches were confirmed.
func (s *ResultService) AutoConfirmExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.confirmWindow)

	var expired []*models.Match
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		var listErr error
		expired, listErr = s.matches.ListExpiredPending(ctx, q, cutoff)
		return listErr
	})
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, candidate := range expired {
		ok, err := s.autoConfirmOne(ctx, candidate.TenantID, candidate.ID, candidate.TournamentID, cutoff)
		if err != nil {
			s.logger.Error("auto-confirmation failed",
				slog.String("match_id", candidate.ID.String()),
				slog.Any("error", err))
			continue
		}
		if ok {
			confirmed++
		}
	}
	if confirmed > 0 {
		s.logger.Info("pending results auto-confirmed", slog.Int("count", confirmed))
	}
	return confirmed, nil
}

func (s *ResultService) autoConfirmOne(ctx context.Context, tenantID, matchID, tournamentID uuid.UUID, cutoff time.Time) (bool, error) {
	var notification *events.Notification
	err := s.tx.WithinSerializable(ctx, func(q repositories.SQLExecutor) error {
		m, err := s.matches.GetByIDForUpdate(ctx, q, tenantID, matchID)
		if err != nil {
			return err
		}
		// Re-check under lock; a player may have confirmed or disputed since
		// the candidate list was taken.
		if m.PendingResult == nil ||
			m.PendingResult.Status != models.PendingConfirmation ||
			!m.PendingResult.ReportedAt.Before(cutoff) {
			return nil
		}
		notification, err = s.confirmPending(ctx, q, tenantID, m, SystemActor, s.now().UTC())
		return err
	})
	if err != nil {
		return false, err
	}
	if notification == nil {
		return false, nil
	}

	if s.publisher != nil {
		if pubErr := s.publisher.Notify(ctx, *notification); pubErr != nil {
			s.logger.Warn("notification emit failed", slog.Any("error", pubErr))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(tournamentID, brackets.EventMatchUpdated, map[string]interface{}{
			"match_id": matchID,
			"status":   models.MatchFinished,
		})
	}
	return true, nil
}

// confirmPending finishes a match from its pending result. The promoted
// pending result (status confirmed, confirmed_by) is archived in the match
// settings; the embedded copy is cleared because finished matches carry none.
func (s *ResultService) confirmPending(ctx context.Context, q repositories.SQLExecutor, tenantID uuid.UUID, m *models.Match, confirmedBy uuid.UUID, now time.Time) (*events.Notification, error) {
	pending := m.PendingResult

	archived := *pending
	archived.Status = models.PendingConfirmed
	archived.ConfirmedBy = &confirmedBy
	settings, err := mergeSettings(m.Settings, "confirmed_result", archived)
	if err != nil {
		return nil, err
	}
	if err := s.matches.UpdateSettings(ctx, q, tenantID, m.ID, settings); err != nil {
		return nil, err
	}

	winner := pending.WinnerID
	loser := pending.LoserID
	if err := s.matches.UpdateResult(ctx, q, tenantID, m.ID, repositories.MatchResultUpdate{
		Status:     models.MatchFinished,
		WinnerID:   &winner,
		LoserID:    &loser,
		FinishedAt: &now,
	}); err != nil {
		return nil, err
	}
	m.Status = models.MatchFinished
	m.WinnerID = &winner
	m.LoserID = &loser
	m.FinishedAt = &now
	m.PendingResult = nil
	m.Settings = settings

	if err := s.advancer.Advance(ctx, q, m, now); err != nil {
		return nil, err
	}

	recipients, err := s.members.ListTeamMemberIDs(ctx, q, tenantID, pending.ReporterTeamID)
	if err != nil {
		return nil, err
	}
	return &events.Notification{
		TenantID:   tenantID,
		Type:       events.TypeResultConfirmed,
		Recipients: recipients,
		Title:      "Resultado confirmado",
		Body:       "El resultado reportado ha sido confirmado.",
		Data:       map[string]interface{}{"match_id": m.ID, "winner_team_id": winner},
	}, nil
}

// callerTeam resolves which side of the match the caller plays for.
func (s *ResultService) callerTeam(ctx context.Context, q repositories.SQLExecutor, caller Caller, m *models.Match) (uuid.UUID, error) {
	for _, teamID := range []*uuid.UUID{m.Team1ID, m.Team2ID} {
		if teamID == nil {
			continue
		}
		member, err := s.members.IsTeamMember(ctx, q, caller.TenantID, *teamID, caller.TenantUserID)
		if err != nil {
			return uuid.Nil, err
		}
		if member {
			return *teamID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: caller is not a member of either team", ErrForbidden)
}

func (s *ResultService) matchParticipants(ctx context.Context, q repositories.SQLExecutor, tenantID uuid.UUID, m *models.Match) ([]uuid.UUID, error) {
	recipients := make([]uuid.UUID, 0)
	for _, teamID := range []*uuid.UUID{m.Team1ID, m.Team2ID} {
		if teamID == nil {
			continue
		}
		ids, err := s.members.ListTeamMemberIDs(ctx, q, tenantID, *teamID)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, ids...)
	}
	return events.DedupeRecipients(recipients), nil
}

func (s *ResultService) emit(ctx context.Context, caller Caller, n *events.Notification, action, entity string, entityID uuid.UUID, details map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if n != nil {
		if err := s.publisher.Notify(ctx, *n); err != nil {
			s.logger.Warn("notification emit failed", slog.String("type", n.Type), slog.Any("error", err))
		}
	}
	if err := s.publisher.Audit(ctx, events.AuditRecord{
		TenantID:  caller.TenantID,
		RequestID: caller.RequestID,
		ActorID:   caller.TenantUserID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
	}); err != nil {
		s.logger.Warn("audit emit failed", slog.String("action", action), slog.Any("error", err))
	}
}

func reportMessage(needsConfirmation bool) string {
	if needsConfirmation {
		return "result reported, awaiting confirmation from the opposing team"
	}
	return "result recorded and match finished"
}
