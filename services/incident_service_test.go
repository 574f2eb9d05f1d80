package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type incidentEnv struct {
	service     *IncidentService
	tournaments *fakeTournamentRepo
	incidents   *fakeIncidentRepo
	matches     *fakeMatchRepo
	entries     *fakeEntryRepo
	warnings    *fakeWarningRepo
	members     *fakeMemberRepo
	publisher   *fakePublisher
	broadcaster *fakeBroadcaster

	tenantID     uuid.UUID
	tournamentID uuid.UUID
	matchID      uuid.UUID
	teamA        uuid.UUID
	teamB        uuid.UUID
	playerA      uuid.UUID
	playerB      uuid.UUID
	admin        Caller
}

func newIncidentEnv(t *testing.T) *incidentEnv {
	t.Helper()

	env := &incidentEnv{
		tournaments: newFakeTournamentRepo(),
		incidents:   newFakeIncidentRepo(),
		matches:     newFakeMatchRepo(),
		entries:     &fakeEntryRepo{},
		warnings:    &fakeWarningRepo{},
		members:     newFakeMemberRepo(),
		publisher:   &fakePublisher{},
		broadcaster: &fakeBroadcaster{},

		tenantID:     uuid.New(),
		tournamentID: uuid.New(),
		matchID:      uuid.New(),
		teamA:        uuid.New(),
		teamB:        uuid.New(),
		playerA:      uuid.New(),
		playerB:      uuid.New(),
	}
	env.admin = Caller{TenantID: env.tenantID, TenantUserID: uuid.New(), Role: RoleAdmin, RequestID: "req-admin"}

	env.members.teams[env.teamA] = []uuid.UUID{env.playerA}
	env.members.teams[env.teamB] = []uuid.UUID{env.playerB}
	env.members.admins = []uuid.UUID{env.admin.TenantUserID}

	env.tournaments.tournaments[env.tournamentID] = &models.Tournament{
		ID:          env.tournamentID,
		TenantID:    env.tenantID,
		Status:      models.TournamentInProgress,
		SetsToWin:   2,
		GamesPerSet: 6,
		StartDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	teamA, teamB := env.teamA, env.teamB
	env.matches.matches[env.matchID] = &models.Match{
		ID:              env.matchID,
		TenantID:        env.tenantID,
		TournamentID:    env.tournamentID,
		RoundNumber:     1,
		RoundName:       "Grupo A",
		MatchNumber:     1,
		BracketPosition: "GA-R1-M1v2",
		Team1ID:         &teamA,
		Team2ID:         &teamB,
		Status:          models.MatchScheduled,
	}
	env.entries.entries = append(env.entries.entries,
		&models.Entry{ID: uuid.New(), TenantID: env.tenantID, TournamentID: env.tournamentID, TeamID: env.teamA, Status: models.EntryConfirmed},
		&models.Entry{ID: uuid.New(), TenantID: env.tenantID, TournamentID: env.tournamentID, TeamID: env.teamB, Status: models.EntryConfirmed},
	)

	logger := testLogger()
	advancer := NewBracketAdvancer(env.tournaments, env.matches, newFakeSetResultRepo(), logger)
	env.service = NewIncidentService(
		fakeTx{}, env.incidents, env.matches, env.entries, env.warnings,
		env.members, advancer, env.publisher, env.broadcaster, logger,
	)
	return env
}

func (env *incidentEnv) openIncident(t *testing.T, incidentType models.IncidentType, withMatch bool) *models.Incident {
	t.Helper()
	teamA := env.teamA
	incident := &models.Incident{
		TenantID:       env.tenantID,
		Type:           incidentType,
		Severity:       models.SeverityMedium,
		Title:          "incidencia de prueba",
		Description:    "descripcion",
		TournamentID:   &env.tournamentID,
		AffectedTeamID: &teamA,
		ReportedBy:     env.playerB,
	}
	if withMatch {
		incident.MatchID = &env.matchID
	}
	require.NoError(t, env.incidents.Create(context.Background(), nil, incident))
	return incident
}

func TestResolveIncidentDismiss(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentOther, false)

	summary, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionDismiss,
		Notes:  "nothing to act on here",
	})
	require.NoError(t, err)

	assert.Equal(t, "resolved", summary.Status)
	assert.Equal(t, env.admin.TenantUserID, summary.ResolvedBy)

	stored := env.incidents.incidents[incident.ID]
	assert.True(t, stored.Resolved())
	require.NotNil(t, stored.ResolutionNotes)
	assert.Equal(t, "[DISMISS] nothing to act on here", *stored.ResolutionNotes)
}

func TestResolveIncidentAlreadyResolvedIsNoOp(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentOther, false)

	first, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionDismiss, Notes: "nothing to act on here",
	})
	require.NoError(t, err)
	notificationsBefore := len(env.publisher.notifications)

	second, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionWarn, Notes: "a different action entirely",
	})
	require.NoError(t, err)

	assert.Equal(t, "already_resolved", second.Status)
	assert.Equal(t, first.ResolvedAt, second.ResolvedAt)
	assert.Equal(t, first.ResolvedBy, second.ResolvedBy)
	assert.Len(t, env.publisher.notifications, notificationsBefore)
	assert.Empty(t, env.warnings.warnings)
}

func TestResolveIncidentWarnAppendsWarning(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentMisconduct, false)

	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionWarn, Notes: "unsportsmanlike conduct on court",
	})
	require.NoError(t, err)

	warnings, err := env.warnings.ListByTeam(context.Background(), nil, env.tenantID, env.teamA)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, incident.ID, warnings[0].IncidentID)
	assert.Equal(t, env.admin.TenantUserID, warnings[0].IssuedBy)
}

func TestResolveIncidentDisqualifyWalksOverLinkedMatch(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentNoShow, true)

	summary, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionDisqualify, Notes: "team did not show up twice",
	})
	require.NoError(t, err)
	assert.Contains(t, summary.ActionResult, "walkover")

	entry, err := env.entries.GetByTeam(context.Background(), nil, env.tenantID, env.tournamentID, env.teamA)
	require.NoError(t, err)
	assert.Equal(t, models.EntryDisqualified, entry.Status)
	assert.NotNil(t, entry.DisqualifiedAt)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchWalkover, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, env.teamB, *m.WinnerID)
	assert.Equal(t, env.teamA, *m.LoserID)
}

func TestResolveIncidentDisqualifyLeavesFinishedMatchAlone(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentNoShow, true)

	teamA := env.teamA
	teamB := env.teamB
	now := time.Now().UTC()
	m := env.matches.matches[env.matchID]
	m.Status = models.MatchFinished
	m.WinnerID = &teamA
	m.LoserID = &teamB
	m.FinishedAt = &now

	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionDisqualify, Notes: "disqualified after the match",
	})
	require.NoError(t, err)

	// The finished result stands; only the entry changes.
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.Equal(t, env.teamA, *m.WinnerID)
}

func TestResolveIncidentReschedulePostponesMatch(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentWeather, true)

	when := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action:       ActionReschedule,
		Notes:        "court flooded, moving to next week",
		RescheduleTo: &when,
	})
	require.NoError(t, err)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchPostponed, m.Status)
	require.NotNil(t, m.ScheduledAt)
	assert.True(t, when.Equal(*m.ScheduledAt))
	assert.Contains(t, string(m.Settings), "reschedules")
	assert.Contains(t, string(m.Settings), "court flooded")
}

func TestResolveIncidentRescheduleWithoutDateLeavesNull(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentWeather, true)

	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionReschedule,
		Notes:  "waiting for the club to confirm a date",
	})
	require.NoError(t, err)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchPostponed, m.Status)
	assert.Nil(t, m.ScheduledAt)
}

func TestResolveIncidentOverrideResult(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentDispute, true)

	// Simulate the disputed pending result the incident refers to.
	teamA, teamB := env.teamA, env.teamB
	reason := "we never played the second set"
	env.matches.matches[env.matchID].Status = models.MatchInProgress
	env.matches.matches[env.matchID].PendingResult = &models.PendingResult{
		ReportedBy:     env.playerA,
		ReporterTeamID: teamA,
		ReportedAt:     time.Now().UTC().Add(-time.Hour),
		WinnerID:       teamA,
		LoserID:        teamB,
		Sets:           straightSets(),
		Status:         models.PendingDisputed,
		DisputeReason:  &reason,
	}

	winner := env.teamB
	summary, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action:           ActionOverrideResult,
		Notes:            "video evidence shows B won 6-2 6-3",
		OverrideWinnerID: &winner,
	})
	require.NoError(t, err)
	assert.Equal(t, "resolved", summary.Status)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.Equal(t, env.teamB, *m.WinnerID)
	assert.Equal(t, env.teamA, *m.LoserID)
	assert.Nil(t, m.PendingResult)
	assert.Contains(t, string(m.Settings), "admin_override")
	// The overridden pending result is archived, not lost.
	assert.Contains(t, string(m.Settings), env.playerA.String())

	// Recipients: reporter + both teams, deduplicated.
	require.NotEmpty(t, env.publisher.notifications)
	n := env.publisher.notifications[len(env.publisher.notifications)-1]
	assert.Equal(t, "incident_resolved", n.Type)
	assert.ElementsMatch(t, []uuid.UUID{env.playerB, env.playerA}, n.Recipients)
	assert.Equal(t, len(n.Recipients), summary.NotificationsSent)
}

func TestResolveIncidentOverrideRejectsDisqualifiedWinner(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentDispute, true)

	entryB := env.entries.entries[1]
	require.NoError(t, env.entries.MarkDisqualified(context.Background(), nil, env.tenantID, entryB.ID, time.Now().UTC()))

	winner := env.teamB
	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action:           ActionOverrideResult,
		Notes:            "award the match to the other pair",
		OverrideWinnerID: &winner,
	})
	assert.ErrorIs(t, err, ErrTeamDisqualified)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchScheduled, m.Status)
	assert.Nil(t, m.WinnerID)
	assert.False(t, env.incidents.incidents[incident.ID].Resolved())
}

func TestResolveIncidentRescheduleClearsDisputedPending(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentDispute, true)

	teamA, teamB := env.teamA, env.teamB
	reason := "the score sheet was lost"
	env.matches.matches[env.matchID].Status = models.MatchInProgress
	env.matches.matches[env.matchID].PendingResult = &models.PendingResult{
		ReportedBy:     env.playerA,
		ReporterTeamID: teamA,
		ReportedAt:     time.Now().UTC().Add(-time.Hour),
		WinnerID:       teamA,
		LoserID:        teamB,
		Sets:           straightSets(),
		Status:         models.PendingDisputed,
		DisputeReason:  &reason,
	}

	when := time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)
	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action:       ActionReschedule,
		Notes:        "replaying the match, the disputed score is void",
		RescheduleTo: &when,
	})
	require.NoError(t, err)

	m := env.matches.matches[env.matchID]
	assert.Equal(t, models.MatchPostponed, m.Status)
	// A postponed match carries no pending result; the voided report is
	// archived with the reschedule record.
	assert.Nil(t, m.PendingResult)
	assert.Contains(t, string(m.Settings), "cleared_pending")
	assert.Contains(t, string(m.Settings), env.playerA.String())
	require.NotNil(t, m.ScheduledAt)
	assert.True(t, when.Equal(*m.ScheduledAt))
}

func TestResolveIncidentOverrideRequiresMatchTeam(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentDispute, true)

	winner := uuid.New()
	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action:           ActionOverrideResult,
		Notes:            "video evidence shows something",
		OverrideWinnerID: &winner,
	})
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestResolveIncidentValidation(t *testing.T) {
	env := newIncidentEnv(t)
	incident := env.openIncident(t, models.IncidentOther, false)

	_, err := env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: ActionDismiss, Notes: "short",
	})
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = env.service.ResolveIncident(context.Background(), env.admin, incident.ID, Resolution{
		Action: "escalate", Notes: "this is long enough to pass",
	})
	assert.ErrorIs(t, err, ErrInvalidResolution)

	player := Caller{TenantID: env.tenantID, TenantUserID: env.playerA, Role: RolePlayer}
	_, err = env.service.ResolveIncident(context.Background(), player, incident.ID, Resolution{
		Action: ActionDismiss, Notes: "players cannot resolve incidents",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReportIncidentValidatesInput(t *testing.T) {
	env := newIncidentEnv(t)
	caller := Caller{TenantID: env.tenantID, TenantUserID: env.playerA, Role: RolePlayer}

	incident, err := env.service.ReportIncident(context.Background(), caller, ReportIncidentInput{
		Type:  models.IncidentInjury,
		Title: "jugador lesionado en pista 2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityLow, incident.Severity)
	assert.Equal(t, env.playerA, incident.ReportedBy)

	_, err = env.service.ReportIncident(context.Background(), caller, ReportIncidentInput{
		Type:  "explosion",
		Title: "algo",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.ReportIncident(context.Background(), caller, ReportIncidentInput{
		Type: models.IncidentInjury,
	})
	assert.ErrorIs(t, err, ErrValidation)
}
