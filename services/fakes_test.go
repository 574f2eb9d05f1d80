package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/events"
	"github.com/padelops/tournament-engine/models"
	"github.com/padelops/tournament-engine/repositories"
)

// fakeTx runs the function directly; the fakes below keep their state in
// maps, so there is nothing to roll back.
type fakeTx struct{}

func (fakeTx) WithinSerializable(ctx context.Context, fn func(q repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeTournamentRepo struct {
	tournaments map[uuid.UUID]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[uuid.UUID]*models.Tournament)}
}

func (r *fakeTournamentRepo) get(tenantID, id uuid.UUID) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok || t.TenantID != tenantID {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error) {
	t, err := r.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, q repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Tournament, error) {
	return r.GetByID(ctx, q, tenantID, id)
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, status models.TournamentStatus) error {
	t, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) StampFixtureGenerated(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, at time.Time, by uuid.UUID) error {
	t, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	t.Status = models.TournamentInProgress
	t.FixtureGeneratedAt = &at
	t.FixtureGeneratedBy = &by
	return nil
}

func (r *fakeTournamentRepo) UpdateSettings(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error {
	t, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	t.Settings = settings
	return nil
}

func (r *fakeTournamentRepo) UpdatePosterKey(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, key *string) error {
	t, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	t.PosterKey = key
	return nil
}

type fakeEntryRepo struct {
	entries []*models.Entry
}

func (r *fakeEntryRepo) sorted(tenantID, tournamentID uuid.UUID, confirmedOnly bool) []*models.Entry {
	out := make([]*models.Entry, 0)
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.TournamentID != tournamentID {
			continue
		}
		if confirmedOnly && e.Status != models.EntryConfirmed {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Seed != nil && b.Seed != nil:
			return *a.Seed < *b.Seed
		case a.Seed != nil:
			return true
		case b.Seed != nil:
			return false
		}
		if a.ConfirmedAt != nil && b.ConfirmedAt != nil {
			return a.ConfirmedAt.Before(*b.ConfirmedAt)
		}
		return i < j
	})
	return out
}

func (r *fakeEntryRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error) {
	return r.sorted(tenantID, tournamentID, false), nil
}

func (r *fakeEntryRepo) ListConfirmedForUpdate(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID uuid.UUID) ([]*models.Entry, error) {
	return r.sorted(tenantID, tournamentID, true), nil
}

func (r *fakeEntryRepo) GetByTeam(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*models.Entry, error) {
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.TournamentID == tournamentID && e.TeamID == teamID {
			return e, nil
		}
	}
	return nil, repositories.ErrEntryNotFound
}

func (r *fakeEntryRepo) MarkDisqualified(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, at time.Time) error {
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.ID == id {
			e.Status = models.EntryDisqualified
			e.DisqualifiedAt = &at
			return nil
		}
	}
	return repositories.ErrEntryNotFound
}

type fakeMatchRepo struct {
	matches map[uuid.UUID]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[uuid.UUID]*models.Match)}
}

func (r *fakeMatchRepo) get(tenantID, id uuid.UUID) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok || m.TenantID != tenantID {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (r *fakeMatchRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, matches []*models.Match) error {
	for _, m := range matches {
		copied := *m
		r.matches[m.ID] = &copied
	}
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error) {
	m, err := r.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, q repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Match, error) {
	return r.GetByID(ctx, q, tenantID, id)
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID uuid.UUID, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TenantID != tenantID || m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.RoundNumber != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (r *fakeMatchRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID uuid.UUID) (int64, error) {
	deleted := int64(0)
	for id, m := range r.matches {
		if m.TenantID == tenantID && m.TournamentID == tournamentID {
			delete(r.matches, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, upd repositories.MatchResultUpdate) error {
	m, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	m.Status = upd.Status
	m.WinnerID = upd.WinnerID
	m.LoserID = upd.LoserID
	m.FinishedAt = upd.FinishedAt
	m.PendingResult = upd.Pending
	if upd.DurationMinutes != nil {
		m.DurationMinutes = upd.DurationMinutes
	}
	if upd.Notes != nil {
		m.Notes = upd.Notes
	}
	return nil
}

func (r *fakeMatchRepo) UpdateSchedule(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, scheduledAt *time.Time, status models.MatchStatus) error {
	m, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	m.ScheduledAt = scheduledAt
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateSlots(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, team1ID, team2ID *uuid.UUID) error {
	m, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	m.Team1ID = team1ID
	m.Team2ID = team2ID
	return nil
}

func (r *fakeMatchRepo) UpdateSettings(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, settings json.RawMessage) error {
	m, err := r.get(tenantID, id)
	if err != nil {
		return err
	}
	m.Settings = settings
	return nil
}

func (r *fakeMatchRepo) ListExpiredPending(_ context.Context, _ repositories.SQLExecutor, cutoff time.Time) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.Status != models.MatchInProgress || m.PendingResult == nil {
			continue
		}
		if m.PendingResult.Status != models.PendingConfirmation {
			continue
		}
		if !m.PendingResult.ReportedAt.Before(cutoff) {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeMatchRepo) LastFinishedEnd(_ context.Context, _ repositories.SQLExecutor, tenantID, tournamentID, teamID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	for _, m := range r.matches {
		if m.TenantID != tenantID || m.TournamentID != tournamentID {
			continue
		}
		if m.Status != models.MatchFinished && m.Status != models.MatchWalkover {
			continue
		}
		if !m.HasTeam(teamID) || m.FinishedAt == nil {
			continue
		}
		if last == nil || m.FinishedAt.After(*last) {
			last = m.FinishedAt
		}
	}
	return last, nil
}

type fakeSetResultRepo struct {
	sets map[uuid.UUID][]models.SetScore
}

func newFakeSetResultRepo() *fakeSetResultRepo {
	return &fakeSetResultRepo{sets: make(map[uuid.UUID][]models.SetScore)}
}

func (r *fakeSetResultRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, tenantID, matchID uuid.UUID) ([]models.SetResult, error) {
	out := make([]models.SetResult, 0, len(r.sets[matchID]))
	for _, s := range r.sets[matchID] {
		out = append(out, models.SetResult{TenantID: tenantID, MatchID: matchID, SetScore: s})
	}
	return out, nil
}

func (r *fakeSetResultRepo) ListByMatches(ctx context.Context, q repositories.SQLExecutor, tenantID uuid.UUID, matchIDs []uuid.UUID) (map[uuid.UUID][]models.SetResult, error) {
	out := make(map[uuid.UUID][]models.SetResult)
	for _, id := range matchIDs {
		sets, err := r.ListByMatch(ctx, q, tenantID, id)
		if err != nil {
			return nil, err
		}
		if len(sets) > 0 {
			out[id] = sets
		}
	}
	return out, nil
}

func (r *fakeSetResultRepo) ReplaceForMatch(_ context.Context, _ repositories.SQLExecutor, _, matchID uuid.UUID, sets []models.SetScore) error {
	r.sets[matchID] = append([]models.SetScore{}, sets...)
	return nil
}

func (r *fakeSetResultRepo) DeleteByMatch(_ context.Context, _ repositories.SQLExecutor, _, matchID uuid.UUID) error {
	delete(r.sets, matchID)
	return nil
}

type fakeIncidentRepo struct {
	incidents map[uuid.UUID]*models.Incident
}

func newFakeIncidentRepo() *fakeIncidentRepo {
	return &fakeIncidentRepo{incidents: make(map[uuid.UUID]*models.Incident)}
}

func (r *fakeIncidentRepo) Create(_ context.Context, _ repositories.SQLExecutor, incident *models.Incident) error {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	incident.CreatedAt = time.Now().UTC()
	copied := *incident
	r.incidents[incident.ID] = &copied
	return nil
}

func (r *fakeIncidentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error) {
	i, ok := r.incidents[id]
	if !ok || i.TenantID != tenantID {
		return nil, repositories.ErrIncidentNotFound
	}
	copied := *i
	return &copied, nil
}

func (r *fakeIncidentRepo) GetByIDForUpdate(ctx context.Context, q repositories.SQLExecutor, tenantID, id uuid.UUID) (*models.Incident, error) {
	return r.GetByID(ctx, q, tenantID, id)
}

func (r *fakeIncidentRepo) ListByTenant(_ context.Context, _ repositories.SQLExecutor, tenantID uuid.UUID, onlyOpen bool) ([]*models.Incident, error) {
	out := make([]*models.Incident, 0)
	for _, i := range r.incidents {
		if i.TenantID != tenantID {
			continue
		}
		if onlyOpen && i.Resolved() {
			continue
		}
		copied := *i
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeIncidentRepo) MarkResolved(_ context.Context, _ repositories.SQLExecutor, tenantID, id uuid.UUID, by uuid.UUID, at time.Time, notes string) error {
	i, ok := r.incidents[id]
	if !ok || i.TenantID != tenantID || i.Resolved() {
		return repositories.ErrIncidentNotFound
	}
	i.ResolvedBy = &by
	i.ResolvedAt = &at
	i.ResolutionNotes = &notes
	return nil
}

type fakeMemberRepo struct {
	teams  map[uuid.UUID][]uuid.UUID // team -> member tenant user ids
	admins []uuid.UUID
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{teams: make(map[uuid.UUID][]uuid.UUID)}
}

func (r *fakeMemberRepo) IsTeamMember(_ context.Context, _ repositories.SQLExecutor, _, teamID, tenantUserID uuid.UUID) (bool, error) {
	for _, id := range r.teams[teamID] {
		if id == tenantUserID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMemberRepo) ListTeamMemberIDs(_ context.Context, _ repositories.SQLExecutor, _, teamID uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID{}, r.teams[teamID]...), nil
}

func (r *fakeMemberRepo) ListAdminIDs(_ context.Context, _ repositories.SQLExecutor, _ uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID{}, r.admins...), nil
}

type fakeWarningRepo struct {
	warnings []*models.Warning
}

func (r *fakeWarningRepo) Create(_ context.Context, _ repositories.SQLExecutor, warning *models.Warning) error {
	if warning.ID == uuid.Nil {
		warning.ID = uuid.New()
	}
	copied := *warning
	r.warnings = append(r.warnings, &copied)
	return nil
}

func (r *fakeWarningRepo) ListByTeam(_ context.Context, _ repositories.SQLExecutor, tenantID, teamID uuid.UUID) ([]models.Warning, error) {
	out := make([]models.Warning, 0)
	for _, w := range r.warnings {
		if w.TenantID == tenantID && w.TeamID == teamID {
			out = append(out, *w)
		}
	}
	return out, nil
}

type fakeIdempotencyRepo struct {
	records map[string]*models.IdempotencyRecord
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*models.IdempotencyRecord)}
}

func (r *fakeIdempotencyRepo) Get(_ context.Context, _ repositories.SQLExecutor, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	rec, ok := r.records[tenantID.String()+"/"+key]
	if !ok || rec.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return rec, nil
}

func (r *fakeIdempotencyRepo) Save(_ context.Context, _ repositories.SQLExecutor, tenantID uuid.UUID, key string, response json.RawMessage, expiresAt time.Time) error {
	k := tenantID.String() + "/" + key
	if _, ok := r.records[k]; ok {
		return nil // first writer wins
	}
	r.records[k] = &models.IdempotencyRecord{
		TenantID:  tenantID,
		Key:       key,
		Response:  response,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *fakeIdempotencyRepo) DeleteExpired(_ context.Context, _ repositories.SQLExecutor, now time.Time) (int64, error) {
	deleted := int64(0)
	for k, rec := range r.records {
		if !rec.ExpiresAt.After(now) {
			delete(r.records, k)
			deleted++
		}
	}
	return deleted, nil
}

type fakePublisher struct {
	notifications []events.Notification
	audits        []events.AuditRecord
}

func (p *fakePublisher) Notify(_ context.Context, n events.Notification) error {
	p.notifications = append(p.notifications, n)
	return nil
}

func (p *fakePublisher) Audit(_ context.Context, a events.AuditRecord) error {
	p.audits = append(p.audits, a)
	return nil
}

type broadcastCall struct {
	TournamentID uuid.UUID
	Type         string
}

type fakeBroadcaster struct {
	calls []broadcastCall
}

func (b *fakeBroadcaster) BroadcastTournament(tournamentID uuid.UUID, msgType string, _ interface{}) {
	b.calls = append(b.calls, broadcastCall{TournamentID: tournamentID, Type: msgType})
}
