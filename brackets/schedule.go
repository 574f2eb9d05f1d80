package brackets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/models"
)

// FixtureConfig carries the recognized fixture generation options. Zero
// values mean "use the default"; ApplyDefaults fills them in and Validate
// enforces the documented ranges.
type FixtureConfig struct {
	GroupsCount          int    `json:"groups_count"`
	TeamsPerGroup        int    `json:"teams_per_group"`
	TeamsAdvancePerGroup int    `json:"teams_advance_per_group"`
	MatchDurationMinutes int    `json:"match_duration_minutes"`
	MatchesPerDay        int    `json:"matches_per_day"`
	StartTime            string `json:"start_time"`
	EndTime              string `json:"end_time"`
	RestBetweenMatches   int    `json:"rest_between_matches"`
}

func DefaultFixtureConfig() FixtureConfig {
	return FixtureConfig{
		TeamsPerGroup:        4,
		TeamsAdvancePerGroup: 2,
		MatchDurationMinutes: 60,
		MatchesPerDay:        8,
		StartTime:            "09:00",
		EndTime:              "22:00",
		RestBetweenMatches:   15,
	}
}

func (c *FixtureConfig) ApplyDefaults() {
	def := DefaultFixtureConfig()
	if c.TeamsPerGroup == 0 {
		c.TeamsPerGroup = def.TeamsPerGroup
	}
	if c.TeamsAdvancePerGroup == 0 {
		c.TeamsAdvancePerGroup = def.TeamsAdvancePerGroup
	}
	if c.MatchDurationMinutes == 0 {
		c.MatchDurationMinutes = def.MatchDurationMinutes
	}
	if c.MatchesPerDay == 0 {
		c.MatchesPerDay = def.MatchesPerDay
	}
	if c.StartTime == "" {
		c.StartTime = def.StartTime
	}
	if c.EndTime == "" {
		c.EndTime = def.EndTime
	}
	if c.RestBetweenMatches == 0 {
		c.RestBetweenMatches = def.RestBetweenMatches
	}
}

func (c *FixtureConfig) Validate() error {
	if c.GroupsCount < 0 {
		return fmt.Errorf("groups_count must not be negative")
	}
	if c.TeamsPerGroup < 3 || c.TeamsPerGroup > 8 {
		return fmt.Errorf("teams_per_group must be between 3 and 8, got %d", c.TeamsPerGroup)
	}
	if c.TeamsAdvancePerGroup < 1 || c.TeamsAdvancePerGroup > 4 {
		return fmt.Errorf("teams_advance_per_group must be between 1 and 4, got %d", c.TeamsAdvancePerGroup)
	}
	if c.MatchDurationMinutes < 30 || c.MatchDurationMinutes > 180 {
		return fmt.Errorf("match_duration_minutes must be between 30 and 180, got %d", c.MatchDurationMinutes)
	}
	if c.MatchesPerDay < 1 || c.MatchesPerDay > 20 {
		return fmt.Errorf("matches_per_day must be between 1 and 20, got %d", c.MatchesPerDay)
	}
	if c.RestBetweenMatches < 0 || c.RestBetweenMatches > 60 {
		return fmt.Errorf("rest_between_matches must be between 0 and 60, got %d", c.RestBetweenMatches)
	}
	start, err := parseClock(c.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := parseClock(c.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if end-start < c.slotDuration() {
		return fmt.Errorf("day window %s-%s cannot fit a single %d minute slot", c.StartTime, c.EndTime, c.MatchDurationMinutes+c.RestBetweenMatches)
	}
	return nil
}

// ResolveGroups returns the effective group count: the explicit value, or
// floor(teams / teams_per_group) with a minimum of one.
func (c *FixtureConfig) ResolveGroups(teamCount int) int {
	if c.GroupsCount > 0 {
		return c.GroupsCount
	}
	groups := teamCount / c.TeamsPerGroup
	if groups < 1 {
		groups = 1
	}
	return groups
}

func (c *FixtureConfig) slotDuration() time.Duration {
	return time.Duration(c.MatchDurationMinutes+c.RestBetweenMatches) * time.Minute
}

func (c *FixtureConfig) matchDuration() time.Duration {
	return time.Duration(c.MatchDurationMinutes) * time.Minute
}

func (c *FixtureConfig) rest() time.Duration {
	return time.Duration(c.RestBetweenMatches) * time.Minute
}

// slotsPerDay derives how many slots the day window fits, capped by
// matches_per_day. Validate guarantees at least one.
func (c *FixtureConfig) slotsPerDay() int {
	start, _ := parseClock(c.StartTime)
	end, _ := parseClock(c.EndTime)
	slots := int((end - start) / c.slotDuration())
	if slots > c.MatchesPerDay {
		slots = c.MatchesPerDay
	}
	return slots
}

func parseClock(v string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q, want HH:MM", v)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", v)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Schedule summarises the wall-clock span of a generated fixture.
type Schedule struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
}

type scheduleCursor struct {
	cfg      FixtureConfig
	dayStart time.Duration
	base     time.Time
	day      int
	slot     int
	perDay   int
	lastEnd  map[uuid.UUID]time.Time
}

func newScheduleCursor(startDate time.Time, cfg FixtureConfig) *scheduleCursor {
	dayStart, _ := parseClock(cfg.StartTime)
	base := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	return &scheduleCursor{
		cfg:      cfg,
		dayStart: dayStart,
		base:     base,
		perDay:   cfg.slotsPerDay(),
		lastEnd:  make(map[uuid.UUID]time.Time),
	}
}

func (s *scheduleCursor) slotTime() time.Time {
	return s.base.AddDate(0, 0, s.day).Add(s.dayStart + time.Duration(s.slot)*s.cfg.slotDuration())
}

func (s *scheduleCursor) advance() {
	s.slot++
	if s.slot >= s.perDay {
		s.slot = 0
		s.day++
	}
}

// restSatisfied checks the rest constraint for one team at the candidate
// start time. lastEnd tracks the end of the team's previous match, so the
// tightest legal packing is end + rest.
func (s *scheduleCursor) restSatisfied(teamID *uuid.UUID, candidate time.Time) bool {
	if teamID == nil {
		return true
	}
	end, ok := s.lastEnd[*teamID]
	if !ok {
		return true
	}
	return !candidate.Before(end.Add(s.cfg.rest()))
}

func (s *scheduleCursor) place(m *models.Match) {
	for {
		candidate := s.slotTime()
		if s.restSatisfied(m.Team1ID, candidate) && s.restSatisfied(m.Team2ID, candidate) {
			at := candidate
			m.ScheduledAt = &at
			end := candidate.Add(s.cfg.matchDuration())
			if m.Team1ID != nil {
				s.lastEnd[*m.Team1ID] = end
			}
			if m.Team2ID != nil {
				s.lastEnd[*m.Team2ID] = end
			}
			s.advance()
			return
		}
		// Blocked slot: move to the next slot on the same day first, roll to
		// the next day when the day is exhausted. Terminates because rest is
		// bounded and strictly smaller than the day window.
		s.advance()
	}
}

// ScheduleMatches assigns wall-clock times to the group phase in order, then
// to every playoff match whose two teams are already resolved. One idle day
// separates the phases and the rest bookkeeping is reset across it.
// Unresolved playoff matches keep a nil ScheduledAt; the bracket advancer
// schedules them as their feeders finish.
func ScheduleMatches(groupMatches, playoffMatches []*models.Match, startDate time.Time, cfg FixtureConfig) Schedule {
	cursor := newScheduleCursor(startDate, cfg)

	for _, m := range groupMatches {
		cursor.place(m)
	}

	if len(groupMatches) > 0 {
		lastDay := cursor.day
		if cursor.slot == 0 && lastDay > 0 {
			lastDay-- // the cursor already rolled past the last used day
		}
		cursor.day = lastDay + 2
		cursor.slot = 0
		cursor.lastEnd = make(map[uuid.UUID]time.Time)
	}

	var first, last *time.Time
	note := func(at *time.Time) {
		if at == nil {
			return
		}
		if first == nil || at.Before(*first) {
			first = at
		}
		if last == nil || at.After(*last) {
			last = at
		}
	}

	for _, m := range playoffMatches {
		if m.Team1ID != nil && m.Team2ID != nil {
			cursor.place(m)
		}
	}

	for _, m := range groupMatches {
		note(m.ScheduledAt)
	}
	for _, m := range playoffMatches {
		note(m.ScheduledAt)
	}

	schedule := Schedule{StartDate: startDate}
	if first != nil {
		schedule.StartDate = *first
		schedule.EndDate = *last
		schedule.Days = int(truncateDay(*last).Sub(truncateDay(*first)).Hours()/24) + 1
	}
	return schedule
}

// NextAvailableSlot finds the earliest admissible slot at or after earliest
// that respects the rest constraint against the given previous match ends.
// Used when promoting winners into a downstream playoff match.
func NextAvailableSlot(earliest time.Time, lastEnds []time.Time, cfg FixtureConfig) time.Time {
	minStart := earliest
	for _, end := range lastEnds {
		if r := end.Add(cfg.rest()); r.After(minStart) {
			minStart = r
		}
	}

	cursor := newScheduleCursor(minStart, cfg)
	for {
		candidate := cursor.slotTime()
		if !candidate.Before(minStart) {
			return candidate
		}
		cursor.advance()
	}
}

// SatisfiesRest reports whether a candidate start time keeps the required
// rest after every given previous match end.
func SatisfiesRest(candidate time.Time, lastEnds []time.Time, cfg FixtureConfig) bool {
	for _, end := range lastEnds {
		if candidate.Before(end.Add(cfg.rest())) {
			return false
		}
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
