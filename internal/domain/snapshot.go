package domain

import (
	"encoding/json"
	"time"
)

// ProfileSnapshot is the denormalized copy of a Profile shared with the
// background context. It is always written as one whole record.
type ProfileSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Selection Selection `json:"selection"`

	AllowMode              bool `json:"allow_mode"`
	AllowModeDomains       bool `json:"allow_mode_domains"`
	Strict                 bool `json:"strict"`
	DomainFilterEnabled    bool `json:"domain_filter_enabled"`
	DisableBackgroundStops bool `json:"disable_background_stops"`

	Schedule      *Schedule       `json:"schedule,omitempty"`
	StrategyID    string          `json:"strategy_id,omitempty"`
	StrategyData  json.RawMessage `json:"strategy_data,omitempty"`
	UnlockTokenID string          `json:"unlock_token_id,omitempty"`
	Reminder      Reminder        `json:"reminder"`
	Break         BreakConfig     `json:"break"`
	Order         int             `json:"order"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewProfileSnapshot projects a profile into its shareable form.
func NewProfileSnapshot(p Profile) ProfileSnapshot {
	return ProfileSnapshot{
		ID:                     p.ID,
		Name:                   p.Name,
		Selection:              copySelection(p.Selection),
		AllowMode:              p.AllowMode,
		AllowModeDomains:       p.AllowModeDomains,
		Strict:                 p.Strict,
		DomainFilterEnabled:    p.DomainFilterEnabled,
		DisableBackgroundStops: p.DisableBackgroundStops,
		Schedule:               copySchedule(p.Schedule),
		StrategyID:             p.StrategyID,
		StrategyData:           append(json.RawMessage(nil), p.StrategyData...),
		UnlockTokenID:          p.UnlockTokenID,
		Reminder:               p.Reminder,
		Break:                  p.Break,
		Order:                  p.Order,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

// Profile rebuilds the profile the snapshot was taken from.
func (s ProfileSnapshot) Profile() Profile {
	return Profile{
		ID:                     s.ID,
		Name:                   s.Name,
		Selection:              copySelection(s.Selection),
		AllowMode:              s.AllowMode,
		AllowModeDomains:       s.AllowModeDomains,
		Strict:                 s.Strict,
		DomainFilterEnabled:    s.DomainFilterEnabled,
		DisableBackgroundStops: s.DisableBackgroundStops,
		Schedule:               copySchedule(s.Schedule),
		StrategyID:             s.StrategyID,
		StrategyData:           append(json.RawMessage(nil), s.StrategyData...),
		UnlockTokenID:          s.UnlockTokenID,
		Reminder:               s.Reminder,
		Break:                  s.Break,
		Order:                  s.Order,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

// SessionSnapshot is the shareable projection of a Session.
type SessionSnapshot struct {
	ID             string     `json:"id"`
	ProfileID      string     `json:"profile_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	BreakStartTime *time.Time `json:"break_start_time,omitempty"`
	BreakEndTime   *time.Time `json:"break_end_time,omitempty"`
	ForceStarted   bool       `json:"force_started"`
}

// NewSessionSnapshot projects a session.
func NewSessionSnapshot(s Session) SessionSnapshot {
	return SessionSnapshot{
		ID:             s.ID,
		ProfileID:      s.ProfileID,
		StartTime:      s.StartTime,
		EndTime:        copyTime(s.EndTime),
		BreakStartTime: copyTime(s.BreakStartTime),
		BreakEndTime:   copyTime(s.BreakEndTime),
		ForceStarted:   s.ForceStarted,
	}
}

// Session rebuilds the session record.
func (s SessionSnapshot) Session() Session {
	return Session{
		ID:             s.ID,
		ProfileID:      s.ProfileID,
		StartTime:      s.StartTime,
		EndTime:        copyTime(s.EndTime),
		BreakStartTime: copyTime(s.BreakStartTime),
		BreakEndTime:   copyTime(s.BreakEndTime),
		ForceStarted:   s.ForceStarted,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copySelection(s Selection) Selection {
	return Selection{
		Apps:       append([]string(nil), s.Apps...),
		Categories: append([]string(nil), s.Categories...),
		Domains:    append([]string(nil), s.Domains...),
	}
}

func copySchedule(s *Schedule) *Schedule {
	if s == nil {
		return nil
	}
	c := &Schedule{
		Days:      append([]time.Weekday(nil), s.Days...),
		UpdatedAt: s.UpdatedAt,
	}
	if s.Start != nil {
		v := *s.Start
		c.Start = &v
	}
	if s.End != nil {
		v := *s.End
		c.End = &v
	}
	return c
}
