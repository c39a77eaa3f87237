// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"time"
)

// Selection lists what a profile acts on.
type Selection struct {
	Apps       []string `json:"apps,omitempty" yaml:"apps"`
	Categories []string `json:"categories,omitempty" yaml:"categories"`
	Domains    []string `json:"domains,omitempty" yaml:"domains"`
}

// Reminder configures the nudge sent after a session starts.
type Reminder struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	After   time.Duration `json:"after" yaml:"after"`
	Message string        `json:"message,omitempty" yaml:"message"`
}

// BreakConfig controls whether a session may be paused and for how long.
type BreakConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Profile is a named restriction configuration.
type Profile struct {
	ID        string    `json:"id" yaml:"id" validate:"omitempty,uuid"`
	Name      string    `json:"name" yaml:"name" validate:"required,max=120"`
	Selection Selection `json:"selection" yaml:"selection"`

	AllowMode              bool `json:"allow_mode" yaml:"allow_mode"`                 // apps: block everything except the selection
	AllowModeDomains       bool `json:"allow_mode_domains" yaml:"allow_mode_domains"` // domains: same inversion
	Strict                 bool `json:"strict" yaml:"strict"`                         // no uninstall while active
	DomainFilterEnabled    bool `json:"domain_filter_enabled" yaml:"domain_filter_enabled"`
	DisableBackgroundStops bool `json:"disable_background_stops" yaml:"disable_background_stops"`

	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule"`

	StrategyID    string          `json:"strategy_id,omitempty" yaml:"strategy"`
	StrategyData  json.RawMessage `json:"strategy_data,omitempty" yaml:"-"`
	UnlockTokenID string          `json:"unlock_token_id,omitempty" yaml:"unlock_token_id"`

	Reminder Reminder    `json:"reminder" yaml:"reminder"`
	Break    BreakConfig `json:"break" yaml:"break"`

	Order     int       `json:"order" yaml:"order"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// HasActiveSchedule reports whether the profile carries a usable daily schedule.
func (p *Profile) HasActiveSchedule() bool {
	return p.Schedule != nil && p.Schedule.IsActive()
}

// Session is one activation record of a Profile.
// A nil EndTime means the session is still active.
type Session struct {
	ID             string     `json:"id"`
	ProfileID      string     `json:"profile_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	BreakStartTime *time.Time `json:"break_start_time,omitempty"`
	BreakEndTime   *time.Time `json:"break_end_time,omitempty"`
	ForceStarted   bool       `json:"force_started"`
}

// IsActive returns true while the session has no end time.
func (s *Session) IsActive() bool {
	return s.EndTime == nil
}

// IsOnBreak returns true between break start and break end.
func (s *Session) IsOnBreak() bool {
	return s.BreakStartTime != nil && s.BreakEndTime == nil
}

// BreakUsed returns true once a break has started and ended.
func (s *Session) BreakUsed() bool {
	return s.BreakStartTime != nil && s.BreakEndTime != nil
}

// Elapsed returns the enforced time so far, excluding any break.
func (s *Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	elapsed := end.Sub(s.StartTime)
	if s.BreakStartTime != nil {
		breakEnd := end
		if s.BreakEndTime != nil {
			breakEnd = *s.BreakEndTime
		}
		elapsed -= breakEnd.Sub(*s.BreakStartTime)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// EmergencyQuota tracks the strategy-bypassing overrides left in the current period.
type EmergencyQuota struct {
	Remaining int       `json:"remaining"`
	LastReset time.Time `json:"last_reset"`
}

// TokenKind identifies the physical token technology.
type TokenKind string

const (
	TokenNFC TokenKind = "nfc"
	TokenQR  TokenKind = "qr"
)

// TokenRead is the result of a single physical token scan.
type TokenRead struct {
	ID      string
	Payload string
	Kind    TokenKind
	ReadAt  time.Time
}

// EnforcementResult captures what happened during a single enforcement sweep.
type EnforcementResult struct {
	ProfileID  string
	KilledPIDs []int
	Domains    []string
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// Reminder delivery request queued for the presentation surface.
type PendingReminder struct {
	ProfileID string    `json:"profile_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
}

// LiveStatus is the ambient "session running" record shown by presentation surfaces.
type LiveStatus struct {
	SessionID   string    `json:"session_id"`
	ProfileID   string    `json:"profile_id"`
	ProfileName string    `json:"profile_name"`
	StartedAt   time.Time `json:"started_at"`
	OnBreak     bool      `json:"on_break"`
}
