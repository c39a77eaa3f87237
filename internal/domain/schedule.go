package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant of t on the day of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, ref.Location())
}

// TimeOfDayOf extracts the wall-clock time of an instant.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute()}
}

// MarshalYAML renders the time as "HH:MM".
func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts "HH:MM".
func (t *TimeOfDay) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schedule is a recurring daily restriction window on selected weekdays.
// It is either inactive (no days) or fully specified (start and end present).
type Schedule struct {
	Days      []time.Weekday `json:"days" yaml:"days"`
	Start     *TimeOfDay     `json:"start,omitempty" yaml:"start"`
	End       *TimeOfDay     `json:"end,omitempty" yaml:"end"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"-"`
}

// IsActive reports whether the schedule has days and both bounds.
func (s *Schedule) IsActive() bool {
	return s != nil && len(s.Days) > 0 && s.Start != nil && s.End != nil
}

// Includes reports whether the schedule runs on the given weekday.
func (s *Schedule) Includes(day time.Weekday) bool {
	if s == nil {
		return false
	}
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Validate enforces the inactive-or-complete rule.
func (s *Schedule) Validate() error {
	if s == nil || len(s.Days) == 0 {
		return nil
	}
	if s.Start == nil || s.End == nil {
		return Validation("schedule.validate", "schedule", "an active schedule needs both start and end times")
	}
	if !s.Start.Valid() || !s.End.Valid() {
		return Validation("schedule.validate", "schedule", "schedule times out of range")
	}
	if s.Start.Minutes() == s.End.Minutes() {
		return Validation("schedule.validate", "schedule", "schedule start and end must differ")
	}
	seen := make(map[time.Weekday]bool, len(s.Days))
	for _, d := range s.Days {
		if d < time.Sunday || d > time.Saturday {
			return Validation("schedule.validate", "schedule.days", fmt.Sprintf("invalid weekday %d", d))
		}
		if seen[d] {
			return Validation("schedule.validate", "schedule.days", fmt.Sprintf("duplicate weekday %s", d))
		}
		seen[d] = true
	}
	return nil
}

// Normalize sorts the weekdays.
func (s *Schedule) Normalize() {
	if s == nil {
		return
	}
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i] < s.Days[j] })
}
