package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityRole tags what a Timer Scheduler registration is for.
type ActivityRole string

const (
	RoleSchedule      ActivityRole = "schedule"
	RoleBreak         ActivityRole = "break"
	RoleStrategyTimer ActivityRole = "strategy-timer"
)

// SessionRoles are the one-shot roles cancelled whenever a session stops.
// The standing schedule role is never cancelled by a stop.
var SessionRoles = []ActivityRole{RoleBreak, RoleStrategyTimer}

func (r ActivityRole) valid() bool {
	switch r {
	case RoleSchedule, RoleBreak, RoleStrategyTimer:
		return true
	}
	return false
}

// ActivityName identifies a Timer Scheduler registration.
// Encoded as "<role>:<profileID>" so orphaned registrations can be traced back.
type ActivityName struct {
	Role      ActivityRole
	ProfileID string
}

// NewActivityName builds the registration name for a profile and role.
func NewActivityName(role ActivityRole, profileID string) ActivityName {
	return ActivityName{Role: role, ProfileID: profileID}
}

func (n ActivityName) String() string {
	return string(n.Role) + ":" + n.ProfileID
}

// ParseActivityName decodes "<role>:<profileID>".
func ParseActivityName(s string) (ActivityName, error) {
	role, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ActivityName{}, Validation("activity.parse", "activity", fmt.Sprintf("malformed activity name %q", s))
	}
	n := ActivityName{Role: ActivityRole(role), ProfileID: id}
	if !n.Role.valid() {
		return ActivityName{}, Validation("activity.parse", "activity", fmt.Sprintf("unknown activity role %q", role))
	}
	return n, nil
}

// SessionActivities returns the one-shot registration names tied to a profile's sessions.
func SessionActivities(profileID string) []ActivityName {
	names := make([]ActivityName, 0, len(SessionRoles))
	for _, r := range SessionRoles {
		names = append(names, NewActivityName(r, profileID))
	}
	return names
}

// AllActivities returns every registration name a profile can own.
func AllActivities(profileID string) []ActivityName {
	return append(SessionActivities(profileID), NewActivityName(RoleSchedule, profileID))
}

// Automation durations are bounded by what the OS wake-up service accepts.
const (
	MinSessionMinutes = 15
	MaxSessionMinutes = 1440
)

// ValidateDurationMinutes enforces the [15, 1440] minute range.
func ValidateDurationMinutes(op string, minutes int) error {
	if minutes < MinSessionMinutes || minutes > MaxSessionMinutes {
		return Validation(op, "duration_minutes",
			fmt.Sprintf("duration must be between %d and %d minutes, got %d", MinSessionMinutes, MaxSessionMinutes, minutes))
	}
	return nil
}

// OnceWindow computes the [start, end) interval of a one-shot registration.
// An end that would cross midnight is clamped to 23:59:59 of the current day.
func OnceWindow(now time.Time, d time.Duration) (start, end time.Time) {
	start = now
	end = now.Add(d)
	y, m, day := now.Date()
	ey, em, eday := end.Date()
	if ey != y || em != m || eday != day {
		end = time.Date(y, m, day, 23, 59, 59, 0, now.Location())
		if end.Before(start) {
			end = start
		}
	}
	return start, end
}

// InDailyWindow reports whether t falls inside [start, end) on a daily clock.
// Windows with end before start wrap past midnight.
func InDailyWindow(t time.Time, start, end TimeOfDay) bool {
	cur := TimeOfDayOf(t).Minutes()
	s, e := start.Minutes(), end.Minutes()
	if s < e {
		return cur >= s && cur < e
	}
	return cur >= s || cur < e
}
