// Package strategy implements the unlock strategies that decide how a
// restriction session is started and stopped.
package strategy

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// OutcomeKind tags a strategy result.
type OutcomeKind int

const (
	// Started means a new session was persisted and enforcement is on.
	Started OutcomeKind = iota + 1
	// Ended means the session was closed and enforcement is off.
	Ended
	// NeedsCustomUI means the caller must collect more input (or show a
	// confirmation) before the transition can complete.
	NeedsCustomUI
)

func (k OutcomeKind) String() string {
	switch k {
	case Started:
		return "started"
	case Ended:
		return "ended"
	case NeedsCustomUI:
		return "needs-custom-ui"
	}
	return "unknown"
}

// View names a custom UI flow.
type View string

const (
	ViewDurationPicker View = "duration-picker"
	ViewScheduleArmed  View = "schedule-armed"
)

// CustomUI describes the flow a strategy asks the presentation layer to run.
type CustomUI struct {
	View      View
	ProfileID string
	SessionID string
	Message   string
}

// Outcome is the tagged result of Start and Stop.
// Session is set for Started and Ended, Profile for Ended, UI for NeedsCustomUI.
type Outcome struct {
	Kind    OutcomeKind
	Session *domain.Session
	Profile *domain.Profile
	UI      *CustomUI
}

// StartRequest carries what a strategy needs to start a session.
// Duration overrides the profile's configured timer duration when non-zero.
type StartRequest struct {
	Profile      domain.Profile
	ForceStarted bool
	Duration     time.Duration
}

// Strategy governs how sessions of a profile start and stop.
type Strategy interface {
	ID() string
	Name() string
	Start(ctx context.Context, req StartRequest) (Outcome, error)
	Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error)
}

func started(s domain.Session, p domain.Profile) Outcome {
	return Outcome{Kind: Started, Session: &s, Profile: &p}
}

func ended(s domain.Session, p domain.Profile) Outcome {
	return Outcome{Kind: Ended, Session: &s, Profile: &p}
}

func needsUI(view View, profileID, msg string) Outcome {
	return Outcome{Kind: NeedsCustomUI, UI: &CustomUI{View: view, ProfileID: profileID, Message: msg}}
}
