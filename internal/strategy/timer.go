package strategy

import (
	"context"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// TimerID is the timer-only strategy.
const TimerID = "timer"

// Timer starts unconditionally and stops itself through a strategy-timer
// wake-up. It may also be stopped by hand.
type Timer struct {
	deps *Deps
}

// NewTimer creates the timer strategy.
func NewTimer(d *Deps) *Timer {
	return &Timer{deps: d}
}

func (t *Timer) ID() string   { return TimerID }
func (t *Timer) Name() string { return "Timer" }

func (t *Timer) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	dur, err := t.deps.duration(req)
	if err != nil {
		return Outcome{}, err
	}
	if dur == 0 {
		return needsUI(ViewDurationPicker, req.Profile.ID, "choose how long to block"), nil
	}
	return t.deps.begin(ctx, "timer.start", req, dur)
}

func (t *Timer) Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error) {
	return t.deps.finish(ctx, "timer.stop", session, profile)
}

var _ Strategy = (*Timer)(nil)
