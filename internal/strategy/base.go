package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Deps are the collaborators shared by every strategy.
type Deps struct {
	Sessions  domain.SessionRepository
	Snapshots domain.SnapshotStore
	Scheduler domain.TimerScheduler
	Enforcer  domain.RestrictionEnforcer
	Tokens    domain.TokenReader
	Logger    *zap.Logger
	Now       func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// begin activates enforcement, persists a new session and publishes the
// snapshots. A positive timer arms a one-shot strategy-timer wake-up.
// Nothing is left half-applied: a failed save rolls enforcement back.
func (d *Deps) begin(ctx context.Context, op string, req StartRequest, timer time.Duration) (Outcome, error) {
	p := req.Profile

	active, err := d.Sessions.ActiveSession(ctx)
	if err != nil {
		return Outcome{}, domain.Storage(op, err)
	}
	if active != nil {
		return Outcome{}, domain.Refused(op, "a session is already active")
	}

	if err := d.Enforcer.Activate(ctx, domain.NewProfileSnapshot(p)); err != nil {
		return Outcome{}, domain.Enforcement(op, err)
	}

	sess := domain.Session{
		ID:           uuid.NewString(),
		ProfileID:    p.ID,
		StartTime:    d.now(),
		ForceStarted: req.ForceStarted,
	}
	if err := d.Sessions.SaveSession(ctx, sess); err != nil {
		if derr := d.Enforcer.Deactivate(ctx); derr != nil {
			d.log().Error("rollback deactivate failed", zap.String("profile", p.ID), zap.Error(derr))
		}
		return Outcome{}, domain.Storage(op, err)
	}

	d.publish(p, &sess)

	if timer > 0 {
		d.arm(ctx, domain.NewActivityName(domain.RoleStrategyTimer, p.ID), timer)
	}

	d.log().Info("session started",
		zap.String("session", sess.ID),
		zap.String("profile", p.ID),
		zap.Duration("timer", timer))
	return started(sess, p), nil
}

// finish deactivates enforcement and closes the session. Enforcement is
// restored if the end time could not be persisted.
func (d *Deps) finish(ctx context.Context, op string, sess domain.Session, p domain.Profile) (Outcome, error) {
	if err := d.Enforcer.Deactivate(ctx); err != nil {
		return Outcome{}, domain.Enforcement(op, err)
	}

	now := d.now()
	if sess.EndTime == nil {
		sess.EndTime = &now
	}
	if sess.IsOnBreak() {
		sess.BreakEndTime = &now
	}
	if err := d.Sessions.UpsertSession(ctx, sess); err != nil {
		if aerr := d.Enforcer.Activate(ctx, domain.NewProfileSnapshot(p)); aerr != nil {
			d.log().Error("restore enforcement failed", zap.String("profile", p.ID), zap.Error(aerr))
		}
		return Outcome{}, domain.Storage(op, err)
	}

	d.publish(p, nil)
	if slot, err := d.Snapshots.ActiveSession(); err != nil {
		d.log().Warn("read active slot failed", zap.Error(err))
	} else if slot != nil && slot.ID == sess.ID {
		if err := d.Snapshots.ClearActiveSession(); err != nil {
			d.log().Warn("clear active slot failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}

	if err := d.Scheduler.Cancel(ctx, domain.SessionActivities(p.ID)...); err != nil {
		d.log().Warn("cancel session wake-ups failed", zap.String("profile", p.ID), zap.Error(err))
	}

	d.log().Info("session ended",
		zap.String("session", sess.ID),
		zap.String("profile", p.ID),
		zap.Duration("elapsed", sess.Elapsed(now)))
	return ended(sess, p), nil
}

// publish refreshes the profile snapshot and, for a live session, the
// active slot. Failures are logged: the local history is authoritative.
func (d *Deps) publish(p domain.Profile, sess *domain.Session) {
	if err := d.Snapshots.SetProfileSnapshot(domain.NewProfileSnapshot(p)); err != nil {
		d.log().Warn("write profile snapshot failed", zap.String("profile", p.ID), zap.Error(err))
	}
	if sess == nil {
		return
	}
	if err := d.Snapshots.SetActiveSession(domain.NewSessionSnapshot(*sess)); err != nil {
		d.log().Warn("write active slot failed", zap.String("session", sess.ID), zap.Error(err))
	}
}

// arm replaces a one-shot registration. Failures are logged and the
// session keeps running.
func (d *Deps) arm(ctx context.Context, name domain.ActivityName, dur time.Duration) {
	if err := d.Scheduler.Cancel(ctx, name); err != nil {
		d.log().Warn("cancel before schedule failed", zap.Stringer("activity", name), zap.Error(err))
	}
	if err := d.Scheduler.ScheduleOnce(ctx, name, dur); err != nil {
		d.log().Error("schedule wake-up failed",
			zap.Stringer("activity", name),
			zap.Duration("duration", dur),
			zap.Error(err))
	}
}

// verifyToken performs one scan. An empty expected id accepts any token of the kind.
func (d *Deps) verifyToken(ctx context.Context, op string, kind domain.TokenKind, expected string) error {
	if d.Tokens == nil {
		return domain.Refused(op, fmt.Sprintf("no %s reader available", kind))
	}
	read, err := d.Tokens.ReadToken(ctx, kind)
	if err != nil {
		return &domain.Error{Kind: domain.ErrPolicyRefusal, Op: op, Message: fmt.Sprintf("%s scan failed", kind), Err: err}
	}
	if read.Kind != "" && read.Kind != kind {
		return domain.Refused(op, fmt.Sprintf("expected a %s token, got %s", kind, read.Kind))
	}
	if expected != "" && read.ID != expected {
		return domain.Refused(op, "token does not unlock this profile")
	}
	return nil
}

type timerData struct {
	DurationMinutes int `json:"duration_minutes"`
}

// ConfiguredDuration reads the timer duration from the profile's strategy
// data. Zero means none is configured.
func ConfiguredDuration(p domain.Profile) (time.Duration, error) {
	if len(p.StrategyData) == 0 {
		return 0, nil
	}
	var td timerData
	if err := json.Unmarshal(p.StrategyData, &td); err != nil {
		return 0, domain.Validation("strategy.data", "strategy_data", fmt.Sprintf("invalid strategy data: %v", err))
	}
	if td.DurationMinutes == 0 {
		return 0, nil
	}
	if err := domain.ValidateDurationMinutes("strategy.data", td.DurationMinutes); err != nil {
		return 0, err
	}
	return time.Duration(td.DurationMinutes) * time.Minute, nil
}

// TimerData encodes a duration as strategy data.
func TimerData(minutes int) json.RawMessage {
	b, _ := json.Marshal(timerData{DurationMinutes: minutes})
	return b
}

func (d *Deps) duration(req StartRequest) (time.Duration, error) {
	if req.Duration > 0 {
		return req.Duration, nil
	}
	return ConfiguredDuration(req.Profile)
}
