package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ToggleBreak starts or ends the single break a session allows. When no
// break is available it logs and does nothing.
func (c *Coordinator) ToggleBreak(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	switch {
	case c.active == nil:
		c.logger.Info("break ignored, no active session")
		return nil
	case !c.activeProfile.Break.Enabled:
		c.logger.Info("break ignored, disabled for profile", zap.String("profile", c.activeProfile.ID))
		return nil
	case c.active.IsOnBreak():
		return c.endBreakLocked(ctx)
	case c.active.BreakUsed():
		c.logger.Info("break ignored, already used this session", zap.String("session", c.active.ID))
		return nil
	}
	return c.startBreakLocked(ctx)
}

func (c *Coordinator) breakDuration() time.Duration {
	if c.activeProfile.Break.Duration > 0 {
		return c.activeProfile.Break.Duration
	}
	return c.opts.BreakDuration
}

func (c *Coordinator) startBreakLocked(ctx context.Context) error {
	const op = "coordinator.break_start"
	if err := c.enforcer.Deactivate(ctx); err != nil {
		return c.fail(domain.Enforcement(op, err))
	}

	sess := *c.active
	now := c.now()
	sess.BreakStartTime = &now
	if err := c.sessions.UpsertSession(ctx, sess); err != nil {
		if aerr := c.enforcer.Activate(ctx, domain.NewProfileSnapshot(*c.activeProfile)); aerr != nil {
			c.logger.Error("restore enforcement failed", zap.Error(aerr))
		}
		return c.fail(domain.Storage(op, err))
	}
	c.active = &sess
	c.writeActiveSlot(sess)

	name := domain.NewActivityName(domain.RoleBreak, sess.ProfileID)
	if err := c.scheduler.Cancel(ctx, name); err != nil {
		c.logger.Warn("cancel break wake-up failed", zap.Error(err))
	}
	dur := c.breakDuration()
	if err := c.scheduler.ScheduleOnce(ctx, name, dur); err != nil {
		c.logger.Error("schedule break end failed", zap.Stringer("activity", name), zap.Error(err))
	}

	c.logger.Info("break started", zap.String("session", sess.ID), zap.Duration("duration", dur))
	c.showStatus(ctx)
	c.emit(Event{Kind: EventBreakStarted, Session: &sess, Profile: c.activeProfile})
	return nil
}

func (c *Coordinator) endBreakLocked(ctx context.Context) error {
	const op = "coordinator.break_end"
	if err := c.enforcer.Activate(ctx, domain.NewProfileSnapshot(*c.activeProfile)); err != nil {
		return c.fail(domain.Enforcement(op, err))
	}

	sess := *c.active
	now := c.now()
	sess.BreakEndTime = &now
	if err := c.sessions.UpsertSession(ctx, sess); err != nil {
		if derr := c.enforcer.Deactivate(ctx); derr != nil {
			c.logger.Error("restore break failed", zap.Error(derr))
		}
		return c.fail(domain.Storage(op, err))
	}
	c.active = &sess
	c.writeActiveSlot(sess)

	if err := c.scheduler.Cancel(ctx, domain.NewActivityName(domain.RoleBreak, sess.ProfileID)); err != nil {
		c.logger.Warn("cancel break wake-up failed", zap.Error(err))
	}

	c.logger.Info("break ended", zap.String("session", sess.ID))
	c.showStatus(ctx)
	c.emit(Event{Kind: EventBreakEnded, Session: &sess, Profile: c.activeProfile})
	return nil
}

func (c *Coordinator) writeActiveSlot(s domain.Session) {
	if err := c.snapshots.SetActiveSession(domain.NewSessionSnapshot(s)); err != nil {
		c.logger.Warn("write active slot failed", zap.String("session", s.ID), zap.Error(err))
	}
}

func (c *Coordinator) showStatus(ctx context.Context) {
	if c.notifier == nil || c.active == nil {
		return
	}
	err := c.notifier.ShowLiveStatus(ctx, domain.LiveStatus{
		SessionID:   c.active.ID,
		ProfileID:   c.activeProfile.ID,
		ProfileName: c.activeProfile.Name,
		StartedAt:   c.active.StartTime,
		OnBreak:     c.active.IsOnBreak(),
	})
	if err != nil {
		c.logger.Warn("show live status failed", zap.Error(err))
	}
}
