package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// WakeHandler is the background context's entry point. The Timer Scheduler
// invokes it at interval edges; it only touches the Snapshot Store, the
// enforcer and the scheduler, never the foreground history.
type WakeHandler struct {
	snapshots domain.SnapshotStore
	enforcer  domain.RestrictionEnforcer
	scheduler domain.TimerScheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewWakeHandler creates the background wake entry points.
func NewWakeHandler(
	snapshots domain.SnapshotStore,
	enforcer domain.RestrictionEnforcer,
	scheduler domain.TimerScheduler,
	logger *zap.Logger,
) *WakeHandler {
	return &WakeHandler{
		snapshots: snapshots,
		enforcer:  enforcer,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (h *WakeHandler) WithClock(now func() time.Time) *WakeHandler {
	h.now = now
	return h
}

// OnIntervalStart handles the start edge of a registration. Only the
// schedule role starts anything; one-shot roles are armed already running.
func (h *WakeHandler) OnIntervalStart(ctx context.Context, activity string) error {
	name, err := domain.ParseActivityName(activity)
	if err != nil {
		return err
	}
	log := h.logger.With(zap.Stringer("activity", name))
	if name.Role != domain.RoleSchedule {
		log.Debug("interval start ignored for one-shot role")
		return nil
	}
	return h.startScheduled(ctx, name, log)
}

// OnIntervalEnd handles the end edge of a registration.
func (h *WakeHandler) OnIntervalEnd(ctx context.Context, activity string) error {
	name, err := domain.ParseActivityName(activity)
	if err != nil {
		return err
	}
	log := h.logger.With(zap.Stringer("activity", name))
	switch name.Role {
	case domain.RoleBreak:
		return h.endBreak(ctx, name, log)
	default:
		return h.endSession(ctx, name, log)
	}
}

func (h *WakeHandler) startScheduled(ctx context.Context, name domain.ActivityName, log *zap.Logger) error {
	const op = "wake.start"
	snap, err := h.snapshots.GetProfileSnapshot(name.ProfileID)
	if err != nil {
		return domain.Storage(op, err)
	}
	if snap == nil {
		return domain.NotFound(op, "profile snapshot", name.ProfileID)
	}
	now := h.now()
	if !snap.Schedule.IsActive() || !snap.Schedule.Includes(now.Weekday()) {
		log.Info("schedule not due today, skipping", zap.String("weekday", now.Weekday().String()))
		return nil
	}

	slot, err := h.snapshots.ActiveSession()
	if err != nil {
		return domain.Storage(op, err)
	}
	if slot != nil && slot.EndTime == nil {
		log.Info("session already active, skipping", zap.String("session", slot.ID))
		return nil
	}

	if err := h.enforcer.Activate(ctx, *snap); err != nil {
		return domain.Enforcement(op, err)
	}
	sess := domain.Session{ID: uuid.NewString(), ProfileID: snap.ID, StartTime: now}
	if err := h.snapshots.SetActiveSession(domain.NewSessionSnapshot(sess)); err != nil {
		if derr := h.enforcer.Deactivate(ctx); derr != nil {
			log.Error("rollback deactivate failed", zap.Error(derr))
		}
		return domain.Storage(op, err)
	}

	log.Info("scheduled session started", zap.String("session", sess.ID))
	return nil
}

func (h *WakeHandler) endSession(ctx context.Context, name domain.ActivityName, log *zap.Logger) error {
	const op = "wake.end"
	slot, err := h.snapshots.ActiveSession()
	if err != nil {
		return domain.Storage(op, err)
	}
	if slot == nil || slot.EndTime != nil || slot.ProfileID != name.ProfileID {
		log.Info("no matching active session, nothing to end")
		return nil
	}

	if err := h.enforcer.Deactivate(ctx); err != nil {
		return domain.Enforcement(op, err)
	}

	now := h.now()
	ended := *slot
	ended.EndTime = &now
	if ended.BreakStartTime != nil && ended.BreakEndTime == nil {
		ended.BreakEndTime = &now
	}
	if err := h.snapshots.AppendCompletedSession(ended); err != nil {
		if aerr := h.reactivate(ctx, slot.ProfileID); aerr != nil {
			log.Error("restore enforcement failed", zap.Error(aerr))
		}
		return domain.Storage(op, err)
	}
	if err := h.snapshots.ClearActiveSession(); err != nil {
		log.Warn("clear active slot failed", zap.Error(err))
	}
	if err := h.scheduler.Cancel(ctx, domain.SessionActivities(name.ProfileID)...); err != nil {
		log.Warn("cancel session wake-ups failed", zap.Error(err))
	}

	sess := ended.Session()
	log.Info("session ended in background",
		zap.String("session", ended.ID),
		zap.Duration("elapsed", sess.Elapsed(now)))
	return nil
}

func (h *WakeHandler) endBreak(ctx context.Context, name domain.ActivityName, log *zap.Logger) error {
	const op = "wake.break_end"
	slot, err := h.snapshots.ActiveSession()
	if err != nil {
		return domain.Storage(op, err)
	}
	if slot == nil || slot.ProfileID != name.ProfileID || slot.BreakStartTime == nil || slot.BreakEndTime != nil {
		log.Info("no break in progress")
		return nil
	}

	if err := h.reactivate(ctx, slot.ProfileID); err != nil {
		return err
	}
	now := h.now()
	updated := *slot
	updated.BreakEndTime = &now
	if err := h.snapshots.SetActiveSession(updated); err != nil {
		return domain.Storage(op, err)
	}

	log.Info("break ended in background", zap.String("session", slot.ID))
	return nil
}

func (h *WakeHandler) reactivate(ctx context.Context, profileID string) error {
	const op = "wake.reactivate"
	snap, err := h.snapshots.GetProfileSnapshot(profileID)
	if err != nil {
		return domain.Storage(op, err)
	}
	if snap == nil {
		return domain.NotFound(op, "profile snapshot", profileID)
	}
	if err := h.enforcer.Activate(ctx, *snap); err != nil {
		return domain.Enforcement(op, err)
	}
	return nil
}
