package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ScheduleID is the schedule-driven strategy.
const ScheduleID = "schedule"

// Schedule hands sessions to the Timer Scheduler. Start only arms the daily
// registration; the background wake creates and ends the sessions.
type Schedule struct {
	deps *Deps
}

// NewSchedule creates the schedule strategy.
func NewSchedule(d *Deps) *Schedule {
	return &Schedule{deps: d}
}

func (s *Schedule) ID() string   { return ScheduleID }
func (s *Schedule) Name() string { return "Schedule" }

func (s *Schedule) Start(ctx context.Context, req StartRequest) (Outcome, error) {
	p := req.Profile
	if !p.HasActiveSchedule() {
		return Outcome{}, domain.Refused("schedule.start", "profile has no active schedule")
	}
	if err := Arm(ctx, s.deps.Scheduler, p); err != nil {
		return Outcome{}, domain.Enforcement("schedule.start", err)
	}
	s.deps.publish(p, nil)
	s.deps.log().Info("schedule armed",
		zap.String("profile", p.ID),
		zap.Stringer("start", p.Schedule.Start),
		zap.Stringer("end", p.Schedule.End))
	return needsUI(ViewScheduleArmed, p.ID,
		fmt.Sprintf("%s will block %s to %s", p.Name, p.Schedule.Start, p.Schedule.End)), nil
}

func (s *Schedule) Stop(ctx context.Context, session domain.Session, profile domain.Profile) (Outcome, error) {
	return s.deps.finish(ctx, "schedule.stop", session, profile)
}

// Arm replaces the profile's daily schedule registration.
func Arm(ctx context.Context, sched domain.TimerScheduler, p domain.Profile) error {
	name := domain.NewActivityName(domain.RoleSchedule, p.ID)
	if err := sched.Cancel(ctx, name); err != nil {
		return fmt.Errorf("cancel %s: %w", name, err)
	}
	if err := sched.ScheduleDaily(ctx, name, *p.Schedule.Start, *p.Schedule.End); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

var _ Strategy = (*Schedule)(nil)
