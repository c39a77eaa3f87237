package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/test/fixtures"
)

type harness struct {
	deps      *Deps
	history   *fixtures.MemoryHistory
	snapshots *fixtures.MemorySnapshotStore
	scheduler *fixtures.FakeScheduler
	enforcer  *fixtures.FakeEnforcer
	tokens    *fixtures.FakeTokenReader
	clock     *fixtures.Clock
}

func newHarness() *harness {
	h := &harness{
		history:   fixtures.NewMemoryHistory(),
		snapshots: fixtures.NewMemorySnapshotStore(),
		scheduler: fixtures.NewFakeScheduler(),
		enforcer:  &fixtures.FakeEnforcer{},
		tokens:    &fixtures.FakeTokenReader{},
		clock:     fixtures.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	}
	h.deps = &Deps{
		Sessions:  h.history,
		Snapshots: h.snapshots,
		Scheduler: h.scheduler,
		Enforcer:  h.enforcer,
		Tokens:    h.tokens,
		Logger:    zap.NewNop(),
		Now:       h.clock.Now,
	}
	return h
}

func TestRegistry_FallsBackToManual(t *testing.T) {
	r := NewRegistry(newHarness().deps)

	assert.Equal(t, ManualID, r.Get("").ID())
	assert.Equal(t, ManualID, r.Get("does-not-exist").ID())
	assert.Equal(t, "qr-timer", r.Get("qr-timer").ID())
	assert.False(t, r.Has("does-not-exist"))
	assert.Equal(t, []string{"manual", "nfc", "nfc-manual", "nfc-timer", "qr", "qr-manual", "qr-timer", "timer", "schedule"}, r.IDs())
}

func TestManual_StartStop(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := fixtures.NewProfile("focus", ManualID)
	m := NewManual(h.deps)

	out, err := m.Start(ctx, StartRequest{Profile: p})
	require.NoError(t, err)
	require.Equal(t, Started, out.Kind)
	assert.True(t, h.enforcer.IsActive())

	slot, err := h.snapshots.ActiveSession()
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, out.Session.ID, slot.ID)

	snap, err := h.snapshots.GetProfileSnapshot(p.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, p.Selection, snap.Selection)

	h.clock.Advance(30 * time.Minute)
	out, err = m.Stop(ctx, *out.Session, p)
	require.NoError(t, err)
	require.Equal(t, Ended, out.Kind)
	assert.False(t, h.enforcer.IsActive())
	require.NotNil(t, out.Session.EndTime)
	assert.Equal(t, 30*time.Minute, out.Session.EndTime.Sub(out.Session.StartTime))

	slot, _ = h.snapshots.ActiveSession()
	assert.Nil(t, slot)
	assert.ElementsMatch(t, domain.SessionActivities(p.ID), h.scheduler.Cancelled)
	assert.Equal(t, 0, h.history.OpenSessions())
}

func TestBegin_RefusesSecondSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m := NewManual(h.deps)

	_, err := m.Start(ctx, StartRequest{Profile: fixtures.NewProfile("a", ManualID)})
	require.NoError(t, err)

	_, err = m.Start(ctx, StartRequest{Profile: fixtures.NewProfile("b", ManualID)})
	assert.ErrorIs(t, err, domain.ErrPolicyRefusal)
	assert.Equal(t, 1, h.history.OpenSessions())
}

func TestBegin_EnforcerFailureLeavesIdle(t *testing.T) {
	h := newHarness()
	h.enforcer.ActivateErr = errors.New("hosts file locked")

	_, err := NewManual(h.deps).Start(context.Background(), StartRequest{Profile: fixtures.NewProfile("a", ManualID)})

	assert.ErrorIs(t, err, domain.ErrEnforcement)
	assert.Empty(t, h.history.Sessions())
}

func TestBegin_SaveFailureRollsBackEnforcement(t *testing.T) {
	h := newHarness()
	h.history.SaveErr = errors.New("disk full")

	_, err := NewManual(h.deps).Start(context.Background(), StartRequest{Profile: fixtures.NewProfile("a", ManualID)})

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.False(t, h.enforcer.IsActive())
	assert.Equal(t, 1, h.enforcer.Deactivates)
}

func TestFinish_UpsertFailureRestoresEnforcement(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := fixtures.NewProfile("a", ManualID)
	m := NewManual(h.deps)

	out, err := m.Start(ctx, StartRequest{Profile: p})
	require.NoError(t, err)

	h.history.UpsertErr = errors.New("disk full")
	_, err = m.Stop(ctx, *out.Session, p)

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.True(t, h.enforcer.IsActive())
	assert.Equal(t, 1, h.history.OpenSessions())
}

func TestTimer_ArmsOneShot(t *testing.T) {
	h := newHarness()
	p := fixtures.NewTimerProfile("pomodoro", 25)

	out, err := NewTimer(h.deps).Start(context.Background(), StartRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, Started, out.Kind)

	reg, ok := h.scheduler.Get(domain.NewActivityName(domain.RoleStrategyTimer, p.ID))
	require.True(t, ok)
	assert.True(t, reg.Once)
	assert.Equal(t, 25*time.Minute, reg.Duration)
}

func TestTimer_RequestDurationOverridesConfig(t *testing.T) {
	h := newHarness()
	p := fixtures.NewTimerProfile("pomodoro", 25)

	_, err := NewTimer(h.deps).Start(context.Background(), StartRequest{Profile: p, Duration: time.Hour})
	require.NoError(t, err)

	reg, ok := h.scheduler.Get(domain.NewActivityName(domain.RoleStrategyTimer, p.ID))
	require.True(t, ok)
	assert.Equal(t, time.Hour, reg.Duration)
}

func TestTimer_WithoutDurationAsksForOne(t *testing.T) {
	h := newHarness()
	p := fixtures.NewProfile("pomodoro", TimerID)

	out, err := NewTimer(h.deps).Start(context.Background(), StartRequest{Profile: p})
	require.NoError(t, err)
	require.Equal(t, NeedsCustomUI, out.Kind)
	assert.Equal(t, ViewDurationPicker, out.UI.View)
	assert.Empty(t, h.history.Sessions())
}

func TestTimer_ScheduleFailureStillStarts(t *testing.T) {
	h := newHarness()
	h.scheduler.Err = errors.New("launchctl unavailable")

	out, err := NewTimer(h.deps).Start(context.Background(), StartRequest{Profile: fixtures.NewTimerProfile("p", 30)})

	require.NoError(t, err)
	assert.Equal(t, Started, out.Kind)
	assert.True(t, h.enforcer.IsActive())
}

func TestToken_StopRequiresMatchingToken(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := fixtures.NewProfile("desk", "nfc-manual")
	p.UnlockTokenID = "tag-1"
	s := NewTokenManual(h.deps, domain.TokenNFC)

	out, err := s.Start(ctx, StartRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, 0, h.tokens.Reads, "manual start needs no scan")

	h.tokens.Next = domain.TokenRead{ID: "tag-2"}
	_, err = s.Stop(ctx, *out.Session, p)
	assert.ErrorIs(t, err, domain.ErrPolicyRefusal)
	assert.True(t, h.enforcer.IsActive())

	h.tokens.Err = errors.New("scan cancelled")
	_, err = s.Stop(ctx, *out.Session, p)
	assert.ErrorIs(t, err, domain.ErrPolicyRefusal)

	h.tokens.Err = nil
	h.tokens.Next = domain.TokenRead{ID: "tag-1"}
	res, err := s.Stop(ctx, *out.Session, p)
	require.NoError(t, err)
	assert.Equal(t, Ended, res.Kind)
}

func TestToken_EmptyStoredIDAcceptsAny(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := fixtures.NewProfile("desk", "qr")
	s := NewToken(h.deps, domain.TokenQR)

	h.tokens.Next = domain.TokenRead{ID: "whatever"}
	out, err := s.Start(ctx, StartRequest{Profile: p})
	require.NoError(t, err)

	_, err = s.Stop(ctx, *out.Session, p)
	require.NoError(t, err)
	assert.Equal(t, 2, h.tokens.Reads)
}

func TestToken_WrongKindRefused(t *testing.T) {
	h := newHarness()
	h.tokens.Next = domain.TokenRead{ID: "x", Kind: domain.TokenQR}

	_, err := NewToken(h.deps, domain.TokenNFC).Start(context.Background(), StartRequest{Profile: fixtures.NewProfile("p", "nfc")})

	assert.ErrorIs(t, err, domain.ErrPolicyRefusal)
}

func TestTokenTimer_StartsWithTimer(t *testing.T) {
	h := newHarness()
	p := fixtures.NewProfile("deep work", "nfc-timer")
	p.StrategyData = TimerData(90)

	out, err := NewTokenTimer(h.deps, domain.TokenNFC).Start(context.Background(), StartRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, Started, out.Kind)
	assert.Equal(t, 1, h.tokens.Reads)

	reg, ok := h.scheduler.Get(domain.NewActivityName(domain.RoleStrategyTimer, p.ID))
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, reg.Duration)
}

func TestSchedule_StartArmsDaily(t *testing.T) {
	h := newHarness()
	start, end := domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}
	p := fixtures.NewProfile("work", ScheduleID)
	p.Schedule = &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &start, End: &end}

	out, err := NewSchedule(h.deps).Start(context.Background(), StartRequest{Profile: p})
	require.NoError(t, err)
	require.Equal(t, NeedsCustomUI, out.Kind)
	assert.Equal(t, ViewScheduleArmed, out.UI.View)

	reg, ok := h.scheduler.Get(domain.NewActivityName(domain.RoleSchedule, p.ID))
	require.True(t, ok)
	assert.False(t, reg.Once)
	assert.Equal(t, start, reg.Start)
	assert.Empty(t, h.history.Sessions())
}

func TestSchedule_WithoutScheduleRefused(t *testing.T) {
	h := newHarness()

	_, err := NewSchedule(h.deps).Start(context.Background(), StartRequest{Profile: fixtures.NewProfile("work", ScheduleID)})

	assert.ErrorIs(t, err, domain.ErrPolicyRefusal)
}

func TestConfiguredDuration(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty", want: 0},
		{name: "no duration", data: `{}`, want: 0},
		{name: "valid", data: `{"duration_minutes": 45}`, want: 45 * time.Minute},
		{name: "too short", data: `{"duration_minutes": 5}`, wantErr: true},
		{name: "garbage", data: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Profile{}
			if tt.data != "" {
				p.StrategyData = []byte(tt.data)
			}
			got, err := ConfiguredDuration(p)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
