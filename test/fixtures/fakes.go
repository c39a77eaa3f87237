package fixtures

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Registration is one entry held by FakeScheduler.
type Registration struct {
	Name     domain.ActivityName
	Once     bool
	Duration time.Duration
	Start    domain.TimeOfDay
	End      domain.TimeOfDay
}

// FakeScheduler records Timer Scheduler calls.
type FakeScheduler struct {
	mu   sync.Mutex
	regs map[string]Registration

	Cancelled []domain.ActivityName
	Err       error
}

// NewFakeScheduler creates an empty scheduler.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{regs: make(map[string]Registration)}
}

func (f *FakeScheduler) ScheduleOnce(_ context.Context, name domain.ActivityName, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.regs[name.String()] = Registration{Name: name, Once: true, Duration: d}
	return nil
}

func (f *FakeScheduler) ScheduleDaily(_ context.Context, name domain.ActivityName, start, end domain.TimeOfDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.regs[name.String()] = Registration{Name: name, Start: start, End: end}
	return nil
}

func (f *FakeScheduler) Cancel(_ context.Context, names ...domain.ActivityName) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, n := range names {
		delete(f.regs, n.String())
		f.Cancelled = append(f.Cancelled, n)
	}
	return nil
}

func (f *FakeScheduler) ListActive(_ context.Context) ([]domain.ActivityName, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]domain.ActivityName, 0, len(f.regs))
	for _, r := range f.regs {
		out = append(out, r.Name)
	}
	return out, nil
}

// Get returns the registration for name, if held.
func (f *FakeScheduler) Get(name domain.ActivityName) (Registration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[name.String()]
	return r, ok
}

// FakeEnforcer records enforcement state.
type FakeEnforcer struct {
	mu          sync.Mutex
	Active      *domain.ProfileSnapshot
	Activations int
	Deactivates int

	ActivateErr   error
	DeactivateErr error
}

func (f *FakeEnforcer) Activate(_ context.Context, snap domain.ProfileSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ActivateErr != nil {
		return f.ActivateErr
	}
	f.Activations++
	f.Active = &snap
	return nil
}

func (f *FakeEnforcer) Deactivate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeactivateErr != nil {
		return f.DeactivateErr
	}
	f.Deactivates++
	f.Active = nil
	return nil
}

// IsActive reports whether a profile is being enforced.
func (f *FakeEnforcer) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Active != nil
}

// FakeTokenReader returns a canned scan.
type FakeTokenReader struct {
	Next  domain.TokenRead
	Err   error
	Reads int
}

func (f *FakeTokenReader) ReadToken(_ context.Context, kind domain.TokenKind) (domain.TokenRead, error) {
	f.Reads++
	if f.Err != nil {
		return domain.TokenRead{}, f.Err
	}
	r := f.Next
	if r.Kind == "" {
		r.Kind = kind
	}
	if r.ReadAt.IsZero() {
		r.ReadAt = time.Now()
	}
	return r, nil
}

// FakeNotifier records presentation calls.
type FakeNotifier struct {
	mu        sync.Mutex
	Statuses  []domain.LiveStatus
	Ended     int
	Reminders []domain.PendingReminder
}

func (f *FakeNotifier) ShowLiveStatus(_ context.Context, s domain.LiveStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses = append(f.Statuses, s)
	return nil
}

func (f *FakeNotifier) EndLiveStatus(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ended++
	return nil
}

func (f *FakeNotifier) ScheduleReminder(_ context.Context, r domain.PendingReminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reminders = append(f.Reminders, r)
	return nil
}

// NewProfile builds a minimal valid profile using the given strategy.
func NewProfile(name, strategyID string) domain.Profile {
	now := time.Now()
	return domain.Profile{
		ID:         uuid.NewString(),
		Name:       name,
		Selection:  domain.Selection{Apps: []string{"steam"}, Domains: []string{"store.steampowered.com"}},
		StrategyID: strategyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTimerProfile builds a timer profile with a configured duration.
func NewTimerProfile(name string, minutes int) domain.Profile {
	p := NewProfile(name, "timer")
	p.StrategyData, _ = json.Marshal(map[string]int{"duration_minutes": minutes})
	return p
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
