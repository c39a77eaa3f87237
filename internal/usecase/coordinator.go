package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
)

// EventKind tags a coordinator event.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventEnded        EventKind = "ended"
	EventBreakStarted EventKind = "break-started"
	EventBreakEnded   EventKind = "break-ended"
	EventTick         EventKind = "tick"
	EventCustomUI     EventKind = "custom-ui"
	EventError        EventKind = "error"
)

// Event is published to subscribers on every state change and once per tick
// while a session is active.
type Event struct {
	Kind      EventKind
	At        time.Time
	Session   *domain.Session
	Profile   *domain.Profile
	UI        *strategy.CustomUI
	Elapsed   time.Duration
	Remaining time.Duration // zero when the session has no deadline
	Err       error
}

// Deps are the collaborators a Coordinator is built from.
type Deps struct {
	Profiles  domain.ProfileRepository
	Sessions  domain.SessionRepository
	Quota     domain.QuotaStore
	Snapshots domain.SnapshotStore
	Scheduler domain.TimerScheduler
	Enforcer  domain.RestrictionEnforcer
	Tokens    domain.TokenReader
	Notifier  domain.Notifier
	Logger    *zap.Logger
	Now       func() time.Time
}

// Options tune a Coordinator.
type Options struct {
	Quota        QuotaPolicy
	TickInterval time.Duration
	EventBuffer  int
	// BreakDuration applies when a profile enables breaks without a duration.
	BreakDuration time.Duration
	// ComeBackAfter is the delay of the reminder scheduled by an emergency override.
	ComeBackAfter time.Duration
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Quota:         DefaultQuotaPolicy(),
		TickInterval:  time.Second,
		EventBuffer:   64,
		BreakDuration: 15 * time.Minute,
		ComeBackAfter: time.Hour,
	}
}

// pendingFlow remembers the request behind a custom UI so it can be resumed.
type pendingFlow struct {
	ui      strategy.CustomUI
	profile domain.Profile
	force   bool
}

// Coordinator owns the foreground view of the current session.
// One instance exists per process; all operations are serialized.
type Coordinator struct {
	mu sync.Mutex

	profiles   domain.ProfileRepository
	sessions   domain.SessionRepository
	quotaStore domain.QuotaStore
	snapshots  domain.SnapshotStore
	scheduler  domain.TimerScheduler
	enforcer   domain.RestrictionEnforcer
	notifier   domain.Notifier
	strategies *strategy.Registry
	logger     *zap.Logger
	now        func() time.Time
	opts       Options

	active        *domain.Session
	activeProfile *domain.Profile
	deadline      time.Time
	pending       *pendingFlow
	errMsg        string

	events     chan Event
	tickCancel context.CancelFunc
	tickWG     sync.WaitGroup
	closed     bool
}

// NewCoordinator wires a coordinator and its strategy registry.
func NewCoordinator(d Deps, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.Quota.Default <= 0 {
		opts.Quota.Default = def.Quota.Default
	}
	if opts.Quota.Period <= 0 {
		opts.Quota.Period = def.Quota.Period
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = def.EventBuffer
	}
	if opts.BreakDuration <= 0 {
		opts.BreakDuration = def.BreakDuration
	}
	if opts.ComeBackAfter <= 0 {
		opts.ComeBackAfter = def.ComeBackAfter
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		profiles:   d.Profiles,
		sessions:   d.Sessions,
		quotaStore: d.Quota,
		snapshots:  d.Snapshots,
		scheduler:  d.Scheduler,
		enforcer:   d.Enforcer,
		notifier:   d.Notifier,
		logger:     logger,
		now:        now,
		opts:       opts,
		events:     make(chan Event, opts.EventBuffer),
	}
	c.strategies = strategy.NewRegistry(&strategy.Deps{
		Sessions:  d.Sessions,
		Snapshots: d.Snapshots,
		Scheduler: d.Scheduler,
		Enforcer:  d.Enforcer,
		Tokens:    d.Tokens,
		Logger:    logger.Named("strategy"),
		Now:       now,
	})
	return c
}

// Events delivers coordinator events. Slow readers miss events rather than
// block the coordinator.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// ErrorMessage is the current user-visible error, empty when none.
func (c *Coordinator) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Strategies exposes the registry.
func (c *Coordinator) Strategies() *strategy.Registry {
	return c.strategies
}

// Current returns the active session and its profile, or nils when idle.
func (c *Coordinator) Current() (*domain.Session, *domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, nil
	}
	s, p := *c.active, *c.activeProfile
	return &s, &p
}

// PendingUI returns the custom flow waiting for input, if any.
func (c *Coordinator) PendingUI() *strategy.CustomUI {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	ui := c.pending.ui
	return &ui
}

// LoadActiveSession reconciles background writes, then adopts the most
// recent open session from history. Returns nil when idle.
func (c *Coordinator) LoadActiveSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	if err := c.refreshLocked(ctx); err != nil {
		return nil, c.fail(err)
	}
	if c.active == nil {
		return nil, nil
	}
	s := *c.active
	return &s, nil
}

// refreshLocked runs reconciliation and the quota check, then syncs the
// in-memory session with history.
func (c *Coordinator) refreshLocked(ctx context.Context) error {
	c.reconcile(ctx)
	if _, err := c.checkQuotaResetLocked(ctx); err != nil {
		c.logger.Warn("quota reset check failed", zap.Error(err))
	}

	sess, err := c.sessions.ActiveSession(ctx)
	if err != nil {
		return domain.Storage("coordinator.load", err)
	}
	if sess == nil {
		if c.active != nil {
			prev, prof := *c.active, *c.activeProfile
			if stored, err := c.sessions.GetSession(ctx, prev.ID); err == nil {
				prev = *stored
			}
			c.becomeIdle(ctx)
			c.emit(Event{Kind: EventEnded, Session: &prev, Profile: &prof})
		}
		return nil
	}
	if c.active != nil && c.active.ID == sess.ID {
		c.active = sess
		return nil
	}

	profile, err := c.profileFor(ctx, sess.ProfileID)
	if err != nil {
		return err
	}
	c.becomeActive(ctx, *sess, profile, 0)
	return nil
}

// profileFor loads a profile from history, falling back to its snapshot.
func (c *Coordinator) profileFor(ctx context.Context, id string) (domain.Profile, error) {
	p, err := c.profiles.GetProfile(ctx, id)
	if err == nil {
		return *p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{}, err
	}
	snap, serr := c.snapshots.GetProfileSnapshot(id)
	if serr != nil || snap == nil {
		return domain.Profile{}, err
	}
	return snap.Profile(), nil
}

// Toggle stops the active session, or starts one for profileID when idle.
func (c *Coordinator) Toggle(ctx context.Context, profileID string) (strategy.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	if c.active != nil {
		return c.stopLocked(ctx, c.strategies.Get(c.activeProfile.StrategyID))
	}
	p, err := c.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return strategy.Outcome{}, c.fail(err)
	}
	return c.startLocked(ctx, c.strategies.Get(p.StrategyID), strategy.StartRequest{Profile: *p})
}

// StartOptions adjusts a start.
type StartOptions struct {
	Duration time.Duration
	Force    bool
}

// Start begins a session for profileID with the profile's strategy.
func (c *Coordinator) Start(ctx context.Context, profileID string, opts StartOptions) (strategy.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	p, err := c.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return strategy.Outcome{}, c.fail(err)
	}
	return c.startLocked(ctx, c.strategies.Get(p.StrategyID), strategy.StartRequest{
		Profile:      *p,
		ForceStarted: opts.Force,
		Duration:     opts.Duration,
	})
}

// Stop ends the active session through its governing strategy.
func (c *Coordinator) Stop(ctx context.Context) (strategy.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errMsg = ""
	if c.active == nil {
		return strategy.Outcome{}, c.fail(domain.Refused("coordinator.stop", "no active session"))
	}
	return c.stopLocked(ctx, c.strategies.Get(c.activeProfile.StrategyID))
}

func (c *Coordinator) startLocked(ctx context.Context, s strategy.Strategy, req strategy.StartRequest) (strategy.Outcome, error) {
	if c.active != nil {
		return strategy.Outcome{}, c.fail(domain.Refused("coordinator.start", "a session is already active"))
	}
	out, err := s.Start(ctx, req)
	if err != nil {
		return out, c.fail(err)
	}
	c.apply(ctx, out, req)
	return out, nil
}

func (c *Coordinator) stopLocked(ctx context.Context, s strategy.Strategy) (strategy.Outcome, error) {
	if c.active == nil {
		return strategy.Outcome{}, c.fail(domain.Refused("coordinator.stop", "no active session"))
	}
	out, err := s.Stop(ctx, *c.active, *c.activeProfile)
	if err != nil {
		return out, c.fail(err)
	}
	c.apply(ctx, out, strategy.StartRequest{})
	return out, nil
}

// apply folds a strategy outcome into coordinator state.
func (c *Coordinator) apply(ctx context.Context, out strategy.Outcome, req strategy.StartRequest) {
	switch out.Kind {
	case strategy.Started:
		c.pending = nil
		var timer time.Duration
		if req.Duration > 0 {
			timer = req.Duration
		}
		c.becomeActive(ctx, *out.Session, *out.Profile, timer)
		c.scheduleProfileReminder(ctx, *out.Profile)
		c.emit(Event{Kind: EventStarted, Session: out.Session, Profile: out.Profile})
	case strategy.Ended:
		c.pending = nil
		c.becomeIdle(ctx)
		c.emit(Event{Kind: EventEnded, Session: out.Session, Profile: out.Profile})
	case strategy.NeedsCustomUI:
		c.pending = &pendingFlow{ui: *out.UI, profile: req.Profile, force: req.ForceStarted}
		c.emit(Event{Kind: EventCustomUI, UI: out.UI})
	}
}

// CustomUIInput carries what a custom flow collected.
type CustomUIInput struct {
	DurationMinutes int `json:"duration_minutes" validate:"omitempty,min=15,max=1440"`
}

// ResolveCustomUI completes the pending custom flow.
func (c *Coordinator) ResolveCustomUI(ctx context.Context, in CustomUIInput) (strategy.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return strategy.Outcome{}, c.fail(domain.Validation("coordinator.resolve", "view", "no custom flow is pending"))
	}
	flow := *c.pending
	switch flow.ui.View {
	case strategy.ViewDurationPicker:
		if err := domain.ValidateDurationMinutes("coordinator.resolve", in.DurationMinutes); err != nil {
			return strategy.Outcome{}, c.fail(err)
		}
		c.pending = nil
		c.errMsg = ""
		return c.startLocked(ctx, c.strategies.Get(flow.profile.StrategyID), strategy.StartRequest{
			Profile:      flow.profile,
			ForceStarted: flow.force,
			Duration:     time.Duration(in.DurationMinutes) * time.Minute,
		})
	default:
		c.pending = nil
		c.errMsg = ""
		return strategy.Outcome{Kind: strategy.NeedsCustomUI, UI: &flow.ui}, nil
	}
}

func (c *Coordinator) becomeActive(ctx context.Context, s domain.Session, p domain.Profile, timer time.Duration) {
	c.active = &s
	c.activeProfile = &p
	c.deadline = time.Time{}
	if timer == 0 && isTimerStrategy(p.StrategyID) {
		timer, _ = strategy.ConfiguredDuration(p)
	}
	if timer > 0 {
		c.deadline = s.StartTime.Add(timer)
	}
	c.startTicker()
	c.showStatus(ctx)
}

func (c *Coordinator) becomeIdle(ctx context.Context) {
	wasActive := c.active != nil
	c.active = nil
	c.activeProfile = nil
	c.deadline = time.Time{}
	c.stopTicker()

	if wasActive && c.notifier != nil {
		if err := c.notifier.EndLiveStatus(ctx); err != nil {
			c.logger.Warn("end live status failed", zap.Error(err))
		}
	}
}

func isTimerStrategy(id string) bool {
	return id == strategy.TimerID || id == "nfc-timer" || id == "qr-timer"
}

func (c *Coordinator) scheduleProfileReminder(ctx context.Context, p domain.Profile) {
	if !p.Reminder.Enabled || c.notifier == nil {
		return
	}
	msg := p.Reminder.Message
	if msg == "" {
		msg = "You are still blocking " + p.Name
	}
	err := c.notifier.ScheduleReminder(ctx, domain.PendingReminder{
		ProfileID: p.ID,
		Title:     p.Name,
		Message:   msg,
		DueAt:     c.now().Add(p.Reminder.After),
	})
	if err != nil {
		c.logger.Warn("schedule reminder failed", zap.String("profile", p.ID), zap.Error(err))
	}
}

// fail records err as the current user-visible message and publishes it.
func (c *Coordinator) fail(err error) error {
	c.errMsg = domain.UserMessage(err)
	level := c.logger.Warn
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrEnforcement) {
		level = c.logger.Error
	}
	level("coordinator operation failed", zap.Error(err))
	c.emit(Event{Kind: EventError, Err: err})
	return err
}

func (c *Coordinator) emit(ev Event) {
	if c.closed {
		return
	}
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("event dropped", zap.String("kind", string(ev.Kind)))
	}
}

// startTicker replaces the per-second tick loop. Callers hold c.mu.
func (c *Coordinator) startTicker() {
	c.stopTicker()
	if c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.tickCancel = cancel
	c.tickWG.Add(1)
	go func() {
		defer c.tickWG.Done()
		ticker := time.NewTicker(c.opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.tick(ctx)
			}
		}
	}()
}

// stopTicker cancels the tick loop without waiting for it. Callers hold c.mu.
func (c *Coordinator) stopTicker() {
	if c.tickCancel != nil {
		c.tickCancel()
		c.tickCancel = nil
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil || c.active == nil {
		return
	}
	now := c.now()
	ev := Event{Kind: EventTick, At: now, Elapsed: c.active.Elapsed(now)}
	if !c.deadline.IsZero() && c.deadline.After(now) {
		ev.Remaining = c.deadline.Sub(now)
	}
	s, p := *c.active, *c.activeProfile
	ev.Session, ev.Profile = &s, &p
	c.emit(ev)
}

// Close stops the tick loop and closes the event channel.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopTicker()
	c.closed = true
	c.mu.Unlock()

	c.tickWG.Wait()
	close(c.events)
	return nil
}
