// Package daemon runs the long-lived background process: it delivers
// store-scheduler wake-ups, re-applies active restrictions and posts
// due reminders.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
)

// WakeSource yields interval boundaries that became due since the last call.
type WakeSource interface {
	Due(ctx context.Context) ([]infra.Wake, error)
}

// WakeReceiver handles interval boundaries in the background context.
type WakeReceiver interface {
	OnIntervalStart(ctx context.Context, activity string) error
	OnIntervalEnd(ctx context.Context, activity string) error
}

// Sweeper re-applies the active restriction plan.
type Sweeper interface {
	Sweep(ctx context.Context) (*domain.EnforcementResult, error)
}

// ReminderDelivery posts queued reminders that are due.
type ReminderDelivery interface {
	DeliverDue(ctx context.Context, now time.Time) (int, error)
}

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	TickInterval  time.Duration // scheduler polling and reminder delivery
	SweepInterval time.Duration // enforcement re-application
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		TickInterval:  15 * time.Second,
		SweepInterval: 5 * time.Second,
	}
}

// Watcher is the background daemon loop.
type Watcher struct {
	config    WatcherConfig
	wakes     WakeSource // nil when the OS scheduler delivers wakes itself
	receiver  WakeReceiver
	sweeper   Sweeper
	reminders ReminderDelivery
	registry  *Registry
	logger    *zap.Logger
	now       func() time.Time
}

// NewWatcher creates a new watcher daemon.
func NewWatcher(
	config WatcherConfig,
	wakes WakeSource,
	receiver WakeReceiver,
	sweeper Sweeper,
	reminders ReminderDelivery,
	registry *Registry,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:    config,
		wakes:     wakes,
		receiver:  receiver,
		sweeper:   sweeper,
		reminders: reminders,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
	}
}

// Run starts the watcher loop. It blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.registry != nil {
		if err := w.registry.Register(); err != nil {
			w.logger.Error("failed to register daemon", zap.Error(err))
			return err
		}
		defer func() {
			if err := w.registry.Unregister(); err != nil {
				w.logger.Warn("failed to unregister daemon", zap.Error(err))
			}
		}()
	}

	w.logger.Info("watcher daemon started",
		zap.Duration("tick", w.config.TickInterval),
		zap.Duration("sweep", w.config.SweepInterval))

	w.Tick(ctx)
	w.runSweep(ctx)

	tickTicker := time.NewTicker(w.config.TickInterval)
	sweepTicker := time.NewTicker(w.config.SweepInterval)
	defer func() {
		tickTicker.Stop()
		sweepTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			return ctx.Err()

		case <-tickTicker.C:
			w.Tick(ctx)

		case <-sweepTicker.C:
			w.runSweep(ctx)
		}
	}
}

// Tick delivers due wakes and reminders and refreshes the heartbeat.
func (w *Watcher) Tick(ctx context.Context) {
	if w.wakes != nil {
		due, err := w.wakes.Due(ctx)
		if err != nil {
			w.logger.Error("failed to poll scheduler", zap.Error(err))
		}
		for _, wake := range due {
			if err := Fire(ctx, w.receiver, nil, wake.Edge, wake.Name.String()); err != nil {
				w.logger.Warn("wake failed",
					zap.String("activity", wake.Name.String()),
					zap.String("edge", string(wake.Edge)),
					zap.Error(err))
			}
		}
	}

	if w.reminders != nil {
		n, err := w.reminders.DeliverDue(ctx, w.now())
		if err != nil {
			w.logger.Warn("reminder delivery failed", zap.Error(err))
		} else if n > 0 {
			w.logger.Info("reminders delivered", zap.Int("count", n))
		}
	}

	if w.registry != nil {
		if err := w.registry.Heartbeat(); err != nil {
			w.logger.Warn("failed to update heartbeat", zap.Error(err))
		}
	}
}

func (w *Watcher) runSweep(ctx context.Context) {
	if w.sweeper == nil {
		return
	}
	result, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.logger.Error("enforcement sweep failed", zap.Error(err))
		return
	}
	if result != nil && len(result.KilledPIDs) > 0 {
		w.logger.Info("enforcement sweep completed",
			zap.String("profile", result.ProfileID),
			zap.Int("processes_killed", len(result.KilledPIDs)))
	}
}
