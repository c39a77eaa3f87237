package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/config"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// processKind selects what a command opens and where it logs.
type processKind int

const (
	// interactive commands open history and log to stderr only.
	interactive processKind = iota
	// service is a long-lived foreground process (serve).
	service
	// background processes never open the history database.
	background
)

// app holds the wired components for one process.
type app struct {
	cfg    *config.Config
	mode   *infra.ExecModeConfig
	logger *zap.Logger

	pm        domain.ProcessManager
	runner    infra.CommandRunner
	snapshots domain.SnapshotStore
	history   *infra.HistoryStore
	scheduler domain.TimerScheduler
	// storeScheduler is set when wakes are delivered by the daemon loop.
	storeScheduler *infra.StoreScheduler
	enforcer       *usecase.EnforcerImpl
	notifier       *infra.DesktopNotifier
}

func openApp(kind processKind) (*app, error) {
	mode := infra.DetectExecMode()
	if dataDirFlag != "" {
		mode.DataDir = dataDirFlag
	}

	cfg, err := config.Load(mode.DataDir)
	if err != nil {
		return nil, err
	}
	mode.DataDir = cfg.DataDir

	logger, err := newLogger(cfg, kind)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		mode:   mode,
		logger: logger,
		pm:     infra.NewProcessManager(),
		runner: infra.ExecRunner{},
	}

	key, err := storeKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("load store key: %w", err)
	}

	switch cfg.Snapshot.Backend {
	case config.SnapshotFile:
		a.snapshots, err = infra.NewFileSnapshotStore(cfg.DataDir)
	default:
		a.snapshots, err = infra.NewEncryptedSnapshotStore(cfg.DataDir, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	if kind != background {
		a.history, err = infra.NewHistoryStore(cfg.DataDir, key)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	switch cfg.Scheduler.Backend {
	case config.SchedulerLaunchd:
		exe, err := daemon.Executable(cfg.Scheduler.Executable)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		a.scheduler = infra.NewLaunchdScheduler(mode, exe, a.runner, logger.Named("scheduler"))
	default:
		a.storeScheduler = infra.NewStoreScheduler(a.snapshots, logger.Named("scheduler"))
		a.scheduler = a.storeScheduler
	}

	a.enforcer = usecase.NewEnforcer(
		a.pm,
		infra.NewHostsFile(cfg.Enforcement.HostsFile),
		cfg.Catalog(),
		a.snapshots,
		logger.Named("enforcer"),
	)
	a.notifier = infra.NewDesktopNotifier(a.snapshots, a.runner, logger.Named("notifier"))

	logger.Debug("app opened",
		zap.String("data_dir", cfg.DataDir),
		zap.String("mode", mode.Mode.String()),
		zap.String("snapshot_backend", cfg.Snapshot.Backend),
		zap.String("scheduler_backend", cfg.Scheduler.Backend))
	return a, nil
}

func newLogger(cfg *config.Config, kind processKind) (*zap.Logger, error) {
	opts := infra.LogOptions{Level: "warn", Console: true}
	if kind != interactive {
		opts = infra.LogOptions{
			Level:      cfg.Logging.Level,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Console:    debugFlag,
		}
	}
	if debugFlag {
		opts.Level = "debug"
	}
	return infra.NewLogger(opts)
}

// storeKey prefers FOCUSLOCK_STORE_KEY, then the key file in the data dir.
func storeKey(cfg *config.Config) ([]byte, error) {
	var provider domain.KeyProvider = infra.NewFileKeyProvider(cfg.DataDir)
	if cfg.StoreKey != "" {
		static, err := infra.NewStaticKeyProvider(cfg.StoreKey)
		if err != nil {
			return nil, err
		}
		provider = static
	}
	return infra.EnsureKey(provider)
}

// coordinator builds the foreground coordinator. Only valid for
// non-background processes.
func (a *app) coordinator() *usecase.Coordinator {
	opts := usecase.DefaultOptions()
	if a.cfg.Quota.Count > 0 || a.cfg.Quota.Period > 0 {
		opts.Quota = usecase.QuotaPolicy{Default: a.cfg.Quota.Count, Period: a.cfg.Quota.Period}
	}
	opts.TickInterval = a.cfg.Session.TickInterval
	opts.BreakDuration = a.cfg.Session.BreakDuration
	opts.ComeBackAfter = a.cfg.Session.ComeBackAfter

	return usecase.NewCoordinator(usecase.Deps{
		Profiles:  a.history,
		Sessions:  a.history,
		Quota:     a.history,
		Snapshots: a.snapshots,
		Scheduler: a.scheduler,
		Enforcer:  a.enforcer,
		Tokens:    infra.NewStaticTokenReader(tokenFlag),
		Notifier:  a.notifier,
		Logger:    a.logger.Named("coordinator"),
	}, opts)
}

func (a *app) wakeHandler() *usecase.WakeHandler {
	return usecase.NewWakeHandler(a.snapshots, a.enforcer, a.scheduler, a.logger.Named("wake"))
}

// Close releases stores and flushes the logger.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("close history failed", zap.Error(err))
		}
	}
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.logger.Warn("close snapshot store failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// withForeground opens the app, loads the active session and hands the
// coordinator to fn.
func withForeground(fn func(ctx context.Context, a *app, c *usecase.Coordinator) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(interactive)
	if err != nil {
		return err
	}
	defer a.Close()

	c := a.coordinator()
	defer func() { _ = c.Close() }()

	if _, err := c.LoadActiveSession(ctx); err != nil {
		return err
	}
	return fn(ctx, a, c)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
