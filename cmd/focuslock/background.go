package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon",
	Long: `Runs the background loop: fires due schedule, timer and break
registrations (store scheduler), re-applies active restrictions and posts
due reminders. Use --detach to start it in its own session.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

// Hidden wake command - run by launchd at interval boundaries
var wakeCmd = &cobra.Command{
	Use:       "wake <start|end> <activity>",
	Hidden:    true,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(infra.EdgeStart), string(infra.EdgeEnd)},
	RunE:      runWake,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cancel schedule registrations left behind by deleted profiles",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

var daemonDetach bool

func init() {
	daemonCmd.Flags().BoolVar(&daemonDetach, "detach", false, "Start the daemon in the background and return")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(background)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := daemon.NewRegistry(a.snapshots, a.pm)

	if daemonDetach {
		if registry.IsAlive() {
			rec, _ := registry.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "focuslock daemon is already running (pid %d)\n", rec.PID)
			return nil
		}
		exe, err := daemon.Executable(a.cfg.Scheduler.Executable)
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		pid, err := daemon.StartDetached(exe, "--data-dir", a.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "focuslock daemon started (pid %d)\n", pid)
		fmt.Fprintf(cmd.OutOrStdout(), "Log: %s\n", a.cfg.Logging.File)
		return nil
	}

	// Leave wakes nil for launchd: it runs `wake` itself.
	var wakes daemon.WakeSource
	if a.storeScheduler != nil {
		wakes = a.storeScheduler
	}

	w := daemon.NewWatcher(
		daemon.WatcherConfig{
			TickInterval:  a.cfg.Daemon.TickInterval,
			SweepInterval: a.cfg.Daemon.SweepInterval,
		},
		wakes,
		a.wakeHandler(),
		a.enforcer,
		a.notifier,
		registry,
		a.logger.Named("watcher"),
	)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runWake(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := openApp(background)
	if err != nil {
		return err
	}
	defer a.Close()

	edge, activity := infra.Edge(args[0]), args[1]
	a.logger.Info("wake", zap.String("edge", string(edge)), zap.String("activity", activity))
	if err := daemon.Fire(ctx, a.wakeHandler(), a.scheduler, edge, activity); err != nil {
		a.logger.Error("wake failed",
			zap.String("edge", string(edge)),
			zap.String("activity", activity),
			zap.Error(err))
		return err
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		rep, err := c.CleanupGhostSchedules(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range rep.Cancelled {
			fmt.Fprintf(out, "cancelled %s\n", n)
		}
		for _, n := range rep.Skipped {
			fmt.Fprintf(out, "skipped %s (profile lookup failed)\n", n)
		}
		fmt.Fprintf(out, "%d cancelled, %d kept, %d skipped\n", len(rep.Cancelled), len(rep.Kept), len(rep.Skipped))
		return nil
	})
}
