package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/httpapi"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Non-interactive entry points for shortcuts and scripts",
	Long: `Commands meant for shortcuts, widgets and scripts. They never ask for a
token: a start with --minutes runs a timer session, otherwise a manual one.`,
}

var automationStartCmd = &cobra.Command{
	Use:   "start <profile-id>",
	Short: "Start a session unless one is already active",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutomationStart,
}

var automationStopCmd = &cobra.Command{
	Use:   "stop <profile-id>",
	Short: "Stop the profile's session if it is the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutomationStop,
}

var deeplinkCmd = &cobra.Command{
	Use:   "deeplink <url>",
	Short: "Toggle the profile named by a deep link",
	Long:  `Accepts https://focuslock.app/profile/<id> and focuslock://profile/<id>.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDeepLink,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the automation HTTP API",
	Long: `Serves the automation API on the configured loopback address so that
shortcuts and widgets can start, stop and inspect sessions.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	automationMinutes int
	serveAddr         string
)

func init() {
	automationStartCmd.Flags().IntVar(&automationMinutes, "minutes", 0, "Run a timer session of this length (15-1440)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")

	automationCmd.AddCommand(automationStartCmd)
	automationCmd.AddCommand(automationStopCmd)
	rootCmd.AddCommand(automationCmd)
	rootCmd.AddCommand(deeplinkCmd)
	rootCmd.AddCommand(serveCmd)
}

func printAutomation(cmd *cobra.Command, res usecase.AutomationResult) {
	msg := res.Message
	if msg == "" {
		msg = "done"
	}
	if res.Skipped {
		msg = "skipped: " + msg
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
}

func runAutomationStart(cmd *cobra.Command, args []string) error {
	var minutes *int
	if cmd.Flags().Changed("minutes") {
		minutes = &automationMinutes
	}
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		res, err := c.StartFromAutomation(ctx, args[0], minutes)
		if err != nil {
			return err
		}
		printAutomation(cmd, res)
		return nil
	})
}

func runAutomationStop(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		res, err := c.StopFromAutomation(ctx, args[0])
		if err != nil {
			return err
		}
		printAutomation(cmd, res)
		return nil
	})
}

func runDeepLink(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		res, err := c.ToggleSessionFromDeepLink(ctx, args[0])
		if err != nil {
			return err
		}
		printAutomation(cmd, res)
		return nil
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(service)
	if err != nil {
		return err
	}
	defer a.Close()

	c := a.coordinator()
	defer func() { _ = c.Close() }()
	if _, err := c.LoadActiveSession(ctx); err != nil {
		a.logger.Warn("initial session load failed", zap.Error(err))
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Automation.ListenAddr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Automation API listening on http://%s\n", addr)
	return httpapi.NewServer(addr, c, a.logger.Named("http")).Start(ctx)
}
