package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <profile>",
	Short: "Stop the active session, or start one for a profile",
	Long: `Stops the active session through its strategy. When nothing is active,
starts a session for the named profile. Token strategies read the token
given with --token.`,
	Args: cobra.ExactArgs(1),
	RunE: runToggle,
}

var startCmd = &cobra.Command{
	Use:   "start <profile>",
	Short: "Start a session for a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active session",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Start or end the session's break",
	Long:  `Pauses enforcement for the profile's break duration. A session allows one break.`,
	Args:  cobra.NoArgs,
	RunE:  runBreak,
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Force-stop the active session with an emergency override",
	Long: `Stops the active session regardless of its strategy and spends one
emergency override. Overrides refill at the start of each quota period.`,
	Args: cobra.NoArgs,
	RunE: runOverride,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	startMinutes int
	startForce   bool
	statusWatch  bool
)

func init() {
	startCmd.Flags().IntVar(&startMinutes, "minutes", 0, "Session length for timer strategies (15-1440)")
	startCmd.Flags().BoolVar(&startForce, "force", false, "Skip the start token scan")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep printing elapsed time until the session ends")

	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(breakCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(statusCmd)
}

// resolveProfile accepts a profile id or a case-insensitive name.
func resolveProfile(ctx context.Context, c *usecase.Coordinator, arg string) (string, error) {
	if _, err := uuid.Parse(arg); err == nil {
		return arg, nil
	}
	ps, err := c.ListProfiles(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, p := range ps {
		if strings.EqualFold(p.Name, arg) {
			if match != "" {
				return "", domain.Validation("profile.resolve", "profile", fmt.Sprintf("more than one profile is named %q, use its id", arg))
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", domain.NotFound("profile.resolve", "profile", arg)
	}
	return match, nil
}

func runToggle(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		id, err := resolveProfile(ctx, c, args[0])
		if err != nil {
			return err
		}
		out, err := c.Toggle(ctx, id)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	if startMinutes != 0 {
		if err := domain.ValidateDurationMinutes("cli.start", startMinutes); err != nil {
			return err
		}
	}
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		id, err := resolveProfile(ctx, c, args[0])
		if err != nil {
			return err
		}
		out, err := c.Start(ctx, id, usecase.StartOptions{
			Duration: time.Duration(startMinutes) * time.Minute,
			Force:    startForce,
		})
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	})
}

func runStop(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		out, err := c.Stop(ctx)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	})
}

func runBreak(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		if err := c.ToggleBreak(ctx); err != nil {
			return err
		}
		sess, _ := c.Current()
		switch {
		case sess == nil:
			fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
		case sess.IsOnBreak():
			fmt.Fprintln(cmd.OutOrStdout(), "On break. Restrictions are paused.")
		case sess.BreakUsed():
			fmt.Fprintln(cmd.OutOrStdout(), "Break over. Restrictions are back on.")
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "No break available for this session.")
		}
		return nil
	})
}

func runOverride(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		q, err := c.EmergencyOverride(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session stopped. %d emergency override(s) left this period.\n", q.Remaining)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		out := cmd.OutOrStdout()
		q, err := c.Quota(ctx)
		if err != nil {
			return err
		}
		sess, prof := c.Current()
		printStatus(out, sess, prof, time.Now())
		fmt.Fprintf(out, "Emergency overrides left: %d (since %s)\n", q.Remaining, q.LastReset.Local().Format("2006-01-02"))

		if !statusWatch || sess == nil {
			return nil
		}
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				return nil
			case ev, ok := <-c.Events():
				if !ok {
					return nil
				}
				switch ev.Kind {
				case usecase.EventTick:
					line := "\rElapsed " + ev.Elapsed.Round(time.Second).String()
					if ev.Remaining > 0 {
						line += ", remaining " + ev.Remaining.Round(time.Second).String()
					}
					fmt.Fprint(out, line+"   ")
				case usecase.EventEnded:
					fmt.Fprintln(out, "\nSession ended.")
					return nil
				}
			}
		}
	})
}

func printStatus(out io.Writer, sess *domain.Session, prof *domain.Profile, now time.Time) {
	if sess == nil {
		fmt.Fprintln(out, "Status: IDLE")
		return
	}
	state := "ACTIVE"
	if sess.IsOnBreak() {
		state = "ON BREAK"
	}
	fmt.Fprintf(out, "Status: %s\n", state)
	fmt.Fprintf(out, "Profile: %s (%s)\n", prof.Name, strategyName(prof.StrategyID))
	fmt.Fprintf(out, "Started: %s\n", sess.StartTime.Local().Format("15:04:05"))
	fmt.Fprintf(out, "Elapsed: %s\n", sess.Elapsed(now).Round(time.Second))
	if sess.ForceStarted {
		fmt.Fprintln(out, "Started without a token scan.")
	}
}

func strategyName(id string) string {
	if id == "" {
		return strategy.DefaultID
	}
	return id
}

func printOutcome(out io.Writer, o strategy.Outcome) {
	switch o.Kind {
	case strategy.Started:
		fmt.Fprintf(out, "Started %s.\n", o.Profile.Name)
	case strategy.Ended:
		fmt.Fprintf(out, "Stopped %s after %s.\n", o.Profile.Name, o.Session.Elapsed(time.Now()).Round(time.Second))
	case strategy.NeedsCustomUI:
		switch o.UI.View {
		case strategy.ViewDurationPicker:
			fmt.Fprintf(out, "This profile needs a duration: rerun with --minutes (%d-%d).\n",
				domain.MinSessionMinutes, domain.MaxSessionMinutes)
		default:
			msg := o.UI.Message
			if msg == "" {
				msg = string(o.UI.View)
			}
			fmt.Fprintln(out, msg)
		}
	}
}
