package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage restriction profiles",
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply -f <file>",
	Short: "Create or update a profile from YAML",
	Long: `Reads a profile from a YAML file and saves it. A file without an id
creates a new profile; with an id it replaces that profile and resyncs its
daily schedule.

Example:
  name: Evenings
  strategy: timer
  timer_minutes: 90
  selection:
    categories: [games]
    domains: [store.steampowered.com]
  domain_filter_enabled: true
  schedule:
    days: [1, 2, 3, 4, 5]
    start: "19:00"
    end: "22:00"`,
	Args: cobra.NoArgs,
	RunE: runProfileApply,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profile>",
	Short: "Delete a profile, its history and its schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show session history",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var (
	profileFile     string
	sessionsProfile string
	sessionsLimit   int
)

func init() {
	profileApplyCmd.Flags().StringVarP(&profileFile, "file", "f", "", "Profile YAML file")
	_ = profileApplyCmd.MarkFlagRequired("file")
	sessionsCmd.Flags().StringVar(&sessionsProfile, "profile", "", "Only show sessions of this profile")
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to show (0 for all)")

	profileCmd.AddCommand(profileApplyCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// profileDoc is the YAML form of a profile. Timer strategies take their
// duration from timer_minutes.
type profileDoc struct {
	domain.Profile `yaml:",inline"`
	TimerMinutes   int `yaml:"timer_minutes"`
}

func parseProfile(data []byte) (domain.Profile, error) {
	const op = "profile.parse"
	var doc profileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return domain.Profile{}, domain.Validation(op, "", fmt.Sprintf("invalid profile YAML: %v", err))
	}
	p := doc.Profile
	if doc.TimerMinutes != 0 {
		if err := domain.ValidateDurationMinutes(op, doc.TimerMinutes); err != nil {
			return domain.Profile{}, err
		}
		p.StrategyData = strategy.TimerData(doc.TimerMinutes)
	}
	return p, nil
}

func runProfileApply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(profileFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", profileFile, err)
	}
	p, err := parseProfile(data)
	if err != nil {
		return err
	}
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		saved, err := c.SaveProfile(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%s)\n", saved.Name, saved.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Deep link: %s\n", usecase.DeepLink(saved.ID))
		return nil
	})
}

func runProfileList(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		ps, err := c.ListProfiles(ctx)
		if err != nil {
			return err
		}
		active, _ := c.Current()
		printProfiles(cmd.OutOrStdout(), ps, active)
		return nil
	})
}

func printProfiles(out io.Writer, ps []domain.Profile, active *domain.Session) {
	if len(ps) == 0 {
		fmt.Fprintln(out, "No profiles. Create one with 'focuslock profile apply -f <file>'.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTRATEGY\tSCHEDULE\tACTIVE")
	for _, p := range ps {
		sched := "-"
		if p.HasActiveSchedule() {
			sched = fmt.Sprintf("%s-%s", p.Schedule.Start, p.Schedule.End)
		}
		mark := ""
		if active != nil && active.ProfileID == p.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, strategyName(p.StrategyID), sched, mark)
	}
	_ = tw.Flush()
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		id, err := resolveProfile(ctx, c, args[0])
		if err != nil {
			return err
		}
		if err := c.DeleteProfile(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", id)
		return nil
	})
}

func runSessions(cmd *cobra.Command, args []string) error {
	if sessionsLimit < 0 {
		return domain.Validation("cli.sessions", "limit", "must not be negative")
	}
	return withForeground(func(ctx context.Context, a *app, c *usecase.Coordinator) error {
		profileID := ""
		if sessionsProfile != "" {
			id, err := resolveProfile(ctx, c, sessionsProfile)
			if err != nil {
				return err
			}
			profileID = id
		}
		ss, err := c.ListSessions(ctx, profileID, sessionsLimit)
		if err != nil {
			return err
		}
		names := map[string]string{}
		if ps, err := c.ListProfiles(ctx); err == nil {
			for _, p := range ps {
				names[p.ID] = p.Name
			}
		}
		printSessions(cmd.OutOrStdout(), ss, names, time.Now())
		return nil
	})
}

func printSessions(out io.Writer, ss []domain.Session, names map[string]string, now time.Time) {
	if len(ss) == 0 {
		fmt.Fprintln(out, "No sessions yet.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPROFILE\tDURATION\tBREAK\tNOTE")
	for _, s := range ss {
		name := names[s.ProfileID]
		if name == "" {
			name = s.ProfileID
		}
		dur := s.Elapsed(now).Round(time.Minute).String()
		if s.IsActive() {
			dur += " (running)"
		}
		brk := "-"
		if s.BreakStartTime != nil {
			end := now
			if s.BreakEndTime != nil {
				end = *s.BreakEndTime
			}
			brk = end.Sub(*s.BreakStartTime).Round(time.Minute).String()
		}
		note := ""
		if s.ForceStarted {
			note = "forced"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.StartTime.Local().Format("2006-01-02 15:04"), name, dur, brk, note)
	}
	_ = tw.Flush()
}
