// Package main is the CLI entry point for focuslock.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", domain.UserMessage(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focuslock",
	Short: "Restriction sessions for distracting apps and sites",
	Long: `focuslock starts and stops restriction sessions built from profiles.
A session blocks the profile's apps and domains until it is stopped the way
its unlock strategy allows: by hand, with a token, when a timer runs out or
when a daily schedule ends.

Scheduled and timed sessions keep running in the background after this
command exits.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dataDirFlag string
	tokenFlag   string
	debugFlag   bool
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default depends on execution mode)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Id of the unlock token presented for this command")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log debug output to stderr")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		_ = json.NewEncoder(out).Encode(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		return
	}
	fmt.Fprintf(out, "focuslock %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}
