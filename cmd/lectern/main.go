// Command lectern plays the voxel lecturer's Chinese psychoanalysis lecture
// with synthesized speech and synced subtitles.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/diaglog"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
	strategy   string
	script     string
}

func main() {
	diaglog.Version = Version
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "lectern",
		Short: "Voxel Freud live: a synthesized Chinese lecture with subtitles",
		Long: titleStyle.Render("VOXEL FREUD LIVE") + `

Plays a Chinese psychoanalysis lecture read by Gemini text-to-speech, with
subtitles kept in step with the audio. Runs as a terminal view, as a
headless daemon with a websocket overlay, or as one-off tools.

` + dimStyle.Render("Use 'lectern [command] --help' for more information."),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/lectern/config.yaml)")
	pf.BoolVar(&flags.debug, "debug", false, "write the diagnostic NDJSON log (same as "+diaglog.DebugEnv+"=true)")
	pf.StringVar(&flags.strategy, "strategy", "", "subtitle sync strategy: interval or chained")
	pf.StringVar(&flags.script, "script", "", "lecture script YAML (default: built-in lecture)")

	root.AddCommand(
		newPlayCmd(flags),
		newServeCmd(flags),
		newCtlCmd(flags),
		newSubtitlesCmd(flags),
		newSpeakCmd(flags),
		newVoicesCmd(flags),
		newCheckCmd(flags),
		newExportDiagCmd(flags),
		newConfigCmd(flags),
	)
	return root
}
