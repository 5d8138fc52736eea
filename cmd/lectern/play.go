package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/tui"
)

func newPlayCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Open the lecture hall in the terminal (default)",
		Long:  "Shows the voxel lecturer with subtitles. enter/s starts the lecture, x stops it, k selects an API key, q quits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, flags)
		},
	}
}

func runPlay(cmd *cobra.Command, flags *globalFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, flags, false)
	if err != nil {
		return err
	}
	defer a.Close()

	prompter := tui.NewPrompter(a.keys)
	runner := a.newRunner(prompter)
	defer runner.Wait()
	defer runner.Stop()

	return tui.Run(ctx, tui.Options{
		Controller: runner,
		Source:     runner.Machine(),
		Keys:       a.keys,
		Engine: tui.Engine{
			Backend:  "Gemini",
			Model:    a.gemini.Model(),
			Voice:    a.gemini.Voice(),
			Language: languageName(a.script.Language),
		},
		Title: a.script.Title,
	}, prompter)
}

func languageName(tag string) string {
	switch tag {
	case "zh-CN", "zh":
		return "Chinese (Mandarin)"
	case "":
		return "unspecified"
	}
	return tag
}

