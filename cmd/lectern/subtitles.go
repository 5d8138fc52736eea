package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/config"
	"github.com/tiroq/lectern/internal/fileutil"
	"github.com/tiroq/lectern/internal/keyprompt"
	"github.com/tiroq/lectern/internal/lecture"
	"github.com/tiroq/lectern/internal/pcm"
	"github.com/tiroq/lectern/internal/subtitle"
)

func newSubtitlesCmd(flags *globalFlags) *cobra.Command {
	var (
		duration time.Duration
		out      string
		formats  string
		noMeta   bool
	)
	cmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Export the lecture's subtitle cues as txt, srt or vtt",
		Long: `Writes the subtitle timeline the interval strategy would show: the clip
length split evenly across the segments. With --duration the length is
given; otherwise the whole lecture is synthesized once to measure it.

Without -o the files are named YYYY-MM-DD_HHMM_<title> in the current
directory. A <name>.meta.json sidecar records how the cues were made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				cfg      *config.Config
				script   subtitle.Script
				backend  string
				measured = duration <= 0
			)
			if measured {
				a, err := newApp(ctx, flags, true)
				if err != nil {
					return err
				}
				defer a.Close()
				cfg, script = a.cfg, a.script

				sel := keyprompt.NewTerminal(a.keys)
				if !sel.HasKey() {
					if err := sel.SelectKey(ctx); err != nil {
						return err
					}
				}
				fmt.Println(dimStyle.Render("synthesizing the lecture to measure its length..."))
				primary := a.registry.Primary()
				backend = primary.Name()
				payload, err := primary.Synthesize(ctx, script.FullText())
				if err != nil {
					return err
				}
				buf, err := pcm.DecodeBase64PCM(payload, cfg.Audio.SampleRate, cfg.Audio.Channels)
				if err != nil {
					return err
				}
				duration = buf.Duration()
			} else {
				var err error
				if cfg, err = loadConfig(flags); err != nil {
					return err
				}
				if script, err = lecture.Resolve(cfg.Lecture.Script); err != nil {
					return err
				}
			}

			cues := subtitle.NewInterval(duration, len(script.Segments)).Cues(script.Segments)
			if out == "-" {
				fmt.Print(subtitle.FormatSRT(cues))
				return nil
			}
			now := time.Now()
			if out == "" {
				out = fileutil.ExportBasename(script.Title, now)
			}
			var list []string
			for _, f := range strings.Split(formats, ",") {
				if f = strings.TrimSpace(f); f != "" {
					list = append(list, f)
				}
			}
			if err := subtitle.WriteAll(out, cues, list); err != nil {
				return err
			}
			if !noMeta {
				meta := &fileutil.ExportMetadata{
					Version:    Version,
					Title:      script.Title,
					Language:   script.Language,
					Strategy:   "interval",
					Segments:   len(script.Segments),
					Duration:   duration.Round(time.Millisecond).String(),
					DurationMs: duration.Milliseconds(),
					Measured:   measured,
					Backend:    backend,
					Formats:    list,
					ExportedAt: now.UTC(),
				}
				if backend == "gemini" {
					meta.Model, meta.Voice = cfg.Gemini.Model, cfg.Gemini.Voice
				}
				if err := fileutil.WriteMetadata(out, meta); err != nil {
					return err
				}
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ wrote %d cues over %s to %s.{%s}", len(cues), duration.Round(time.Millisecond), out, strings.Join(list, ","))))
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "clip length, e.g. 5m12s (default: measure by synthesizing)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path without extension, or - for SRT on stdout (default: dated title)")
	cmd.Flags().StringVar(&formats, "format", "srt,vtt", "comma-separated formats: "+strings.Join(subtitle.Formats, ", "))
	cmd.Flags().BoolVar(&noMeta, "no-meta", false, "skip the .meta.json sidecar")
	return cmd
}
