package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/apperrors"
	"github.com/tiroq/lectern/internal/config"
	"github.com/tiroq/lectern/internal/keyprompt"
	"github.com/tiroq/lectern/internal/lecture"
	"github.com/tiroq/lectern/internal/localspeech"
	"github.com/tiroq/lectern/internal/pcm"
)

func newSpeakCmd(flags *globalFlags) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Speak text (default: the whole lecture) once, without subtitles",
		Long: `Synthesizes text with Gemini and plays it. With --local the operating
system's synthesizer (say or espeak-ng) reads it instead, printing each
sentence as it starts; no API key is needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if local {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				text, err := speakText(cfg, args)
				if err != nil {
					return err
				}
				return speakLocal(ctx, cfg, text)
			}

			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			text, err := speakText(a.cfg, args)
			if err != nil {
				return err
			}

			sel := keyprompt.NewTerminal(a.keys)
			if !sel.HasKey() {
				if err := sel.SelectKey(ctx); err != nil {
					return err
				}
			}

			fmt.Println(dimStyle.Render(fmt.Sprintf("synthesizing %d characters...", utf8.RuneCountInString(text))))
			payload, err := a.registry.Primary().Synthesize(ctx, text)
			if err != nil {
				return errors.New(apperrors.UserMessage(err))
			}
			buf, err := pcm.DecodeBase64PCM(payload, a.cfg.Audio.SampleRate, a.cfg.Audio.Channels)
			if err != nil {
				return err
			}
			sess, err := a.player.Play(ctx, buf)
			if err != nil {
				return errors.New(apperrors.UserMessage(err))
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("▶ playing %s", buf.Duration().Round(time.Millisecond))))
			if err := sess.Wait(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			a.player.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "use the system speech synthesizer")
	return cmd
}

func speakText(cfg *config.Config, args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	script, err := lecture.Resolve(cfg.Lecture.Script)
	if err != nil {
		return "", err
	}
	return script.FullText(), nil
}

func speakLocal(ctx context.Context, cfg *config.Config, text string) error {
	driver, err := localspeech.Detect()
	if err != nil {
		return err
	}
	sp := localspeech.NewSpeaker(driver)
	sp.SetPreference(localspeech.Preference{Names: cfg.Local.PreferredVoices, LangPrefixes: cfg.Local.PreferredLangs})
	sp.SetRate(cfg.Local.Rate)

	voice, err := sp.Voice(ctx)
	if err != nil {
		return err
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s voice: %s (%s)", driver.Name(), voice.Name, voice.Lang)))

	sentences := localspeech.Sentences(text)
	next := 0
	err = sp.Speak(ctx, text, localspeech.Options{
		OnBoundary: func(offset int) {
			for next < len(sentences) && sentences[next].Offset <= offset {
				if sentences[next].Offset == offset {
					fmt.Println(titleStyle.Render(strings.TrimSpace(sentences[next].Text)))
				}
				next++
			}
		},
		OnEnd: func() {
			fmt.Println(successStyle.Render("✓ done"))
		},
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
