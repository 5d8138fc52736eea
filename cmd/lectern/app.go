package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tiroq/lectern/internal/config"
	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/keyprompt"
	"github.com/tiroq/lectern/internal/lecture"
	"github.com/tiroq/lectern/internal/logging"
	"github.com/tiroq/lectern/internal/playback"
	"github.com/tiroq/lectern/internal/playback/speaker"
	"github.com/tiroq/lectern/internal/speech"
	"github.com/tiroq/lectern/internal/speech/gemini"
	"github.com/tiroq/lectern/internal/subtitle"
)

// diagLogEnv overrides the diagnostic log location.
const diagLogEnv = "LECTERN_LOG_PATH"

// app is the wired set of components one command needs.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	diag     *diaglog.Logger
	gemini   *gemini.Client
	cache    *speech.Cached
	registry *speech.Registry
	keys     *keyprompt.Store
	player   *playback.Controller
	script   subtitle.Script
	strategy lecture.Strategy
}

// loadConfig applies the global flags on top of the loaded config.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.strategy != "" {
		cfg.Lecture.Strategy = flags.strategy
	}
	if flags.script != "" {
		cfg.Lecture.Script = flags.script
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func diagLogPath(cfg *config.Config) string {
	if p := os.Getenv(diagLogEnv); p != "" {
		return p
	}
	return filepath.Join(cfg.Log.Dir, "lectern-debug.ndjson")
}

// newApp wires config, logs, the speech backend and the audio output.
// console mirrors the log to stderr; the terminal view turns it off.
func newApp(ctx context.Context, flags *globalFlags, console bool) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.LogDir = cfg.Log.Dir
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Console = console
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	if flags.debug {
		_ = os.Setenv(diaglog.DebugEnv, "true")
	}
	diag, err := diaglog.New(diagLogPath(cfg))
	if err != nil {
		zl := log.Zerolog()
		zl.Warn().Err(err).Msg("diagnostic log unavailable")
		diag = diaglog.NewNoOp()
	}

	strategy, err := lecture.ParseStrategy(cfg.Lecture.Strategy)
	if err != nil {
		return nil, err
	}
	script, err := lecture.Resolve(cfg.Lecture.Script)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		diag:     diag,
		registry: speech.NewRegistry(),
		script:   script,
		strategy: strategy,
	}

	a.gemini = gemini.NewClient(gemini.Config{
		BaseURL:        cfg.Gemini.BaseURL,
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		Voice:          cfg.Gemini.Voice,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	})
	a.gemini.SetLogger(log.Component(diaglog.ComponentSpeech))
	a.gemini.SetDiag(diag)

	var synth speech.Synthesizer = a.gemini
	if cfg.Cache.Enabled {
		cached, err := speech.NewCached(ctx, a.gemini, cfg.Cache.TTL, cfg.Gemini.Model+"/"+cfg.Gemini.Voice)
		if err != nil {
			return nil, fmt.Errorf("init speech cache: %w", err)
		}
		cached.SetLogger(log.Component(diaglog.ComponentSpeech))
		a.cache = cached
		synth = cached
	}
	a.registry.Register(synth.Name(), synth)
	if err := a.registry.SetPrimary(synth.Name()); err != nil {
		return nil, err
	}

	a.keys = keyprompt.NewStore(a.gemini, func() {
		zl := log.Zerolog()
		zl.Info().Msg("API key updated")
		diag.Log(diaglog.LogEntry{Component: diaglog.ComponentSpeech, Event: diaglog.EventKeySelection, Reason: "key_set"})
		if a.cache != nil {
			_ = a.cache.Reset()
		}
	})

	a.player = playback.NewController(speaker.New(cfg.Audio.BufferLatency), cfg.Audio.SampleRate)
	a.player.SetLogger(log.Component(diaglog.ComponentPlayback))
	a.player.SetDiag(diag)
	return a, nil
}

// newRunner builds the lecture runner over the primary backend.
func (a *app) newRunner(keys lecture.KeySelector) *lecture.Runner {
	r := lecture.NewRunner(a.script, a.registry.Primary(), a.player, lecture.Options{
		Strategy:   a.strategy,
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   a.cfg.Audio.Channels,
		Keys:       keys,
	})
	r.SetLogger(a.log.Zerolog())
	r.SetDiag(a.diag)
	return r
}

func (a *app) Close() {
	_ = a.player.Close()
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.diag.Close()
	_ = a.log.Close()
}
