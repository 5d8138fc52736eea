// Package config loads lectern's settings from defaults, a YAML file, a .env
// file and LECTERN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LECTERN_GEMINI_MODEL.
const EnvPrefix = "LECTERN"

// apiKeyEnvFallbacks are consulted, in order, when no key is configured.
var apiKeyEnvFallbacks = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// Config holds all application configuration
type Config struct {
	Gemini  GeminiConfig  `mapstructure:"gemini" yaml:"gemini"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Lecture LectureConfig `mapstructure:"lecture" yaml:"lecture"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Local   LocalConfig   `mapstructure:"local" yaml:"local"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Daemon  DaemonConfig  `mapstructure:"daemon" yaml:"daemon"`
	Overlay OverlayConfig `mapstructure:"overlay" yaml:"overlay"`
}

// GeminiConfig configures the remote speech service.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Model          string `mapstructure:"model" yaml:"model"`
	Voice          string `mapstructure:"voice" yaml:"voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// AudioConfig describes the PCM format returned by the service and the
// output buffer.
type AudioConfig struct {
	SampleRate    int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels      int           `mapstructure:"channels" yaml:"channels"`
	BufferLatency time.Duration `mapstructure:"buffer_latency" yaml:"buffer_latency"`
}

// LectureConfig selects the lecture and its pacing.
type LectureConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"` // interval or chained
	Script   string `mapstructure:"script" yaml:"script"`     // YAML script path; empty = built-in
}

// CacheConfig configures the in-memory payload cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LocalConfig configures the system speech fallback.
type LocalConfig struct {
	PreferredVoices []string `mapstructure:"preferred_voices" yaml:"preferred_voices"`
	PreferredLangs  []string `mapstructure:"preferred_langs" yaml:"preferred_langs"`
	Rate            float64  `mapstructure:"rate" yaml:"rate"`
}

// LogConfig configures the operational log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
}

// DaemonConfig configures the headless mode's command and status files.
type DaemonConfig struct {
	Dir          string        `mapstructure:"dir" yaml:"dir"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// OverlayConfig configures the HTTP/websocket overlay feed.
type OverlayConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Dir returns ~/.config/lectern.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lectern")
}

// CacheDir returns ~/.cache/lectern, home of logs and daemon files.
func CacheDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "lectern")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.5-flash-preview-tts",
			Voice:          "Kore",
			TimeoutSeconds: 120,
		},
		Audio: AudioConfig{
			SampleRate:    24000,
			Channels:      1,
			BufferLatency: 100 * time.Millisecond,
		},
		Lecture: LectureConfig{Strategy: "interval"},
		Cache:   CacheConfig{Enabled: false, TTL: time.Hour},
		Local: LocalConfig{
			PreferredVoices: []string{"Daniel", "Alex", "Tingting"},
			PreferredLangs:  []string{"zh"},
			Rate:            0.9,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   filepath.Join(CacheDir(), "logs"),
		},
		Daemon: DaemonConfig{
			Dir:          CacheDir(),
			PollInterval: 2 * time.Second,
		},
		Overlay: OverlayConfig{Enabled: false, Addr: "127.0.0.1:8765"},
	}
}

// Load reads path (or the default location when empty) on top of the
// defaults, then applies .env and environment overrides. A missing file is
// not an error; a named file that is missing is.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Gemini.APIKey == "" {
		for _, name := range apiKeyEnvFallbacks {
			if key := strings.TrimSpace(os.Getenv(name)); key != "" {
				cfg.Gemini.APIKey = key
				break
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv reads .env from the working directory and next to the config
// file. Variables already set in the environment win.
func loadDotEnv(path string) {
	candidates := []string{".env", filepath.Join(Dir(), ".env")}
	if path != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(path), ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", d.Gemini.BaseURL)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.voice", d.Gemini.Voice)
	v.SetDefault("gemini.timeout_seconds", d.Gemini.TimeoutSeconds)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer_latency", d.Audio.BufferLatency)
	v.SetDefault("lecture.strategy", d.Lecture.Strategy)
	v.SetDefault("lecture.script", d.Lecture.Script)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("local.preferred_voices", d.Local.PreferredVoices)
	v.SetDefault("local.preferred_langs", d.Local.PreferredLangs)
	v.SetDefault("local.rate", d.Local.Rate)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("daemon.dir", d.Daemon.Dir)
	v.SetDefault("daemon.poll_interval", d.Daemon.PollInterval)
	v.SetDefault("overlay.enabled", d.Overlay.Enabled)
	v.SetDefault("overlay.addr", d.Overlay.Addr)
}

// Save writes cfg as YAML. The API key is never written.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out := *cfg
	out.Gemini.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Gemini.APIKey != "" {
		k := out.Gemini.APIKey
		if len(k) > 4 {
			k = k[:4]
		}
		out.Gemini.APIKey = k + "…(redacted)"
	}
	return &out
}

// Validate checks Config for validity
func (c *Config) Validate() error {
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model must not be empty")
	}
	if c.Gemini.TimeoutSeconds < 1 || c.Gemini.TimeoutSeconds > 600 {
		return fmt.Errorf("gemini.timeout_seconds must be between 1 and 600, got %d", c.Gemini.TimeoutSeconds)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 8 {
		return fmt.Errorf("audio.channels must be between 1 and 8, got %d", c.Audio.Channels)
	}
	switch c.Lecture.Strategy {
	case "interval", "chained":
	default:
		return fmt.Errorf("lecture.strategy must be interval or chained, got %q", c.Lecture.Strategy)
	}
	if c.Local.Rate <= 0 || c.Local.Rate > 4 {
		return fmt.Errorf("local.rate must be in (0, 4], got %v", c.Local.Rate)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Daemon.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("daemon.poll_interval must be at least 100ms, got %s", c.Daemon.PollInterval)
	}
	if c.Overlay.Enabled && c.Overlay.Addr == "" {
		return fmt.Errorf("overlay.addr is required when the overlay is enabled")
	}
	return nil
}
