// Package logging provides the operational log: zerolog to a day-stamped
// file and, optionally, the console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Entry is one remembered warning or error, served on the overlay's
// /status endpoint.
type Entry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
}

// Logger wraps zerolog with file output and a short history.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string

	mu      sync.RWMutex
	history []Entry
	maxHist int
}

// Config holds logger configuration
type Config struct {
	LogDir     string   // default: ~/.cache/lectern/logs
	Level      LogLevel // default: info
	MaxHistory int      // default: 200
	// Console mirrors the log to stderr. The terminal UI turns it off.
	Console bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".cache", "lectern", "logs"),
		Level:      LevelInfo,
		MaxHistory: 200,
		Console:    true,
	}
}

// ParseLevel maps a config string to a zerolog level. Unknown values are
// info.
func ParseLevel(s LogLevel) zerolog.Level {
	switch s {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a Logger writing to lectern_<date>.log in cfg.LogDir.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 200
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("lectern_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		file:    file,
		logPath: logPath,
		history: make([]Entry, 0, cfg.MaxHistory),
		maxHist: cfg.MaxHistory,
	}

	writers := []io.Writer{file}
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	l.zlog = l.build(io.MultiWriter(writers...), ParseLevel(cfg.Level))

	l.zlog.Debug().Str("component", "logging").Str("file", logPath).Str("level", string(cfg.Level)).Msg("logger initialized")
	return l, nil
}

// NewWriter builds a Logger on w without a file. Used by tests and by
// commands that only need console output.
func NewWriter(w io.Writer, level LogLevel) *Logger {
	l := &Logger{maxHist: 200}
	l.zlog = l.build(w, ParseLevel(level))
	return l
}

func (l *Logger) build(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("app", "lectern").
		Logger()
}

// historyHook records warnings and errors for display. zerolog hooks cannot
// read event fields, so each component logger carries its own hook.
type historyHook struct {
	l         *Logger
	component string
}

func (h historyHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.WarnLevel || msg == "" {
		return
	}
	h.l.remember(Entry{Time: time.Now(), Level: level.String(), Component: h.component, Message: msg})
}

func (l *Logger) remember(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, e)
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
}

// Recent returns up to limit of the latest warnings and errors, oldest
// first.
func (l *Logger) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	out := make([]Entry, limit)
	copy(out, l.history[len(l.history)-limit:])
	return out
}

// Component returns a zerolog.Logger with the component field set.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger().Hook(historyHook{l: l, component: name})
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog.Hook(historyHook{l: l})
}

// Path returns the current log file path, or "" for writer-only loggers.
func (l *Logger) Path() string {
	return l.logPath
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	l.zlog.Debug().Str("component", "logging").Msg("logger shutting down")
	return l.file.Close()
}
