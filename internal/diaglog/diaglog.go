// Package diaglog provides structured NDJSON diagnostic logging for lectern.
// Activated by LECTERN_DEBUG=true. When the env var is absent, all Log calls
// are no-ops and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugEnv is the environment variable that enables diagnostic logging.
const DebugEnv = "LECTERN_DEBUG"

// DefaultMaxSize caps the log file; the file is truncated when exceeded.
const DefaultMaxSize = 10 * 1024 * 1024

// ── Component labels ─────────────────────────────────────────────────────────

const (
	ComponentSpeech   = "speech"
	ComponentPlayback = "playback"
	ComponentSession  = "session"
	ComponentLecture  = "lecture"
	ComponentDaemon   = "daemon"
	ComponentOverlay  = "overlay"
	ComponentExport   = "diag-export"
)

// ── Event names ──────────────────────────────────────────────────────────────

const (
	EventSpeechRequest   = "speech_request"
	EventSpeechResponse  = "speech_response"
	EventSpeechFailed    = "speech_failed"
	EventPlaybackStart   = "playback_start"
	EventPlaybackStop    = "playback_stop"
	EventStateChange     = "state_change"
	EventSubtitleAdvance = "subtitle_advance"
	EventStaleResponse   = "stale_response_discarded"
	EventKeySelection    = "key_selection"
	EventCommand         = "command"
	EventOverlayClient   = "overlay_client"
)

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`
	Component string      `json:"component"`
	Event     string      `json:"event"`
	SessionID string      `json:"session_id,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// Logger writes LogEntry values to a size-capped NDJSON file. When debug mode
// is disabled every Log call is a no-op.
type Logger struct {
	mu      sync.Mutex
	f       *os.File
	size    int64
	maxSize int64
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return NewNoOp(), nil
	}
	return open(path, DefaultMaxSize)
}

func open(path string, maxSize int64) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Logger{f: f, size: info.Size(), maxSize: maxSize, enabled: true}, nil
}

// Log serialises entry to JSON and appends it as one line. Sensitive payload
// fields are redacted first.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.writeLocked(data)
}

// writeLocked truncates the file to zero when the next write would exceed
// maxSize, so the newest entries always survive.
func (l *Logger) writeLocked(p []byte) error {
	if l.size+int64(len(p)) > l.maxSize {
		if err := l.f.Truncate(0); err != nil {
			return err
		}
		if _, err := l.f.Seek(0, 0); err != nil {
			return err
		}
		l.size = 0
	}
	n, err := l.f.Write(p)
	l.size += int64(n)
	return err
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.f.Sync()
	err := l.f.Close()
	l.enabled = false
	return err
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// IsDebugEnabled reports whether LECTERN_DEBUG is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv(DebugEnv) == "true"
}

// NewNoOp returns a logger where every Log call is a no-op.
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}

// sensitiveKeys are payload keys whose values never reach the file.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"token":         true,
	"authorization": true,
	"secret":        true,
	"password":      true,
}

// Redact returns a copy of v with the values of sensitive keys replaced by
// "[REDACTED]", descending into nested maps and slices.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if sensitiveKeys[k] {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = Redact(child)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if sensitiveKeys[k] {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = child
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = Redact(elem)
		}
		return out
	default:
		return v
	}
}
