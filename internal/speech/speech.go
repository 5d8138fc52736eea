// Package speech defines the text-to-speech backends that produce the
// lecture audio.
package speech

import (
	"context"
	"time"
)

// Synthesizer turns text into base64-encoded raw PCM (16-bit signed little
// endian, 24 kHz, mono). Failures are classified with apperrors.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (string, error)
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// HealthChecker is implemented by backends that can probe their service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// KeySetter is implemented by backends that accept a replacement API key.
type KeySetter interface {
	SetAPIKey(key string)
	HasKey() bool
}
