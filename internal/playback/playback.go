// Package playback owns the audio output and the single active playback
// session. The platform audio capability is injected through Device so the
// controller runs the same against the real speaker and the test fake.
package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/apperrors"
	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/metrics"
	"github.com/tiroq/lectern/internal/pcm"
)

var (
	// ErrStopped is returned by Session.Wait when the session was stopped
	// before it finished on its own.
	ErrStopped = errors.New("playback stopped")
	// ErrAlreadyStopped may be returned by Source.Stop for a source that
	// already ended. The controller swallows it.
	ErrAlreadyStopped = errors.New("source already stopped")
)

// Device creates audio output contexts.
type Device interface {
	Open(sampleRate int) (Output, error)
}

// Output is an open audio output context. It may start suspended and must be
// resumed before audio is scheduled.
type Output interface {
	Suspended() bool
	Resume(ctx context.Context) error
	// NewSource binds buf to a new sound source connected to the output.
	NewSource(buf *pcm.Buffer) (Source, error)
	Close() error
}

// Source is one sound-emitting handle.
type Source interface {
	// Start begins output immediately. onEnded is called once when the
	// source plays to its end; it must not be called after Stop.
	Start(onEnded func()) error
	Stop() error
}

var sessionSeq atomic.Uint64

// Session is one playback from start to natural end or stop.
type Session struct {
	ID        uint64
	StartedAt time.Time
	Length    time.Duration

	src       Source
	done      chan struct{}
	once      sync.Once
	completed atomic.Bool
}

func newSession(src Source, length time.Duration) *Session {
	return &Session{
		ID:        sessionSeq.Add(1),
		StartedAt: time.Now(),
		Length:    length,
		src:       src,
		done:      make(chan struct{}),
	}
}

// finish settles the session. Only the first call has any effect.
func (s *Session) finish(completed bool) bool {
	settled := false
	s.once.Do(func() {
		s.completed.Store(completed)
		close(s.done)
		settled = true
	})
	return settled
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether the session played to its natural end. Only
// meaningful after Done is closed.
func (s *Session) Completed() bool {
	return s.completed.Load()
}

// Wait blocks until the session ends. It returns nil on natural completion,
// ErrStopped if the session was stopped, or ctx.Err().
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		if s.Completed() {
			return nil
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller guarantees at most one active session on a lazily opened
// output.
type Controller struct {
	device     Device
	sampleRate int

	mu      sync.Mutex
	out     Output
	current *Session

	logger zerolog.Logger
	diag   *diaglog.Logger
}

// NewController creates a controller that opens device at sampleRate on
// first use.
func NewController(device Device, sampleRate int) *Controller {
	if sampleRate <= 0 {
		sampleRate = pcm.DefaultSampleRate
	}
	return &Controller{
		device:     device,
		sampleRate: sampleRate,
		logger:     zerolog.Nop(),
	}
}

// SetLogger sets the operational logger.
func (c *Controller) SetLogger(l zerolog.Logger) {
	c.mu.Lock()
	c.logger = l.With().Str("component", diaglog.ComponentPlayback).Logger()
	c.mu.Unlock()
}

// SetDiag injects the diagnostic logger.
func (c *Controller) SetDiag(l *diaglog.Logger) {
	c.mu.Lock()
	c.diag = l
	c.mu.Unlock()
}

// Play stops any current session and starts buf immediately.
func (c *Controller) Play(ctx context.Context, buf *pcm.Buffer) (*Session, error) {
	if buf == nil {
		return nil, apperrors.Playback("no audio buffer", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked("replaced")

	out, err := c.outputLocked()
	if err != nil {
		return nil, err
	}
	if out.Suspended() {
		c.logger.Debug().Msg("resuming suspended audio output")
		if err := out.Resume(ctx); err != nil {
			return nil, apperrors.Playback("resume audio output", err)
		}
	}

	src, err := out.NewSource(buf)
	if err != nil {
		return nil, apperrors.Playback("create sound source", err)
	}
	sess := newSession(src, buf.Duration())
	if err := src.Start(func() {
		// Runs on the audio goroutine; must not take c.mu.
		if sess.finish(true) {
			metrics.PlaybackSessions.WithLabelValues("completed").Inc()
		}
	}); err != nil {
		return nil, apperrors.Playback("start sound source", err)
	}
	c.current = sess

	c.logger.Debug().
		Uint64("session", sess.ID).
		Dur("length", sess.Length).
		Int("frames", buf.Frames()).
		Msg("playback started")
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentPlayback,
		Event:     diaglog.EventPlaybackStart,
		Payload: map[string]interface{}{
			"session":   sess.ID,
			"length_ms": sess.Length.Milliseconds(),
			"channels":  buf.NumChannels(),
		},
	})
	return sess, nil
}

// Stop halts the active session, if any. Safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked("stop")
}

// Active reports whether a session is currently playing.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	select {
	case <-c.current.done:
		return false
	default:
		return true
	}
}

// Close stops playback and releases the output.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked("close")
	if c.out == nil {
		return nil
	}
	err := c.out.Close()
	c.out = nil
	return err
}

func (c *Controller) outputLocked() (Output, error) {
	if c.out != nil {
		return c.out, nil
	}
	out, err := c.device.Open(c.sampleRate)
	if err != nil {
		return nil, apperrors.Playback("open audio output", err)
	}
	c.out = out
	return out, nil
}

func (c *Controller) stopLocked(reason string) {
	sess := c.current
	if sess == nil {
		return
	}
	c.current = nil
	if !sess.finish(false) {
		// Already ended on its own; the source is spent.
		return
	}
	metrics.PlaybackSessions.WithLabelValues("stopped").Inc()
	if err := sess.src.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
		c.logger.Warn().Err(err).Uint64("session", sess.ID).Msg("stop sound source")
	}
	c.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentPlayback,
		Event:     diaglog.EventPlaybackStop,
		Reason:    reason,
		Payload:   map[string]interface{}{"session": sess.ID},
	})
}
