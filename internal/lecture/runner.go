// Package lecture runs a lecture end to end: speech request, PCM decoding,
// playback and subtitle pacing, with the lifecycle kept in a session.Machine.
package lecture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/apperrors"
	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/metrics"
	"github.com/tiroq/lectern/internal/pcm"
	"github.com/tiroq/lectern/internal/playback"
	"github.com/tiroq/lectern/internal/session"
	"github.com/tiroq/lectern/internal/speech"
	"github.com/tiroq/lectern/internal/subtitle"
)

// Strategy selects how subtitles follow the audio.
type Strategy string

const (
	// StrategyInterval requests the whole text once and paces the subtitles
	// evenly over the clip.
	StrategyInterval Strategy = "interval"
	// StrategyChained requests and plays one segment at a time; each natural
	// end starts the next.
	StrategyChained Strategy = "chained"
)

// ParseStrategy accepts "interval" or "chained".
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyInterval, StrategyChained:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want interval or chained)", s)
}

// KeySelector is the host's API key picker.
type KeySelector interface {
	HasKey() bool
	SelectKey(ctx context.Context) error
}

// errStale marks a run whose epoch moved on while it was waiting.
var errStale = errors.New("lecture run superseded")

// Options configures a Runner.
type Options struct {
	Strategy   Strategy
	SampleRate int
	Channels   int
	// Clock paces the interval strategy. Nil means the wall clock.
	Clock subtitle.Clock
	// Keys, when set, is asked for a key before the first request and
	// nudged once after a credential failure.
	Keys KeySelector
}

// Runner owns one lecture at a time.
type Runner struct {
	script  subtitle.Script
	synth   speech.Synthesizer
	player  *playback.Controller
	machine *session.Machine
	opts    Options

	// mu orders Stop against the check-then-play step of a run so a stopped
	// run can never start audio.
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
	diag   *diaglog.Logger
}

// NewRunner creates a runner and the session machine for script.
func NewRunner(script subtitle.Script, synth speech.Synthesizer, player *playback.Controller, opts Options) *Runner {
	if opts.Strategy == "" {
		opts.Strategy = StrategyInterval
	}
	if opts.Clock == nil {
		opts.Clock = subtitle.RealClock{}
	}
	return &Runner{
		script:  script,
		synth:   synth,
		player:  player,
		machine: session.New(script.Segments),
		opts:    opts,
		logger:  zerolog.Nop(),
	}
}

// SetLogger sets the operational logger.
func (r *Runner) SetLogger(l zerolog.Logger) {
	r.logger = l.With().Str("component", diaglog.ComponentLecture).Logger()
}

// SetDiag injects the diagnostic logger.
func (r *Runner) SetDiag(l *diaglog.Logger) {
	r.diag = l
}

// Machine exposes the lifecycle for observers.
func (r *Runner) Machine() *session.Machine { return r.machine }

// Script returns the lecture being played.
func (r *Runner) Script() subtitle.Script { return r.script }

// Strategy returns the configured strategy.
func (r *Runner) Strategy() Strategy { return r.opts.Strategy }

// Start begins a lecture in the background. It fails if one is already
// loading or playing.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.script.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	epoch, err := r.machine.Begin()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	snap := r.machine.Snapshot()
	r.logger.Info().
		Str("session", snap.SessionID).
		Str("strategy", string(r.opts.Strategy)).
		Int("segments", len(r.script.Segments)).
		Msg("lecture started")
	r.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentLecture,
		Event:     diaglog.EventStateChange,
		SessionID: snap.SessionID,
		Reason:    "start",
		Payload:   map[string]interface{}{"strategy": string(r.opts.Strategy), "epoch": epoch},
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, runCtx, epoch)
	}()
	return nil
}

// Stop halts playback and subtitle pacing and returns to idle. A request
// still in flight is cancelled and its response, if any, discarded.
// Idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machine.Stop()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.player.Stop()
}

// Wait blocks until every run goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(parent, ctx context.Context, epoch uint64) {
	var err error
	if err = r.ensureKey(ctx); err == nil {
		switch r.opts.Strategy {
		case StrategyChained:
			err = r.runChained(ctx, epoch)
		default:
			err = r.runInterval(ctx, epoch)
		}
	}

	strategy := string(r.opts.Strategy)
	switch {
	case err == nil:
		if r.machine.Finish(epoch) == nil {
			metrics.LectureRuns.WithLabelValues(strategy, "finished").Inc()
			r.logger.Info().Msg("lecture finished")
			r.logDiag(diaglog.LogEntry{Component: diaglog.ComponentLecture, Event: diaglog.EventStateChange, Reason: "finished"})
		}
	case errors.Is(err, errStale), errors.Is(err, playback.ErrStopped), ctx.Err() != nil:
		// Stop already moved the machine; a cancelled parent needs it here.
		r.stopIfCurrent(epoch)
		metrics.LectureRuns.WithLabelValues(strategy, "stopped").Inc()
		r.logger.Debug().Err(err).Msg("lecture stopped")
		r.logDiag(diaglog.LogEntry{Component: diaglog.ComponentLecture, Event: diaglog.EventStateChange, Reason: "stopped"})
	default:
		r.fail(parent, epoch, err)
	}
}

func (r *Runner) stopIfCurrent(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.machine.Current(epoch) {
		return
	}
	r.machine.Stop()
	r.player.Stop()
}

func (r *Runner) fail(ctx context.Context, epoch uint64, err error) {
	r.mu.Lock()
	if !r.machine.Current(epoch) {
		r.mu.Unlock()
		return
	}
	r.player.Stop()
	_ = r.machine.Fail(epoch, err)
	r.mu.Unlock()

	metrics.LectureRuns.WithLabelValues(string(r.opts.Strategy), "failed").Inc()
	r.logger.Error().Err(err).Str("kind", apperrors.KindOf(err).String()).Msg("lecture failed")
	r.logDiag(diaglog.LogEntry{
		Component: diaglog.ComponentLecture,
		Event:     diaglog.EventStateChange,
		Reason:    "error",
		Payload:   map[string]interface{}{"kind": apperrors.KindOf(err).String(), "error": err.Error()},
	})

	if apperrors.IsCredential(err) && r.opts.Keys != nil {
		r.logDiag(diaglog.LogEntry{Component: diaglog.ComponentLecture, Event: diaglog.EventKeySelection, Reason: "credential_error"})
		if serr := r.opts.Keys.SelectKey(ctx); serr != nil {
			r.logger.Warn().Err(serr).Msg("key selection failed")
		}
	}
}

// ensureKey asks the host for a key when none is selected yet.
func (r *Runner) ensureKey(ctx context.Context) error {
	if r.opts.Keys == nil || r.opts.Keys.HasKey() {
		return nil
	}
	r.logDiag(diaglog.LogEntry{Component: diaglog.ComponentLecture, Event: diaglog.EventKeySelection, Reason: "no_key"})
	if err := r.opts.Keys.SelectKey(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Credential("select API key", err)
	}
	return nil
}

// runInterval plays the whole text as one clip and paces the subtitles at
// duration / N.
func (r *Runner) runInterval(ctx context.Context, epoch uint64) error {
	payload, err := r.synth.Synthesize(ctx, r.script.FullText())
	if !r.machine.Current(epoch) {
		r.discard(epoch)
		return errStale
	}
	if err != nil {
		return err
	}
	buf, err := pcm.DecodeBase64PCM(payload, r.opts.SampleRate, r.opts.Channels)
	if err != nil {
		return err
	}

	sess, err := r.play(ctx, epoch, buf)
	if err != nil {
		return err
	}

	iv := subtitle.NewInterval(buf.Duration(), len(r.script.Segments))
	r.logger.Debug().
		Dur("clip", buf.Duration()).
		Dur("per_segment", iv.SegmentDuration()).
		Msg("pacing subtitles")

	paceCtx, stopPacing := context.WithCancel(ctx)
	paced := make(chan struct{})
	go func() {
		defer close(paced)
		_ = iv.Run(paceCtx, r.opts.Clock, func(i int) { r.advance(epoch, i) })
	}()

	err = sess.Wait(ctx)
	stopPacing()
	<-paced
	return err
}

// runChained requests, plays and awaits each segment in turn.
func (r *Runner) runChained(ctx context.Context, epoch uint64) error {
	if err := r.machine.MarkPlaying(epoch); err != nil {
		return errStale
	}
	for i, text := range r.script.Segments {
		r.advance(epoch, i)

		payload, err := r.synth.Synthesize(ctx, text)
		if !r.machine.Current(epoch) {
			r.discard(epoch)
			return errStale
		}
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		buf, err := pcm.DecodeBase64PCM(payload, r.opts.SampleRate, r.opts.Channels)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		sess, err := r.play(ctx, epoch, buf)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if err := sess.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// play starts buf if epoch is still current.
func (r *Runner) play(ctx context.Context, epoch uint64, buf *pcm.Buffer) (*playback.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.machine.Current(epoch) {
		r.discard(epoch)
		return nil, errStale
	}
	sess, err := r.player.Play(ctx, buf)
	if err != nil {
		return nil, err
	}
	if err := r.machine.MarkPlaying(epoch); err != nil {
		r.player.Stop()
		return nil, errStale
	}
	return sess, nil
}

func (r *Runner) advance(epoch uint64, idx int) {
	if err := r.machine.Advance(epoch, idx); err != nil {
		return
	}
	metrics.SubtitleIndex.Set(float64(r.machine.Snapshot().SubtitleIndex))
	r.logDiag(diaglog.LogEntry{
		Component: diaglog.ComponentLecture,
		Event:     diaglog.EventSubtitleAdvance,
		Payload:   map[string]interface{}{"index": idx},
	})
}

func (r *Runner) discard(epoch uint64) {
	r.logger.Debug().Uint64("epoch", epoch).Msg("discarding response for stopped lecture")
	r.logDiag(diaglog.LogEntry{
		Component: diaglog.ComponentLecture,
		Event:     diaglog.EventStaleResponse,
		Payload:   map[string]interface{}{"epoch": epoch},
	})
}

// logDiag tags entry with the current session before writing it.
func (r *Runner) logDiag(entry diaglog.LogEntry) {
	if entry.SessionID == "" {
		entry.SessionID = r.machine.Snapshot().SessionID
	}
	r.diag.Log(entry)
}
