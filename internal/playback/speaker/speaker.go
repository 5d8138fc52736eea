// Package speaker is the playback.Device backed by the system audio output
// through gopxl/beep.
package speaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	bspeaker "github.com/gopxl/beep/speaker"

	"github.com/tiroq/lectern/internal/pcm"
	"github.com/tiroq/lectern/internal/playback"
)

// resampleQuality is beep's interpolation quality for rate conversion.
const resampleQuality = 4

// Device opens the process-wide beep speaker. The underlying audio context
// can only be initialised once per process, so later Opens reuse the first
// sample rate and resample sources that differ.
type Device struct {
	// BufferLatency is the speaker buffer length. Zero means 100ms.
	BufferLatency time.Duration

	once    sync.Once
	rate    beep.SampleRate
	initErr error
}

// New returns a speaker device.
func New(latency time.Duration) *Device {
	return &Device{BufferLatency: latency}
}

// Open implements playback.Device. The returned output starts suspended and
// is resumed by the controller before the first source.
func (d *Device) Open(sampleRate int) (playback.Output, error) {
	d.once.Do(func() {
		latency := d.BufferLatency
		if latency <= 0 {
			latency = 100 * time.Millisecond
		}
		d.rate = beep.SampleRate(sampleRate)
		d.initErr = bspeaker.Init(d.rate, d.rate.N(latency))
		if d.initErr == nil {
			d.initErr = bspeaker.Suspend()
		}
	})
	if d.initErr != nil {
		return nil, fmt.Errorf("init speaker at %d Hz: %w", sampleRate, d.initErr)
	}
	return &output{rate: d.rate, suspended: true}, nil
}

type output struct {
	mu        sync.Mutex
	rate      beep.SampleRate
	suspended bool
}

func (o *output) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *output) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := bspeaker.Resume(); err != nil {
		return err
	}
	o.suspended = false
	return nil
}

func (o *output) NewSource(buf *pcm.Buffer) (playback.Source, error) {
	if buf.NumChannels() == 0 {
		return nil, fmt.Errorf("buffer has no channels")
	}
	var s beep.Streamer = &bufferStreamer{buf: buf}
	if src := beep.SampleRate(buf.SampleRate); src != o.rate {
		s = beep.Resample(resampleQuality, src, o.rate, s)
	}
	return &source{body: s}, nil
}

func (o *output) Close() error {
	bspeaker.Clear()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.suspended {
		return nil
	}
	o.suspended = true
	return bspeaker.Suspend()
}

type source struct {
	body beep.Streamer
	ctrl *beep.Ctrl

	mu      sync.Mutex
	stopped bool
}

// Start queues the source on the speaker mixer. onEnded runs on the speaker
// goroutine while the speaker lock is held.
func (s *source) Start(onEnded func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil {
		return fmt.Errorf("source already started")
	}
	s.ctrl = &beep.Ctrl{Streamer: beep.Seq(s.body, beep.Callback(onEnded))}
	bspeaker.Play(s.ctrl)
	return nil
}

// Stop detaches the source from the mixer. A nil streamer makes beep.Ctrl
// report exhaustion, so the mixer drops it without running the callback.
func (s *source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil || s.stopped {
		return playback.ErrAlreadyStopped
	}
	s.stopped = true
	bspeaker.Lock()
	s.ctrl.Streamer = nil
	bspeaker.Unlock()
	return nil
}

// bufferStreamer plays a pcm.Buffer as stereo frames. Mono is duplicated to
// both sides; extra channels beyond two are ignored.
type bufferStreamer struct {
	buf *pcm.Buffer
	pos int
}

func (b *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := b.buf.Frames()
	if b.pos >= frames {
		return 0, false
	}
	left := b.buf.Channels[0]
	right := left
	if b.buf.NumChannels() > 1 {
		right = b.buf.Channels[1]
	}
	for n < len(samples) && b.pos < frames {
		samples[n][0] = float64(left[b.pos])
		samples[n][1] = float64(right[b.pos])
		n++
		b.pos++
	}
	return n, true
}

func (b *bufferStreamer) Err() error {
	return nil
}
