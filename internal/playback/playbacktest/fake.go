// Package playbacktest provides an in-memory playback.Device for tests.
package playbacktest

import (
	"context"
	"sync"

	"github.com/tiroq/lectern/internal/pcm"
	"github.com/tiroq/lectern/internal/playback"
)

// Device records every output and source it hands out. Sources never end on
// their own; call Complete to simulate natural end of playback.
type Device struct {
	mu sync.Mutex

	// StartSuspended makes newly opened outputs report Suspended until resumed.
	StartSuspended bool
	OpenErr        error
	ResumeErr      error
	SourceErr      error
	StartErr       error

	Opens   int
	Resumes int
	Sources []*Source
	outputs []*output
	// MaxConcurrent is the highest number of sources seen playing at once.
	MaxConcurrent int

	// OnStart, when set, is invoked after each source starts.
	OnStart func(*Source)
}

// Open implements playback.Device.
func (d *Device) Open(sampleRate int) (playback.Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.Opens++
	o := &output{dev: d, rate: sampleRate, suspended: d.StartSuspended}
	d.outputs = append(d.outputs, o)
	return o, nil
}

// Suspend marks every open output suspended, as an OS audio policy would.
func (d *Device) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.outputs {
		if !o.closed {
			o.suspended = true
		}
	}
}

// Last returns the most recently created source, or nil.
func (d *Device) Last() *Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sources) == 0 {
		return nil
	}
	return d.Sources[len(d.Sources)-1]
}

// Count returns the number of sources created so far.
func (d *Device) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Sources)
}

// Playing returns the number of sources currently emitting sound.
func (d *Device) Playing() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playingLocked()
}

func (d *Device) playingLocked() int {
	n := 0
	for _, s := range d.Sources {
		if s.started && !s.stopped && !s.ended {
			n++
		}
	}
	return n
}

type output struct {
	dev       *Device
	rate      int
	suspended bool
	closed    bool
}

func (o *output) Suspended() bool {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	return o.suspended
}

func (o *output) Resume(ctx context.Context) error {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if o.dev.ResumeErr != nil {
		return o.dev.ResumeErr
	}
	o.dev.Resumes++
	o.suspended = false
	return ctx.Err()
}

func (o *output) NewSource(buf *pcm.Buffer) (playback.Source, error) {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	if o.dev.SourceErr != nil {
		return nil, o.dev.SourceErr
	}
	s := &Source{dev: o.dev, Buffer: buf}
	o.dev.Sources = append(o.dev.Sources, s)
	return s, nil
}

func (o *output) Close() error {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	o.closed = true
	return nil
}

// Source is a fake sound source.
type Source struct {
	dev    *Device
	Buffer *pcm.Buffer

	started bool
	stopped bool
	ended   bool
	onEnded func()
}

// Start implements playback.Source.
func (s *Source) Start(onEnded func()) error {
	s.dev.mu.Lock()
	if s.dev.StartErr != nil {
		err := s.dev.StartErr
		s.dev.mu.Unlock()
		return err
	}
	s.started = true
	s.onEnded = onEnded
	if n := s.dev.playingLocked(); n > s.dev.MaxConcurrent {
		s.dev.MaxConcurrent = n
	}
	hook := s.dev.OnStart
	s.dev.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return nil
}

// Stop implements playback.Source.
func (s *Source) Stop() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.stopped || s.ended {
		return playback.ErrAlreadyStopped
	}
	s.stopped = true
	return nil
}

// Complete simulates the source reaching its natural end. It is a no-op for
// stopped or already completed sources.
func (s *Source) Complete() {
	s.dev.mu.Lock()
	if !s.started || s.stopped || s.ended {
		s.dev.mu.Unlock()
		return
	}
	s.ended = true
	fn := s.onEnded
	s.dev.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stopped reports whether Stop was called before the source ended.
func (s *Source) Stopped() bool {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.stopped
}

// Started reports whether Start succeeded.
func (s *Source) Started() bool {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.started
}
