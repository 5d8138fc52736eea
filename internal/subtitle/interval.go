package subtitle

import (
	"context"
	"time"
)

// Interval paces N segments evenly across a clip of known length.
type Interval struct {
	total time.Duration
	n     int
}

// Cue is one timed subtitle line.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// NewInterval creates a pacing of n segments over total.
func NewInterval(total time.Duration, n int) *Interval {
	if total < 0 {
		total = 0
	}
	if n < 0 {
		n = 0
	}
	return &Interval{total: total, n: n}
}

// Segments returns the segment count.
func (iv *Interval) Segments() int { return iv.n }

// SegmentDuration is total / n, or zero when there is nothing to pace.
func (iv *Interval) SegmentDuration() time.Duration {
	if iv.n == 0 {
		return 0
	}
	return iv.total / time.Duration(iv.n)
}

// IndexAt returns the segment shown after elapsed playback. It never
// decreases as elapsed grows and never exceeds n-1, even past the end.
func (iv *Interval) IndexAt(elapsed time.Duration) int {
	d := iv.SegmentDuration()
	if d <= 0 || elapsed <= 0 {
		return 0
	}
	return Clamp(int(elapsed/d), iv.n)
}

// Cues lays the texts out on the pacing grid. Extra texts beyond n are
// ignored; the last cue ends at the clip end.
func (iv *Interval) Cues(texts []string) []Cue {
	d := iv.SegmentDuration()
	n := iv.n
	if len(texts) < n {
		n = len(texts)
	}
	cues := make([]Cue, 0, n)
	for i := 0; i < n; i++ {
		end := time.Duration(i+1) * d
		if i == iv.n-1 {
			end = iv.total
		}
		cues = append(cues, Cue{Index: i, Start: time.Duration(i) * d, End: end, Text: texts[i]})
	}
	return cues
}

// Run advances the index once per SegmentDuration, starting from 0, calling
// onAdvance with each new index. It returns nil after reporting n-1, or
// ctx.Err() when cancelled first. Nothing is paced when n < 2 or the clip
// has no length.
func (iv *Interval) Run(ctx context.Context, clock Clock, onAdvance func(int)) error {
	d := iv.SegmentDuration()
	if iv.n < 2 || d <= 0 {
		return nil
	}
	if clock == nil {
		clock = RealClock{}
	}
	t := clock.NewTicker(d)
	defer t.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			idx++
			onAdvance(idx)
			if idx >= iv.n-1 {
				return nil
			}
		}
	}
}
