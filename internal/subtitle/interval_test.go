package subtitle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/lectern/internal/subtitle"
	"github.com/tiroq/lectern/internal/subtitle/subtitletest"
)

func TestSegmentDuration(t *testing.T) {
	tests := []struct {
		name  string
		total time.Duration
		n     int
		want  time.Duration
	}{
		{"ten over thirty seconds", 30 * time.Second, 10, 3 * time.Second},
		{"single segment", 5 * time.Second, 1, 5 * time.Second},
		{"no segments", 30 * time.Second, 0, 0},
		{"empty clip", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subtitle.NewInterval(tt.total, tt.n).SegmentDuration())
		})
	}
}

func TestIndexAtIsMonotoneAndClamped(t *testing.T) {
	iv := subtitle.NewInterval(30*time.Second, 10)

	assert.Equal(t, 0, iv.IndexAt(0))
	assert.Equal(t, 0, iv.IndexAt(2999*time.Millisecond))
	assert.Equal(t, 1, iv.IndexAt(3*time.Second))
	assert.Equal(t, 9, iv.IndexAt(29*time.Second))
	assert.Equal(t, 9, iv.IndexAt(30*time.Second))
	assert.Equal(t, 9, iv.IndexAt(10*time.Minute), "past the end stays on the last segment")

	prev := 0
	for e := time.Duration(0); e <= 40*time.Second; e += 250 * time.Millisecond {
		idx := iv.IndexAt(e)
		require.GreaterOrEqual(t, idx, prev)
		require.LessOrEqual(t, idx, 9)
		prev = idx
	}
}

func TestCues(t *testing.T) {
	iv := subtitle.NewInterval(10*time.Second, 3)
	cues := iv.Cues([]string{"a", "b", "c"})
	require.Len(t, cues, 3)
	assert.Equal(t, time.Duration(0), cues[0].Start)
	assert.Equal(t, 3333333333*time.Nanosecond, cues[0].End)
	assert.Equal(t, "c", cues[2].Text)
	assert.Equal(t, 10*time.Second, cues[2].End, "last cue ends with the clip")
}

func TestRunAdvancesEveryThreeSecondsAndHaltsOnLast(t *testing.T) {
	clock := subtitletest.New()
	iv := subtitle.NewInterval(30*time.Second, 10)

	advanced := make(chan int, 16)
	done := make(chan error, 1)
	go func() {
		done <- iv.Run(context.Background(), clock, func(i int) { advanced <- i })
	}()
	clock.BlockUntil(1)

	clock.Advance(2 * time.Second)
	assert.Empty(t, advanced)

	clock.Advance(time.Second)
	assert.Equal(t, 1, <-advanced)

	for want := 2; want <= 9; want++ {
		clock.Advance(3 * time.Second)
		assert.Equal(t, want, <-advanced)
	}
	require.NoError(t, <-done)

	// Time keeps passing after the end; nothing else is reported.
	clock.Advance(time.Minute)
	assert.Empty(t, advanced)
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := subtitletest.New()
	iv := subtitle.NewInterval(30*time.Second, 10)
	ctx, cancel := context.WithCancel(context.Background())

	advanced := make(chan int, 16)
	done := make(chan error, 1)
	go func() {
		done <- iv.Run(ctx, clock, func(i int) { advanced <- i })
	}()
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, <-advanced)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	clock.Advance(time.Minute)
	assert.Empty(t, advanced)
}

func TestRunNothingToPace(t *testing.T) {
	called := false
	err := subtitle.NewInterval(30*time.Second, 1).Run(context.Background(), subtitletest.New(), func(int) { called = true })
	assert.NoError(t, err)
	err = subtitle.NewInterval(0, 10).Run(context.Background(), subtitletest.New(), func(int) { called = true })
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestScript(t *testing.T) {
	s := subtitle.Script{Segments: []string{"one", "two"}}
	require.NoError(t, s.Validate())
	assert.Equal(t, "onetwo", s.FullText())
	assert.Equal(t, "two", s.Segment(7))
	assert.Equal(t, "one", s.Segment(-1))

	assert.Error(t, subtitle.Script{}.Validate())
	assert.Error(t, subtitle.Script{Segments: []string{"ok", "  "}}.Validate())
	assert.Equal(t, "", subtitle.Script{}.Segment(0))
}
