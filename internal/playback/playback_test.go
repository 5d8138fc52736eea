package playback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/lectern/internal/apperrors"
	"github.com/tiroq/lectern/internal/pcm"
	"github.com/tiroq/lectern/internal/playback"
	"github.com/tiroq/lectern/internal/playback/playbacktest"
)

func silence(t *testing.T, seconds int) *pcm.Buffer {
	t.Helper()
	buf, err := pcm.Decode(make([]byte, seconds*pcm.DefaultSampleRate*2), pcm.DefaultSampleRate, 1)
	require.NoError(t, err)
	return buf
}

func TestPlayOpensLazilyAndResumes(t *testing.T) {
	dev := &playbacktest.Device{StartSuspended: true}
	c := playback.NewController(dev, 0)
	assert.Equal(t, 0, dev.Opens)

	sess, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Opens)
	assert.Equal(t, 1, dev.Resumes)
	assert.Equal(t, time.Second, sess.Length)
	assert.True(t, c.Active())

	_, err = c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Opens, "output reused")
	assert.Equal(t, 1, dev.Resumes, "already running")
}

func TestNaturalCompletionSignalsOnce(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)

	sess, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)

	dev.Last().Complete()
	dev.Last().Complete()

	require.NoError(t, sess.Wait(context.Background()))
	assert.True(t, sess.Completed())
	assert.False(t, c.Active())
}

func TestPlayStopsPreviousSession(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)

	first, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	second, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)

	assert.True(t, dev.Sources[0].Stopped())
	assert.ErrorIs(t, first.Wait(context.Background()), playback.ErrStopped)
	assert.Equal(t, 1, dev.Playing())
	assert.Equal(t, 1, dev.MaxConcurrent, "no overlapping audio")

	// A late end from the replaced source must not settle anything.
	dev.Sources[0].Complete()
	select {
	case <-second.Done():
		t.Fatal("second session ended early")
	default:
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)

	c.Stop()
	c.Stop()
	assert.Equal(t, 0, dev.Opens)

	sess, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	c.Stop()
	c.Stop()

	assert.ErrorIs(t, sess.Wait(context.Background()), playback.ErrStopped)
	assert.False(t, sess.Completed())
	assert.False(t, c.Active())

	// Completion after stop is ignored.
	dev.Last().Complete()
	assert.False(t, sess.Completed())
}

func TestStopAfterNaturalEnd(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)

	sess, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	dev.Last().Complete()
	c.Stop()

	require.NoError(t, sess.Wait(context.Background()))
	assert.False(t, dev.Last().Stopped())
}

func TestPlayErrorsArePlaybackKind(t *testing.T) {
	tests := []struct {
		name string
		dev  *playbacktest.Device
	}{
		{"open", &playbacktest.Device{OpenErr: errors.New("no device")}},
		{"resume", &playbacktest.Device{StartSuspended: true, ResumeErr: errors.New("policy")}},
		{"source", &playbacktest.Device{SourceErr: errors.New("busy")}},
		{"start", &playbacktest.Device{StartErr: errors.New("underrun")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := playback.NewController(tt.dev, 0)
			_, err := c.Play(context.Background(), silence(t, 1))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrPlayback)
			assert.False(t, c.Active())
		})
	}
}

func TestFailedPlayStillStopsPrevious(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)
	first, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)

	// The system suspends the output and then refuses to resume it.
	dev.Suspend()
	dev.ResumeErr = errors.New("policy")

	_, err = c.Play(context.Background(), silence(t, 1))
	require.ErrorIs(t, err, apperrors.ErrPlayback)

	assert.ErrorIs(t, first.Wait(context.Background()), playback.ErrStopped)
	assert.True(t, dev.Sources[0].Stopped())
	assert.Equal(t, 0, dev.Playing())
	assert.False(t, c.Active())
}

func TestPlayNilBuffer(t *testing.T) {
	c := playback.NewController(&playbacktest.Device{}, 0)
	_, err := c.Play(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrPlayback)
}

func TestWaitHonoursContext(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)
	sess, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sess.Wait(ctx), context.DeadlineExceeded)
}

func TestCloseReleasesOutput(t *testing.T) {
	dev := &playbacktest.Device{}
	c := playback.NewController(dev, 0)
	require.NoError(t, c.Close())

	_, err := c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, dev.Last().Stopped())

	_, err = c.Play(context.Background(), silence(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Opens)
}
