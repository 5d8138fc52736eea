package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/lectern/internal/apperrors"
)

var segs = []string{"zero", "one", "two"}

func TestLifecycle(t *testing.T) {
	m := New(segs)
	assert.Equal(t, StateIdle, m.Snapshot().State)

	epoch, err := m.Begin()
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.NotEmpty(t, snap.SessionID)
	assert.True(t, m.Current(epoch))

	require.NoError(t, m.MarkPlaying(epoch))
	require.NoError(t, m.MarkPlaying(epoch), "playing is re-entrant")
	require.NoError(t, m.Advance(epoch, 1))
	assert.Equal(t, "one", m.Snapshot().Subtitle)

	require.NoError(t, m.Finish(epoch))
	assert.Equal(t, StateIdle, m.Snapshot().State)
	assert.False(t, m.Current(epoch))
}

func TestBeginWhileActiveFails(t *testing.T) {
	m := New(segs)
	_, err := m.Begin()
	require.NoError(t, err)
	_, err = m.Begin()
	assert.Error(t, err)
}

func TestAdvanceIsMonotoneAndClamped(t *testing.T) {
	m := New(segs)
	epoch, _ := m.Begin()

	require.NoError(t, m.Advance(epoch, 2))
	require.NoError(t, m.Advance(epoch, 1))
	assert.Equal(t, 2, m.Snapshot().SubtitleIndex, "never decreases")

	require.NoError(t, m.Advance(epoch, 50))
	assert.Equal(t, 2, m.Snapshot().SubtitleIndex, "never exceeds the last segment")
}

func TestStopDiscardsInFlightEpoch(t *testing.T) {
	m := New(segs)
	epoch, _ := m.Begin()

	m.Stop()
	m.Stop()
	assert.Equal(t, StateIdle, m.Snapshot().State)
	assert.False(t, m.Current(epoch))

	assert.Error(t, m.MarkPlaying(epoch))
	assert.Error(t, m.Advance(epoch, 1))
	assert.Error(t, m.Fail(epoch, errors.New("late")))
	assert.Equal(t, StateIdle, m.Snapshot().State, "late response leaves idle alone")
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	m := New(segs)
	ch, cancel := m.Subscribe()
	defer cancel()
	<-ch

	m.Stop()
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot %+v", s)
	default:
	}
}

func TestFailFreezesIndexAndBeginResets(t *testing.T) {
	m := New(segs)
	epoch, _ := m.Begin()
	require.NoError(t, m.MarkPlaying(epoch))
	require.NoError(t, m.Advance(epoch, 2))

	cause := apperrors.Request("segment 2", errors.New("connection reset"))
	require.NoError(t, m.Fail(epoch, cause))

	snap := m.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, 2, snap.SubtitleIndex)
	assert.Equal(t, "request", snap.ErrorKind)
	assert.Contains(t, snap.Error, "speech request failed")
	assert.False(t, snap.NeedsKey)

	next, err := m.Begin()
	require.NoError(t, err)
	assert.Greater(t, next, epoch)
	snap = m.Snapshot()
	assert.Equal(t, 0, snap.SubtitleIndex)
	assert.Empty(t, snap.Error)
}

func TestCredentialFailureNeedsKey(t *testing.T) {
	m := New(segs)
	epoch, _ := m.Begin()
	require.NoError(t, m.Fail(epoch, apperrors.Credential("API key not valid", nil)))
	assert.True(t, m.Snapshot().NeedsKey)
}

func TestSubscribeReceivesLatest(t *testing.T) {
	m := New(segs)
	ch, cancel := m.Subscribe()

	first := <-ch
	assert.Equal(t, StateIdle, first.State)

	epoch, _ := m.Begin()
	require.NoError(t, m.MarkPlaying(epoch))
	require.NoError(t, m.Advance(epoch, 1))

	latest := <-ch
	assert.Equal(t, StatePlaying, latest.State)
	assert.Equal(t, 1, latest.SubtitleIndex)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok, "cancel closes the channel")
	require.NoError(t, m.Advance(epoch, 2), "publishing after cancel must not panic")
}
