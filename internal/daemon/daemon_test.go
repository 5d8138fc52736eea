package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/lectern/internal/ipc"
	"github.com/tiroq/lectern/internal/session"
)

// machineControl drives a session.Machine the way the lecture runner would.
type machineControl struct {
	mu     sync.Mutex
	m      *session.Machine
	starts int
	stops  int
}

func (c *machineControl) Start(context.Context) error {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	epoch, err := c.m.Begin()
	if err != nil {
		return err
	}
	return c.m.MarkPlaying(epoch)
}

func (c *machineControl) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.m.Stop()
}

func (c *machineControl) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops
}

func startDaemon(t *testing.T) (string, *machineControl, <-chan error, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	m := session.New([]string{"一", "二"})
	ctl := &machineControl{m: m}
	d := New(ctl, m, Options{Dir: dir, PollInterval: 100 * time.Millisecond, Strategy: "interval", Backend: "gemini"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := ipc.ReadStatus(dir)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "initial status written")
	return dir, ctl, done, cancel
}

func statusState(dir string) session.State {
	st, err := ipc.ReadStatus(dir)
	if err != nil {
		return ""
	}
	return st.State
}

func TestStartStopViaCommandFile(t *testing.T) {
	dir, ctl, done, cancel := startDaemon(t)
	defer cancel()

	require.NoError(t, ipc.WriteCommand(dir, ipc.CmdStart))
	require.Eventually(t, func() bool { return statusState(dir) == session.StatePlaying }, 3*time.Second, 20*time.Millisecond)

	st, err := ipc.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, "interval", st.Strategy)
	assert.Equal(t, "gemini", st.Backend)
	assert.NotEmpty(t, st.SessionID)

	require.NoError(t, ipc.WriteCommand(dir, ipc.CmdStop))
	require.Eventually(t, func() bool { return statusState(dir) == session.StateIdle }, 3*time.Second, 20*time.Millisecond)

	starts, _ := ctl.counts()
	assert.Equal(t, 1, starts)

	require.NoError(t, ipc.WriteCommand(dir, ipc.CmdQuit))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not quit")
	}
}

func TestCancelStopsLecture(t *testing.T) {
	dir, ctl, done, cancel := startDaemon(t)

	require.NoError(t, ipc.WriteCommand(dir, ipc.CmdToggle))
	require.Eventually(t, func() bool { return statusState(dir) == session.StatePlaying }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}
	_, stops := ctl.counts()
	assert.GreaterOrEqual(t, stops, 1)
	assert.Equal(t, session.StateIdle, statusState(dir), "final status written on exit")
}

func TestHandleToggle(t *testing.T) {
	m := session.New([]string{"a"})
	ctl := &machineControl{m: m}
	d := New(ctl, m, Options{Dir: t.TempDir()})
	ctx := context.Background()

	assert.False(t, d.Handle(ctx, ipc.CmdToggle))
	assert.Equal(t, session.StatePlaying, m.Snapshot().State)
	assert.False(t, d.Handle(ctx, ipc.CmdToggle))
	assert.Equal(t, session.StateIdle, m.Snapshot().State)

	// A second start while playing is refused by the machine, not fatal.
	assert.False(t, d.Handle(ctx, ipc.CmdStart))
	assert.False(t, d.Handle(ctx, ipc.CmdStart))
	assert.Equal(t, session.StatePlaying, m.Snapshot().State)

	assert.True(t, d.Handle(ctx, ipc.CmdQuit))

	st, err := ipc.ReadStatus(d.opts.Dir)
	require.NoError(t, err)
	assert.Equal(t, ipc.CmdStart, st.LastCommand)
}

func TestStaleCommandIgnoredAtStartup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ipc.WriteCommand(dir, ipc.CmdStart))

	m := session.New([]string{"a"})
	ctl := &machineControl{m: m}
	d := New(ctl, m, Options{Dir: dir, PollInterval: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	starts, _ := ctl.counts()
	assert.Equal(t, 0, starts)
	cancel()
	<-done
}

func TestStatusNeverGoesBackwards(t *testing.T) {
	dir := t.TempDir()
	m := session.New([]string{"一", "二"})
	d := New(&machineControl{m: m}, m, Options{Dir: dir})

	older := m.Snapshot()
	epoch, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.MarkPlaying(epoch))
	newer := m.Snapshot()

	d.writeStatus(newer)
	// A publish that lost the race delivers the older snapshot last.
	older.UpdatedAt = newer.UpdatedAt.Add(-time.Millisecond)
	d.writeStatus(older)

	st, err := ipc.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, session.StatePlaying, st.State)

	d.writeStatus(m.Snapshot())
	st, err = ipc.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, session.StatePlaying, st.State, "equal timestamps still write")
}
