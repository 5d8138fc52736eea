// Package session tracks the lecture lifecycle (idle, loading, playing,
// error) and the displayed subtitle index, and fans snapshots out to
// observers.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiroq/lectern/internal/apperrors"
)

// State is the lecture lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StateError   State = "error"
)

// Active reports whether a lecture is in progress.
func (s State) Active() bool {
	return s == StateLoading || s == StatePlaying
}

// Snapshot is an immutable copy of the machine state.
type Snapshot struct {
	SessionID     string    `json:"session_id,omitempty"`
	State         State     `json:"state"`
	Epoch         uint64    `json:"epoch"`
	SubtitleIndex int       `json:"subtitle_index"`
	Subtitle      string    `json:"subtitle"`
	Segments      int       `json:"segments"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	NeedsKey      bool      `json:"needs_key,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Machine is safe for concurrent use. Every operation that concerns one
// lecture run carries the epoch returned by Begin; calls with a stale epoch
// are rejected so late responses cannot disturb a newer run.
type Machine struct {
	mu       sync.Mutex
	segments []string

	state     State
	epoch     uint64
	index     int
	err       error
	sessionID string
	startedAt time.Time
	updatedAt time.Time

	subs   map[int]chan Snapshot
	nextID int
	now    func() time.Time
}

// New creates an idle machine over the given subtitle segments.
func New(segments []string) *Machine {
	return &Machine{
		segments: append([]string(nil), segments...),
		state:    StateIdle,
		subs:     make(map[int]chan Snapshot),
		now:      time.Now,
	}
}

// Begin starts a new run: idle or error to loading. The subtitle index
// resets to 0 and any previous error is cleared. It returns the run's epoch.
func (m *Machine) Begin() (uint64, error) {
	m.mu.Lock()
	if m.state.Active() {
		st := m.state
		m.mu.Unlock()
		return 0, fmt.Errorf("cannot begin: lecture already %s", st)
	}
	m.epoch++
	m.state = StateLoading
	m.index = 0
	m.err = nil
	m.sessionID = uuid.NewString()
	m.startedAt = m.now()
	epoch := m.epoch
	m.publishLocked()
	return epoch, nil
}

// MarkPlaying moves loading to playing. Already playing is accepted so the
// chained strategy can mark every segment.
func (m *Machine) MarkPlaying(epoch uint64) error {
	m.mu.Lock()
	if err := m.checkLocked(epoch); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state == StatePlaying {
		m.mu.Unlock()
		return nil
	}
	m.state = StatePlaying
	m.publishLocked()
	return nil
}

// Advance sets the subtitle index. The index never decreases and is clamped
// to the last segment; a no-op advance publishes nothing.
func (m *Machine) Advance(epoch uint64, idx int) error {
	m.mu.Lock()
	if err := m.checkLocked(epoch); err != nil {
		m.mu.Unlock()
		return err
	}
	if n := len(m.segments); n > 0 && idx > n-1 {
		idx = n - 1
	}
	if idx <= m.index {
		m.mu.Unlock()
		return nil
	}
	m.index = idx
	m.publishLocked()
	return nil
}

// Finish ends a run that played to the end: back to idle.
func (m *Machine) Finish(epoch uint64) error {
	m.mu.Lock()
	if err := m.checkLocked(epoch); err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = StateIdle
	m.epoch++
	m.publishLocked()
	return nil
}

// Stop cancels the current run, if any, and returns to idle. The epoch moves
// on so any in-flight response is discarded. Idempotent.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.state.Active() {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	m.epoch++
	m.publishLocked()
}

// Fail moves an active run to error. The subtitle index stays where it
// failed.
func (m *Machine) Fail(epoch uint64, err error) error {
	m.mu.Lock()
	if cerr := m.checkLocked(epoch); cerr != nil {
		m.mu.Unlock()
		return cerr
	}
	m.state = StateError
	m.err = err
	m.epoch++
	m.publishLocked()
	return nil
}

// Current reports whether epoch is the run in progress.
func (m *Machine) Current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Active() && epoch == m.epoch
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers an observer. The channel receives the current snapshot
// immediately and then every change; a slow observer only ever misses
// intermediate snapshots, never the latest one. cancel closes the channel.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan Snapshot, 1)
	ch <- m.snapshotLocked()
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (m *Machine) checkLocked(epoch uint64) error {
	if !m.state.Active() || epoch != m.epoch {
		return fmt.Errorf("stale epoch %d (current %d, %s)", epoch, m.epoch, m.state)
	}
	return nil
}

// publishLocked stamps the update, delivers the snapshot, and releases m.mu.
func (m *Machine) publishLocked() {
	m.updatedAt = m.now()
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	m.mu.Unlock()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     m.sessionID,
		State:         m.state,
		Epoch:         m.epoch,
		SubtitleIndex: m.index,
		Segments:      len(m.segments),
		StartedAt:     m.startedAt,
		UpdatedAt:     m.updatedAt,
	}
	if len(m.segments) > 0 {
		snap.Subtitle = m.segments[m.index]
	}
	if m.err != nil {
		snap.Error = apperrors.UserMessage(m.err)
		snap.ErrorKind = apperrors.KindOf(m.err).String()
		snap.NeedsKey = apperrors.IsCredential(m.err)
	}
	return snap
}
