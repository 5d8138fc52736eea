package tui

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tiroq/lectern/internal/keyprompt"
	"github.com/tiroq/lectern/internal/session"
)

// animInterval paces the mouth and the loading spinner.
const animInterval = 150 * time.Millisecond

// gestureChance is the per-frame probability threshold for a new gesture.
const gestureChance = 0.8

var errKeyCancelled = errors.New("key selection cancelled")

var spinnerFrames = []string{"◐", "◓", "◑", "◒"}

// Controller starts and stops the lecture.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
}

// Source supplies lifecycle snapshots.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Engine describes the speech backend in the footer.
type Engine struct {
	Backend  string
	Model    string
	Voice    string
	Language string
}

// Options configures the model.
type Options struct {
	Controller Controller
	Source     Source
	// Keys enables the in-app key entry. Nil hides it.
	Keys   *keyprompt.Store
	Engine Engine
	Title  string
	Rand   *rand.Rand
}

type snapshotMsg session.Snapshot

type animMsg time.Time

type keyRequestMsg struct {
	reply chan error
}

// Model is the lecture hall view.
type Model struct {
	opts   Options
	styles Styles
	rnd    *rand.Rand

	width  int
	height int

	snap      session.Snapshot
	updates   <-chan session.Snapshot
	unsub     func()
	animating bool
	mouth     bool
	gesture   int
	frame     int
	notice    string

	entering bool
	keyBuf   []rune
	keyReply chan error
	keyErr   string
}

// NewModel subscribes to the source and returns the initial model.
func NewModel(opts Options) Model {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	updates, unsub := opts.Source.Subscribe()
	return Model{
		opts:    opts,
		styles:  DefaultStyles(),
		rnd:     rnd,
		snap:    opts.Source.Snapshot(),
		updates: updates,
		unsub:   unsub,
		width:   80,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return waitSnapshot(m.updates)
}

func waitSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func animTick() tea.Cmd {
	return tea.Tick(animInterval, func(t time.Time) tea.Msg {
		return animMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		return m.applySnapshot(session.Snapshot(msg))

	case animMsg:
		return m.animate()

	case keyRequestMsg:
		m = m.openKeyEntry(msg.reply)
		return m, nil

	case tea.KeyMsg:
		if m.entering {
			return m.handleKeyEntry(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applySnapshot(snap session.Snapshot) (tea.Model, tea.Cmd) {
	m.snap = snap
	cmds := []tea.Cmd{waitSnapshot(m.updates)}
	if snap.State != session.StatePlaying {
		m.mouth = false
		m.gesture = gestureRest
	}
	if snap.State.Active() {
		m.notice = ""
		if !m.animating {
			m.animating = true
			cmds = append(cmds, animTick())
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) animate() (tea.Model, tea.Cmd) {
	if !m.snap.State.Active() {
		m.animating = false
		return m, nil
	}
	m.frame++
	if m.snap.State == session.StatePlaying {
		m.mouth = !m.mouth
		if m.rnd.Float64() > gestureChance {
			m.gesture = m.rnd.Intn(gestureCount)
		}
	}
	return m, animTick()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()

	case "enter", "s":
		if m.snap.State.Active() {
			return m, nil
		}
		// The run outlives this key press.
		if err := m.opts.Controller.Start(context.Background()); err != nil {
			m.notice = err.Error()
		}
		return m, nil

	case "x":
		m.opts.Controller.Stop()
		return m, nil

	case "k":
		if m.opts.Keys != nil {
			m = m.openKeyEntry(nil)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.opts.Controller.Stop()
	if m.keyReply != nil {
		m.keyReply <- errKeyCancelled
		m.keyReply = nil
	}
	if m.unsub != nil {
		m.unsub()
	}
	return m, tea.Quit
}

func (m Model) openKeyEntry(reply chan error) Model {
	if m.keyReply != nil && reply != nil {
		// Only one pending request is honoured.
		reply <- errKeyCancelled
		return m
	}
	m.entering = true
	m.keyBuf = nil
	m.keyErr = ""
	if reply != nil {
		m.keyReply = reply
	}
	return m
}

func (m Model) closeKeyEntry(err error) Model {
	m.entering = false
	m.keyBuf = nil
	m.keyErr = ""
	if m.keyReply != nil {
		m.keyReply <- err
		m.keyReply = nil
	}
	return m
}

func (m Model) handleKeyEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m = m.closeKeyEntry(errKeyCancelled)
		return m.quit()
	case tea.KeyEsc:
		return m.closeKeyEntry(errKeyCancelled), nil
	case tea.KeyEnter:
		if m.opts.Keys == nil {
			return m.closeKeyEntry(errKeyCancelled), nil
		}
		if err := m.opts.Keys.Set(string(m.keyBuf)); err != nil {
			m.keyErr = err.Error()
			return m, nil
		}
		m.notice = "API key updated"
		return m.closeKeyEntry(nil), nil
	case tea.KeyBackspace:
		if len(m.keyBuf) > 0 {
			m.keyBuf = m.keyBuf[:len(m.keyBuf)-1]
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		m.keyBuf = append(m.keyBuf, msg.Runes...)
		m.keyErr = ""
		return m, nil
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	w := m.stageWidth()
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("VOXEL FREUD LIVE"))
	b.WriteString("\n")
	tagline := "Chinese Psychoanalysis Lecture"
	if m.opts.Title != "" {
		tagline += " · " + m.opts.Title
	}
	b.WriteString(m.styles.Tagline.Render(tagline))
	b.WriteString("\n\n")

	b.WriteString(m.styles.Stage.Width(w).Render(m.renderStage(w - 2)))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(w))
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.helpLine()))
	return b.String()
}

func (m Model) stageWidth() int {
	w := m.width - 2
	if w > 72 {
		w = 72
	}
	if w < 40 {
		w = 40
	}
	return w
}

func (m Model) renderStage(w int) string {
	var parts []string

	if m.snap.Error != "" && m.snap.State == session.StateError {
		fault := "SYSTEM FAULT: " + m.snap.Error
		if m.opts.Keys != nil {
			fault += "\n[k] Update API Key"
		}
		parts = append(parts, lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Fault.Width(w-8).Render(fault)))
	}

	// The lecturer steps forward once the lecture is playing.
	if m.snap.State != session.StatePlaying {
		parts = append(parts, "")
	}
	parts = append(parts,
		lipgloss.PlaceHorizontal(w, lipgloss.Center, lecturer(m.snap.State == session.StatePlaying && m.mouth, m.gesture)),
		stage(w),
		"",
	)

	switch {
	case m.entering:
		parts = append(parts, m.renderKeyEntry(w))
	case m.snap.State == session.StateLoading:
		frame := spinnerFrames[m.frame%len(spinnerFrames)]
		parts = append(parts, lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Loading.Render(frame+" PREPARING AUDIENCE...")))
	case m.snap.State == session.StatePlaying:
		parts = append(parts,
			lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Subtitle.Width(w-4).Render(m.snap.Subtitle)),
			lipgloss.PlaceHorizontal(w, lipgloss.Right, m.styles.Muted.Render(fmt.Sprintf("%d/%d  [x] STOP", m.snap.SubtitleIndex+1, m.snap.Segments))),
		)
	default:
		parts = append(parts, lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Button.Render("[enter] START LECTURE (AI VOICE)")))
	}

	if m.notice != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Muted.Render(m.notice)))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderKeyEntry(w int) string {
	masked := strings.Repeat("•", len(m.keyBuf))
	lines := []string{
		m.styles.Heading.Render("Select API key"),
		"Paste a paid Gemini key: " + masked + "▏",
		m.styles.Help.Render("[enter] save  [esc] cancel"),
	}
	if m.keyErr != "" {
		lines = append(lines, m.styles.Fault.Render(m.keyErr))
	}
	return lipgloss.PlaceHorizontal(w, lipgloss.Center, m.styles.Panel.Render(strings.Join(lines, "\n")))
}

func (m Model) renderFooter(w int) string {
	e := m.opts.Engine
	engine := m.styles.Heading.Render("ENGINE") + "\n" +
		"API: " + e.Backend + " " + e.Model + "\n" +
		"Language: " + e.Language + "\n" +
		"Voice: " + e.Voice
	trouble := m.styles.Heading.Render("TROUBLESHOOT") + "\n" +
		"If audio doesn't play, ensure you've\nselected a paid API key and that your\nvolume is up."
	half := w/2 - 1
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Panel.Width(half).Render(engine),
		m.styles.Panel.Width(half).Render(trouble),
	)
}

func (m Model) helpLine() string {
	keys := []string{"enter/s start", "x stop"}
	if m.opts.Keys != nil {
		keys = append(keys, "k key")
	}
	keys = append(keys, "q quit")
	return strings.Join(keys, " · ")
}
