// Package tui is the terminal lecture hall: the voxel lecturer on stage,
// the subtitle box, and the start, stop and key controls.
package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tiroq/lectern/internal/keyprompt"
)

var errNoProgram = errors.New("key prompt is not attached to a running view")

// Prompter is the lecture.KeySelector for the TUI: SelectKey opens the
// in-app key entry and waits for the user.
type Prompter struct {
	store *keyprompt.Store

	mu   sync.Mutex
	send func(tea.Msg)
}

// NewPrompter wraps store.
func NewPrompter(store *keyprompt.Store) *Prompter {
	return &Prompter{store: store}
}

// Attach connects the prompter to a running program.
func (p *Prompter) Attach(send func(tea.Msg)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = send
}

// HasKey implements lecture.KeySelector.
func (p *Prompter) HasKey() bool {
	return p.store.HasKey()
}

// SelectKey implements lecture.KeySelector.
func (p *Prompter) SelectKey(ctx context.Context) error {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		return errNoProgram
	}

	reply := make(chan error, 1)
	send(keyRequestMsg{reply: reply})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-reply:
		return err
	}
}

// Run shows the lecture hall until the user quits or ctx ends.
func Run(ctx context.Context, opts Options, prompter *Prompter) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if prompter != nil {
		prompter.Attach(p.Send)
		defer prompter.Attach(nil)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
