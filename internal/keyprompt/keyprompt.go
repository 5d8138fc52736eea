// Package keyprompt lets the user pick the speech API key at runtime, the
// terminal counterpart of the lecture's "select key" action.
package keyprompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tiroq/lectern/internal/speech"
)

// ErrEmptyKey is returned when the user submits nothing.
var ErrEmptyKey = errors.New("no API key entered")

// Store applies a selected key to the speech backend.
type Store struct {
	setter   speech.KeySetter
	onChange func()
}

// NewStore wraps setter. onChange, when set, runs after every accepted key,
// e.g. to drop payloads cached under the old one.
func NewStore(setter speech.KeySetter, onChange func()) *Store {
	return &Store{setter: setter, onChange: onChange}
}

// HasKey reports whether the backend holds a key.
func (s *Store) HasKey() bool {
	return s.setter.HasKey()
}

// Set trims and installs key.
func (s *Store) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	s.setter.SetAPIKey(key)
	if s.onChange != nil {
		s.onChange()
	}
	return nil
}

// Terminal prompts on a terminal with hidden input, or reads one line when
// In is not a terminal.
type Terminal struct {
	Store  *Store
	In     *os.File
	Out    io.Writer
	Prompt string
}

// NewTerminal prompts on stdin and stderr.
func NewTerminal(store *Store) *Terminal {
	return &Terminal{
		Store:  store,
		In:     os.Stdin,
		Out:    os.Stderr,
		Prompt: "Gemini API key (paid key required for TTS): ",
	}
}

// HasKey implements lecture.KeySelector.
func (t *Terminal) HasKey() bool {
	return t.Store.HasKey()
}

// SelectKey implements lecture.KeySelector. A cancelled ctx abandons the
// pending read.
func (t *Terminal) SelectKey(ctx context.Context) error {
	type result struct {
		key string
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := t.read()
		done <- result{key, err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("read API key: %w", r.err)
		}
		return t.Store.Set(r.key)
	}
}

func (t *Terminal) read() (string, error) {
	fmt.Fprint(t.Out, t.Prompt)

	fd := int(t.In.Fd())
	if term.IsTerminal(fd) {
		key, err := term.ReadPassword(fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", err
		}
		return string(key), nil
	}

	// Fallback for non-terminal (piped input)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
