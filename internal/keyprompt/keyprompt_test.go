package keyprompt

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetter struct {
	key string
}

func (f *fakeSetter) SetAPIKey(key string) { f.key = key }
func (f *fakeSetter) HasKey() bool         { return f.key != "" }

func pipeWith(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	go func() {
		_, _ = w.WriteString(input)
		w.Close()
	}()
	return r
}

func TestStoreSet(t *testing.T) {
	setter := &fakeSetter{}
	changes := 0
	s := NewStore(setter, func() { changes++ })

	assert.False(t, s.HasKey())
	assert.ErrorIs(t, s.Set("   "), ErrEmptyKey)
	assert.Equal(t, 0, changes)

	require.NoError(t, s.Set("  abc \n"))
	assert.Equal(t, "abc", setter.key)
	assert.True(t, s.HasKey())
	assert.Equal(t, 1, changes)
}

func TestTerminalReadsPipedLine(t *testing.T) {
	setter := &fakeSetter{}
	var out bytes.Buffer
	term := &Terminal{Store: NewStore(setter, nil), In: pipeWith(t, "key-123\n"), Out: &out, Prompt: "key: "}

	require.NoError(t, term.SelectKey(context.Background()))
	assert.Equal(t, "key-123", setter.key)
	assert.True(t, term.HasKey())
	assert.Equal(t, "key: ", out.String())
}

func TestTerminalAcceptsLineWithoutNewline(t *testing.T) {
	setter := &fakeSetter{}
	term := &Terminal{Store: NewStore(setter, nil), In: pipeWith(t, "tail-key"), Out: &bytes.Buffer{}}
	require.NoError(t, term.SelectKey(context.Background()))
	assert.Equal(t, "tail-key", setter.key)
}

func TestTerminalEmptyInput(t *testing.T) {
	term := &Terminal{Store: NewStore(&fakeSetter{}, nil), In: pipeWith(t, "\n"), Out: &bytes.Buffer{}}
	assert.ErrorIs(t, term.SelectKey(context.Background()), ErrEmptyKey)
}

func TestTerminalCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	term := &Terminal{Store: NewStore(&fakeSetter{}, nil), In: r, Out: &bytes.Buffer{}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, term.SelectKey(ctx), context.DeadlineExceeded)
}
