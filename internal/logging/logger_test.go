package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesDayStampedFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(&Config{LogDir: dir, Level: LevelDebug})
	require.NoError(t, err)

	speech := l.Component("speech")
	speech.Info().Str("model", "tts").Msg("request sent")
	require.NoError(t, l.Close())

	assert.True(t, strings.HasPrefix(l.Path(), dir))
	assert.Contains(t, l.Path(), "lectern_")
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		if m["message"] == "request sent" {
			found = true
			assert.Equal(t, "speech", m["component"])
			assert.Equal(t, "lectern", m["app"])
			assert.Equal(t, "tts", m["model"])
		}
	}
	assert.True(t, found)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, LevelWarn)
	root := l.Zerolog()
	root.Info().Msg("quiet")
	root.Warn().Msg("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestRecentKeepsWarningsOnly(t *testing.T) {
	l := NewWriter(&bytes.Buffer{}, LevelDebug)
	l.maxHist = 2

	log := l.Component("lecture")
	log.Info().Msg("ignored")
	log.Warn().Msg("first")
	log.Error().Msg("second")
	log.Warn().Msg("third")

	recent := l.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
	assert.Equal(t, "third", recent[1].Message)
	assert.Equal(t, "warn", recent[1].Level)
	assert.Equal(t, "lecture", recent[1].Component)
	assert.Len(t, l.Recent(1), 1)

	root := l.Zerolog()
	root.Error().Msg("root")
	last := l.Recent(1)[0]
	assert.Equal(t, "root", last.Message)
	assert.Empty(t, last.Component)
}

func TestRecentEmpty(t *testing.T) {
	l := NewWriter(&bytes.Buffer{}, LevelInfo)
	assert.Empty(t, l.Recent(5))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(LevelDebug))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(LevelError))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
