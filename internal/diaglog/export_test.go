package diaglog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, entries []LogEntry, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lectern-debug.ndjson")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	for _, e := range entries {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		_, err = f.Write(append(data, '\n'))
		require.NoError(t, err)
	}
	for _, line := range extra {
		_, err = fmt.Fprintln(f, line)
		require.NoError(t, err)
	}
	return path
}

func readExport(t *testing.T, path string) (DiagBundle, []LogEntry) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	s := bufio.NewScanner(f)
	require.True(t, s.Scan(), "header line")
	var bundle DiagBundle
	require.NoError(t, json.Unmarshal(s.Bytes(), &bundle))

	var entries []LogEntry
	for s.Scan() {
		var e LogEntry
		if json.Unmarshal(s.Bytes(), &e) == nil {
			entries = append(entries, e)
		}
	}
	require.NoError(t, s.Err())
	return bundle, entries
}

func lectureLog() []LogEntry {
	return []LogEntry{
		{Timestamp: "2026-01-01T00:00:00Z", Component: ComponentLecture, Event: EventStateChange, SessionID: "a", Reason: "start"},
		{Timestamp: "2026-01-01T00:00:01Z", Component: ComponentSpeech, Event: EventSpeechRequest, SessionID: "a"},
		{Timestamp: "2026-01-01T00:00:02Z", Component: ComponentLecture, Event: EventStaleResponse, SessionID: "a"},
		{Timestamp: "2026-01-01T00:00:03Z", Component: ComponentLecture, Event: EventStateChange, SessionID: "a", Reason: "stopped"},
		{Timestamp: "2026-01-01T00:01:00Z", Component: ComponentLecture, Event: EventStateChange, SessionID: "b", Reason: "start"},
		{Timestamp: "2026-01-01T00:01:01Z", Component: ComponentSpeech, Event: EventSpeechFailed, SessionID: "b"},
		{Timestamp: "2026-01-01T00:01:02Z", Component: ComponentLecture, Event: EventStateChange, SessionID: "b", Reason: "error"},
		{Timestamp: "2026-01-01T00:02:00Z", Component: ComponentDaemon, Event: EventCommand, Reason: "start"},
	}
}

func TestExportSummarisesSessions(t *testing.T) {
	src := writeLog(t, lectureLog())

	path, lines, err := Export(src, t.TempDir(), ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, lines)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "lectern-diag-"))

	bundle, entries := readExport(t, path)
	assert.Len(t, entries, 8)
	assert.Equal(t, 8, bundle.EntryCount)
	assert.NotEmpty(t, bundle.GoVersion)
	assert.Equal(t, src, bundle.LogFile)

	require.Len(t, bundle.Sessions, 2)
	a, b := bundle.Sessions[0], bundle.Sessions[1]
	assert.Equal(t, "a", a.SessionID)
	assert.Equal(t, 4, a.Entries)
	assert.Equal(t, "stopped", a.Outcome)
	assert.Equal(t, 1, a.Stale)
	assert.Equal(t, 0, a.Errors)
	assert.Equal(t, "2026-01-01T00:00:00Z", a.FirstSeen)
	assert.Equal(t, "2026-01-01T00:00:03Z", a.LastSeen)

	assert.Equal(t, "b", b.SessionID)
	assert.Equal(t, "error", b.Outcome)
	assert.Equal(t, 2, b.Errors)
}

func TestExportFiltersBySession(t *testing.T) {
	src := writeLog(t, lectureLog(), "not json")

	path, lines, err := Export(src, t.TempDir(), ExportOptions{SessionID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 3, lines)

	bundle, entries := readExport(t, path)
	assert.Equal(t, "b", bundle.SessionFilter)
	assert.Zero(t, bundle.Unparsed)
	require.Len(t, bundle.Sessions, 1)
	for _, e := range entries {
		assert.Equal(t, "b", e.SessionID)
	}
}

func TestExportUnknownSession(t *testing.T) {
	src := writeLog(t, lectureLog())
	_, _, err := Export(src, t.TempDir(), ExportOptions{SessionID: "zzz"})
	assert.Error(t, err)
}

func TestExportKeepsUnparsedLines(t *testing.T) {
	src := writeLog(t, lectureLog()[:1], "garbage line")

	path, lines, err := Export(src, t.TempDir(), ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, lines)
	bundle, _ := readExport(t, path)
	assert.Equal(t, 1, bundle.Unparsed)
}

func TestExportRunInfoIsRedacted(t *testing.T) {
	src := writeLog(t, lectureLog())
	run := RunInfo{
		Strategy: "chained",
		Backend:  "gemini",
		Model:    "gemini-2.5-flash-preview-tts",
		Voice:    "Kore",
		Config:   map[string]interface{}{"gemini": map[string]interface{}{"api_key": "secret", "voice": "Kore"}},
	}

	path, _, err := Export(src, t.TempDir(), ExportOptions{Run: run})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	bundle, _ := readExport(t, path)
	assert.Equal(t, "chained", bundle.Run.Strategy)
	assert.Equal(t, "Kore", bundle.Run.Voice)
}

func TestExportMissingFile(t *testing.T) {
	_, _, err := Export("/nonexistent/path/lectern-debug.ndjson", t.TempDir(), ExportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
