package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// Version is injected at link time from the main package; defaults to "dev".
var Version = "dev"

// RunInfo describes how lectern was configured when the bundle was made.
type RunInfo struct {
	Strategy string      `json:"strategy,omitempty"`
	Backend  string      `json:"backend,omitempty"`
	Model    string      `json:"model,omitempty"`
	Voice    string      `json:"voice,omitempty"`
	Script   string      `json:"script,omitempty"`
	Config   interface{} `json:"config,omitempty"` // redacted before write
}

// ExportOptions controls Export. A zero value exports every line.
type ExportOptions struct {
	Run RunInfo
	// SessionID keeps only lines tagged with this lecture session.
	SessionID string
}

// SessionSummary condenses the lines of one lecture session.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Entries   int    `json:"entries"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
	Outcome   string `json:"outcome,omitempty"`
	Errors    int    `json:"errors"`
	Stale     int    `json:"stale_discarded"`
}

// DiagBundle is the first line written to the export file (valid NDJSON).
type DiagBundle struct {
	ExportedAt     string           `json:"exported_at"`
	LecternVersion string           `json:"lectern_version"`
	GoVersion      string           `json:"go_version"`
	OS             string           `json:"os"`
	Arch           string           `json:"arch"`
	LogFile        string           `json:"log_file"`
	Run            RunInfo          `json:"run"`
	SessionFilter  string           `json:"session_filter,omitempty"`
	EntryCount     int              `json:"entry_count"`
	Unparsed       int              `json:"unparsed_lines,omitempty"`
	Sessions       []SessionSummary `json:"sessions"`
}

// Export copies the diagnostic log at logPath to dest/lectern-diag-<ts>.ndjson
// behind a DiagBundle header holding the run settings and a per-session
// summary. Lines from other sessions are dropped when opts.SessionID is set.
// Returns the written path and the number of log lines included.
func Export(logPath, dest string, opts ExportOptions) (path string, lines int, err error) {
	src, err := os.Open(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("log file not found at %s: %w", logPath, os.ErrNotExist)
		}
		return "", 0, fmt.Errorf("log file unreadable: %w", err)
	}
	defer func() { _ = src.Close() }()

	bundle := DiagBundle{
		LecternVersion: Version,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		LogFile:        logPath,
		Run:            opts.Run,
		SessionFilter:  opts.SessionID,
	}
	if bundle.Run.Config != nil {
		bundle.Run.Config = Redact(bundle.Run.Config)
	}

	// The log is capped at DefaultMaxSize, so buffering it whole is fine.
	var kept [][]byte
	sessions := map[string]*SessionSummary{}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), DefaultMaxSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		var entry LogEntry
		if jerr := json.Unmarshal(raw, &entry); jerr != nil {
			if opts.SessionID != "" {
				continue
			}
			bundle.Unparsed++
		} else {
			if opts.SessionID != "" && entry.SessionID != opts.SessionID {
				continue
			}
			summarize(sessions, entry)
		}
		line := make([]byte, len(raw))
		copy(line, raw)
		kept = append(kept, line)
	}
	if serr := scanner.Err(); serr != nil {
		return "", 0, fmt.Errorf("log file unreadable: %w", serr)
	}
	if opts.SessionID != "" && len(kept) == 0 {
		return "", 0, fmt.Errorf("no entries for session %s", opts.SessionID)
	}

	bundle.EntryCount = len(kept)
	bundle.Sessions = sortedSessions(sessions)

	now := time.Now().UTC()
	bundle.ExportedAt = now.Format(time.RFC3339)
	outPath := filepath.Join(dest, "lectern-diag-"+now.Format("20060102T150405")+".ndjson")

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("output file could not be created: %w", err)
	}
	defer func() { _ = out.Close() }()

	header, err := json.Marshal(bundle)
	if err != nil {
		return "", 0, err
	}
	w := bufio.NewWriter(out)
	if _, err := w.Write(append(header, '\n')); err != nil {
		return "", 0, err
	}
	for _, line := range kept {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return outPath, len(kept), nil
}

func summarize(sessions map[string]*SessionSummary, e LogEntry) {
	if e.SessionID == "" {
		return
	}
	s, ok := sessions[e.SessionID]
	if !ok {
		s = &SessionSummary{SessionID: e.SessionID, FirstSeen: e.Timestamp}
		sessions[e.SessionID] = s
	}
	s.Entries++
	s.LastSeen = e.Timestamp
	switch {
	case e.Event == EventStaleResponse:
		s.Stale++
	case e.Event == EventSpeechFailed:
		s.Errors++
	case e.Event == EventStateChange && e.Reason == "error":
		s.Errors++
		s.Outcome = e.Reason
	case e.Event == EventStateChange && e.Reason != "start":
		s.Outcome = e.Reason
	}
}

// sortedSessions orders summaries by first appearance.
func sortedSessions(m map[string]*SessionSummary) []SessionSummary {
	out := make([]SessionSummary, 0, len(m))
	for _, s := range m {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen == out[j].FirstSeen {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].FirstSeen < out[j].FirstSeen
	})
	return out
}
