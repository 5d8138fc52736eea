package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/lectern/internal/session"
)

// Status is what the daemon publishes after every state change.
type Status struct {
	session.Snapshot
	Strategy    string    `json:"strategy"`
	Backend     string    `json:"backend"`
	LastCommand Command   `json:"last_command,omitempty"`
	PID         int       `json:"pid"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatusPath returns the status file inside dir.
func StatusPath(dir string) string {
	return filepath.Join(dir, statusFile)
}

// WriteStatus persists status to dir/status.json using atomic write
func WriteStatus(dir string, status *Status) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(dir), status)
}

// ReadStatus loads the last published status from dir/status.json
func ReadStatus(dir string) (*Status, error) {
	data, err := os.ReadFile(StatusPath(dir))
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil

	return os.Rename(tmpPath, path)
}
