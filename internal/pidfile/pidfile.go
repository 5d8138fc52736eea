// Package pidfile keeps a single lectern daemon per daemon directory.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning is returned by Acquire when a live process owns the file.
var ErrRunning = errors.New("another lectern daemon is already running")

// PIDFile is a held PID file.
type PIDFile struct {
	path string
	pid  int
}

// Path returns the PID file for name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".pid")
}

// Acquire writes the current PID to path. A file left by a dead process is
// replaced; one owned by a live process yields ErrRunning.
func Acquire(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	if pid, ok := Running(path); ok {
		return nil, fmt.Errorf("%w (pid %d)", ErrRunning, pid)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale pid file: %w", err)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Running reports the PID recorded at path when that process is alive.
func Running(path string) (int, bool) {
	pid, err := read(path)
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// Release deletes the file if it still holds our PID.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if pid, err := read(p.path); err == nil && pid == p.pid {
		return os.Remove(p.path)
	}
	return nil
}

func read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// alive probes pid with signal 0. EPERM means the process exists but
// belongs to someone else.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
