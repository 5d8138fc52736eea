// Package ipc is the file-based channel between the lectern daemon and its
// controllers: commands go in cmd.txt, state comes back in status.json.
package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

// Command represents a control request sent to the daemon
type Command string

const (
	CmdStart  Command = "start"  // Begin the lecture
	CmdStop   Command = "stop"   // Stop the lecture and silence audio
	CmdToggle Command = "toggle" // Start when idle, stop when active
	CmdQuit   Command = "quit"   // Shutdown daemon
)

const (
	commandFile = "cmd.txt"
	statusFile  = "status.json"
)

// ParseCommand validates s. Unknown commands return false.
func ParseCommand(s string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	switch cmd {
	case CmdStart, CmdStop, CmdToggle, CmdQuit:
		return cmd, true
	}
	return "", false
}

// CommandPath returns the command file inside dir.
func CommandPath(dir string) string {
	return filepath.Join(dir, commandFile)
}

// WriteCommand writes a command to dir/cmd.txt
func WriteCommand(dir string, cmd Command) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(CommandPath(dir), []byte(string(cmd)), 0644)
}

// ReadCommand reads and clears dir/cmd.txt.
// Returns empty string if no command or file doesn't exist
func ReadCommand(dir string) (Command, error) {
	path := CommandPath(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		return "", err
	}

	// Invalid commands are ignored
	cmd, _ := ParseCommand(string(data))
	return cmd, nil
}
