// Package daemon runs the lecture headless: it takes commands from the
// command file and republishes the session as status.json after every change.
package daemon

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/ipc"
	"github.com/tiroq/lectern/internal/session"
)

// settleDelay lets a writer finish before the command file is read.
const settleDelay = 50 * time.Millisecond

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

// Options describes the daemon.
type Options struct {
	// Dir holds cmd.txt and status.json.
	Dir string
	// PollInterval paces the fallback check of the command file.
	PollInterval time.Duration
	Strategy     string
	Backend      string
}

// Daemon serves commands until quit or cancellation.
type Daemon struct {
	opts   Options
	ctl    Controller
	source Source
	logger zerolog.Logger
	diag   *diaglog.Logger

	mu      sync.Mutex
	lastCmd ipc.Command

	// writeMu orders status writes; lastWritten is the UpdatedAt of the
	// snapshot on disk.
	writeMu     sync.Mutex
	lastWritten time.Time
}

// New creates a daemon.
func New(ctl Controller, source Source, opts Options) *Daemon {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Daemon{
		opts:   opts,
		ctl:    ctl,
		source: source,
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the operational logger.
func (d *Daemon) SetLogger(l zerolog.Logger) {
	d.logger = l.With().Str("component", diaglog.ComponentDaemon).Logger()
}

// SetDiag injects the diagnostic logger.
func (d *Daemon) SetDiag(l *diaglog.Logger) {
	d.diag = l
}

// Run blocks until a quit command arrives or ctx is cancelled. Any lecture
// in progress is stopped on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.opts.Dir, 0755); err != nil {
		return err
	}
	// Drop a command left over from a previous run.
	if _, err := ipc.ReadCommand(d.opts.Dir); err != nil {
		d.logger.Warn().Err(err).Msg("failed to clear stale command")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.publish(ctx)
	}()

	cmds := make(chan ipc.Command)
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.watchCommands(ctx, cmds)
	}()

	d.logger.Info().Str("dir", d.opts.Dir).Int("pid", os.Getpid()).Msg("daemon running")
	defer func() {
		d.ctl.Stop()
		cancel()
		wg.Wait()
		d.writeStatus(d.source.Snapshot())
		d.logger.Info().Msg("daemon stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-cmds:
			if d.Handle(ctx, cmd) {
				return nil
			}
		}
	}
}

// Handle applies one command and reports whether the daemon should exit.
func (d *Daemon) Handle(ctx context.Context, cmd ipc.Command) bool {
	d.logger.Info().Str("command", string(cmd)).Msg("received command")
	d.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentDaemon,
		Event:     diaglog.EventCommand,
		Reason:    string(cmd),
	})
	d.mu.Lock()
	d.lastCmd = cmd
	d.mu.Unlock()

	switch cmd {
	case ipc.CmdStart:
		d.start(ctx)
	case ipc.CmdStop:
		d.ctl.Stop()
	case ipc.CmdToggle:
		if d.source.Snapshot().State.Active() {
			d.ctl.Stop()
		} else {
			d.start(ctx)
		}
	case ipc.CmdQuit:
		d.logger.Info().Msg("quit command received - shutting down")
		return true
	default:
		d.logger.Warn().Str("command", string(cmd)).Msg("unknown command")
	}
	// Commands that change nothing still refresh last_command.
	d.writeStatus(d.source.Snapshot())
	return false
}

func (d *Daemon) start(ctx context.Context) {
	if err := d.ctl.Start(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("start failed")
	}
}

// publish writes status.json for every snapshot until ctx ends.
func (d *Daemon) publish(ctx context.Context) {
	ch, unsub := d.source.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			d.writeStatus(snap)
		}
	}
}

// writeStatus persists snap unless a newer snapshot is already on disk.
// Handle and publish both write, and publish may carry an older snapshot.
func (d *Daemon) writeStatus(snap session.Snapshot) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if snap.UpdatedAt.Before(d.lastWritten) {
		return
	}

	d.mu.Lock()
	last := d.lastCmd
	d.mu.Unlock()
	status := &ipc.Status{
		Snapshot:    snap,
		Strategy:    d.opts.Strategy,
		Backend:     d.opts.Backend,
		LastCommand: last,
		PID:         os.Getpid(),
		Timestamp:   time.Now(),
	}
	if err := ipc.WriteStatus(d.opts.Dir, status); err != nil {
		d.logger.Error().Err(err).Msg("failed to write status")
		return
	}
	d.lastWritten = snap.UpdatedAt
}

// watchCommands monitors cmd.txt with fsnotify, backed by a modtime poll in
// case events are missed, and falls back to pure polling when the watcher
// is unavailable.
func (d *Daemon) watchCommands(ctx context.Context, out chan<- ipc.Command) {
	cmdPath := ipc.CommandPath(d.opts.Dir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warn().Err(err).Msg("fsnotify not available, falling back to polling")
		d.pollCommands(ctx, out)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(d.opts.Dir); err != nil {
		d.logger.Warn().Err(err).Msg("failed to watch command directory, falling back to polling")
		d.pollCommands(ctx, out)
		return
	}
	d.logger.Debug().Msg("command watcher started (using fsnotify)")

	pollTicker := time.NewTicker(d.opts.PollInterval)
	defer pollTicker.Stop()
	lastCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				d.logger.Warn().Msg("fsnotify watcher closed, switching to polling")
				d.pollCommands(ctx, out)
				return
			}
			if event.Name == cmdPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				d.deliver(ctx, out)
				lastCheck = time.Now()
			}

		case <-pollTicker.C:
			if info, err := os.Stat(cmdPath); err == nil && info.ModTime().After(lastCheck) {
				d.deliver(ctx, out)
				lastCheck = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				d.logger.Warn().Msg("fsnotify error channel closed, switching to polling")
				d.pollCommands(ctx, out)
				return
			}
			d.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

// pollCommands is the pure polling fallback.
func (d *Daemon) pollCommands(ctx context.Context, out chan<- ipc.Command) {
	d.logger.Info().Dur("interval", d.opts.PollInterval).Msg("command watcher started (using polling fallback)")
	cmdPath := ipc.CommandPath(d.opts.Dir)

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	lastCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(cmdPath)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastCheck) {
				d.deliver(ctx, out)
				lastCheck = time.Now()
			}
		}
	}
}

func (d *Daemon) deliver(ctx context.Context, out chan<- ipc.Command) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(settleDelay):
	}
	cmd, err := ipc.ReadCommand(d.opts.Dir)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to read command")
		return
	}
	if cmd == "" {
		return
	}
	select {
	case out <- cmd:
	case <-ctx.Done():
	}
}
