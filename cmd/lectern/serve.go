package main

import (
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/daemon"
	"github.com/tiroq/lectern/internal/overlay"
	"github.com/tiroq/lectern/internal/pidfile"
)

const daemonName = "lectern-serve"

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		withOverlay bool
		addr        string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless, controlled through 'lectern ctl' and the overlay",
		Long: `Runs the lecture without a terminal view. Commands are read from cmd.txt
in the daemon directory and the session is published to status.json after
every change. With --overlay, an HTTP server also exposes /ws, /status,
/healthz, /metrics and POST /api/start|stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.log.Zerolog()

			pf, err := pidfile.Acquire(pidfile.Path(a.cfg.Daemon.Dir, daemonName))
			if err != nil {
				if errors.Is(err, pidfile.ErrRunning) {
					return fmt.Errorf("%w; use 'lectern ctl quit' to stop it", err)
				}
				return err
			}
			defer func() {
				if err := pf.Release(); err != nil {
					logger.Warn().Err(err).Msg("failed to remove pid file")
				}
			}()

			// No one can type a key here; a missing key fails the run and
			// shows up in status.json.
			runner := a.newRunner(nil)
			defer runner.Wait()
			defer runner.Stop()

			if !a.keys.HasKey() {
				logger.Warn().Msg("no API key configured; set GEMINI_API_KEY or gemini.api_key")
			}

			d := daemon.New(runner, runner.Machine(), daemon.Options{
				Dir:          a.cfg.Daemon.Dir,
				PollInterval: a.cfg.Daemon.PollInterval,
				Strategy:     string(a.strategy),
				Backend:      a.registry.Primary().Name(),
			})
			d.SetLogger(a.log.Zerolog())
			d.SetDiag(a.diag)

			var (
				wg      sync.WaitGroup
				errOnce sync.Once
				runErr  error
			)
			record := func(err error) {
				if err != nil {
					errOnce.Do(func() { runErr = err })
				}
				// Either side ending takes the other down.
				stop()
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				record(d.Run(ctx))
			}()

			if withOverlay || a.cfg.Overlay.Enabled {
				listen := a.cfg.Overlay.Addr
				if addr != "" {
					listen = addr
				}
				srv := overlay.New(listen, runner.Machine(), runner)
				srv.SetLogger(a.log.Zerolog())
				srv.SetDiag(a.diag)
				srv.SetHistory(a.log)
				wg.Add(1)
				go func() {
					defer wg.Done()
					record(srv.Run(ctx))
				}()
			}

			logger.Info().
				Str("version", Version).
				Str("strategy", string(a.strategy)).
				Str("dir", a.cfg.Daemon.Dir).
				Msg("lectern daemon started")
			wg.Wait()
			return runErr
		},
	}
	cmd.Flags().BoolVar(&withOverlay, "overlay", false, "serve the websocket overlay")
	cmd.Flags().StringVar(&addr, "addr", "", "overlay listen address (default from config, 127.0.0.1:8765)")
	return cmd
}
