package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/lectern/internal/ipc"
	"github.com/tiroq/lectern/internal/pidfile"
)

func newCtlCmd(flags *globalFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:       "ctl start|stop|toggle|quit|status",
		Short:     "Control a running 'lectern serve'",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"start", "stop", "toggle", "quit", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			dir := cfg.Daemon.Dir

			if args[0] == "status" {
				return printStatus(dir)
			}

			c, ok := ipc.ParseCommand(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q", args[0])
			}
			if _, running := pidfile.Running(pidfile.Path(dir, daemonName)); !running {
				fmt.Fprintln(os.Stderr, dimStyle.Render("no running daemon found; the command will wait for the next 'lectern serve'"))
			}
			if err := ipc.WriteCommand(dir, c); err != nil {
				return fmt.Errorf("write command: %w", err)
			}
			fmt.Println(successStyle.Render("✓ sent " + string(c)))

			if wait > 0 {
				time.Sleep(wait)
				return printStatus(dir)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "print the status this long after sending")
	return cmd
}

func printStatus(dir string) error {
	st, err := ipc.ReadStatus(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no status in %s; is 'lectern serve' running?", dir)
		}
		return err
	}
	fmt.Printf("State:    %s\n", st.State)
	fmt.Printf("Strategy: %s (%s)\n", st.Strategy, st.Backend)
	if st.Segments > 0 {
		fmt.Printf("Subtitle: %d/%d %s\n", st.SubtitleIndex+1, st.Segments, st.Subtitle)
	}
	if st.Error != "" {
		fmt.Println(errorStyle.Render("Error:    " + st.Error))
		if st.NeedsKey {
			fmt.Println(dimStyle.Render("          set GEMINI_API_KEY and restart the daemon"))
		}
	}
	if st.LastCommand != "" {
		fmt.Printf("Last cmd: %s\n", st.LastCommand)
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("pid %d, updated %s", st.PID, st.Timestamp.Format(time.RFC3339))))
	return nil
}
