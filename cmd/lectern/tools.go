package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tiroq/lectern/internal/config"
	"github.com/tiroq/lectern/internal/diaglog"
	"github.com/tiroq/lectern/internal/localspeech"
	"github.com/tiroq/lectern/internal/speech"
)

func newVoicesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the system voices 'speak --local' can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			driver, err := localspeech.Detect()
			if err != nil {
				return err
			}
			voices, err := driver.Voices(cmd.Context())
			if err != nil {
				return err
			}
			pick, ok := localspeech.PickVoice(voices, localspeech.Preference{
				Names:        cfg.Local.PreferredVoices,
				LangPrefixes: cfg.Local.PreferredLangs,
			})
			for _, v := range voices {
				mark := "  "
				if ok && v == pick {
					mark = successStyle.Render("▶ ")
				}
				fmt.Printf("%s%-24s %s\n", mark, v.Name, dimStyle.Render(v.Lang))
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("%d voices via %s", len(voices), driver.Name())))
			return nil
		},
	}
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the speech service is reachable with the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var hc speech.HealthChecker = a.gemini
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			st, err := hc.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !st.OK {
				fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %s: %s", st.Backend, st.Message)))
				return fmt.Errorf("speech backend unhealthy")
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s reachable in %s (%s)", st.Backend, st.Latency.Round(time.Millisecond), a.gemini.Model())))
			return nil
		},
	}
}

func newExportDiagCmd(flags *globalFlags) *cobra.Command {
	var dest, sessionID string
	cmd := &cobra.Command{
		Use:   "export-diag",
		Short: "Bundle the diagnostic log for a bug report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			run := diaglog.RunInfo{
				Strategy: cfg.Lecture.Strategy,
				Backend:  "gemini",
				Model:    cfg.Gemini.Model,
				Voice:    cfg.Gemini.Voice,
				Script:   cfg.Lecture.Script,
				Config:   cfg.Redacted(),
			}
			path, n, err := diaglog.Export(diagLogPath(cfg), dest, diaglog.ExportOptions{Run: run, SessionID: sessionID})
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(os.Stderr, dimStyle.Render("hint: run with "+diaglog.DebugEnv+"=true or --debug to enable logging"))
				}
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ wrote %s (%d lines)", path, n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "directory to write the bundle to")
	cmd.Flags().StringVar(&sessionID, "session", "", "only include lines from this lecture session id")
	return cmd
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ wrote " + path))
			fmt.Println(dimStyle.Render("Put the API key in GEMINI_API_KEY or a .env file next to it; it is never saved."))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
