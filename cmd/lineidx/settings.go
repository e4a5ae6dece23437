package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lineidx/internal/config"
)

// settingKeys maps setting names to their field in config.Settings.
var settingKeys = map[string]func(*config.Settings) *string{
	"index_dir":   func(s *config.Settings) *string { return &s.IndexDir },
	"log_level":   func(s *config.Settings) *string { return &s.LogLevel },
	"log_format":  func(s *config.Settings) *string { return &s.LogFormat },
	"server_addr": func(s *config.Settings) *string { return &s.ServerAddr },
	"watch_poll":  func(s *config.Settings) *string { return &s.WatchPoll },
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change stored settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(a.stdout, outputFormat(cmd))
			if p.format == "json" {
				return p.json(a.settings)
			}
			p.kv([][2]string{
				{"path", a.store.Path()},
				{"index_dir", a.settings.IndexDir},
				{"log_level", a.settings.LogLevel},
				{"log_format", a.settings.LogFormat},
				{"server_addr", a.settings.ServerAddr},
				{"watch_poll", a.settings.WatchPoll},
			})
			return nil
		},
	}
	showCmd.Flags().StringP("output", "o", "table", "output format: table or json")

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a setting (empty VALUE clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, ok := settingKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			next := a.settings
			*field(&next) = args[1]
			if _, err := next.PollInterval(time.Second); err != nil {
				return err
			}
			if err := a.home.EnsureExists(); err != nil {
				return err
			}
			if err := a.store.Save(next); err != nil {
				return err
			}
			a.settings = next
			a.logger.Info("setting stored", "key", args[0], "path", a.store.Path())
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd)
	return cmd
}
