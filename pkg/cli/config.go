package cli

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/ajanda/pkg/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return encode(out(cmd), "yaml", map[string]any{
				"storage":  map[string]string{"backend": cfg.Storage.Backend, "path": cfg.Storage.Path, "dsn": redact(cfg.Storage.DSN)},
				"calendar": map[string]string{"name": cfg.Calendar.Name},
				"reminder": map[string]int{"hour": cfg.Reminder.Hour},
				"persist":  map[string]string{"retry_max_elapsed": cfg.Persist.RetryMaxElapsed.String()},
				"log":      map[string]string{"level": cfg.Log.Level, "format": cfg.Log.Format},
			})
		},
	}

	setCalendar := &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the Google Calendar used by 'sync calendar'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			cfg.Calendar.Name = args[0]
			if err := config.Save(cfg, opts.configPath); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(out(cmd), "Default calendar set to: %s\n", args[0])
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.configPath
			if p == "" {
				var err error
				if p, err = config.GetConfigPath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(out(cmd), p)
			return nil
		},
	}

	cmd.AddCommand(show, setCalendar, path)
	return cmd
}

// redact hides the password of a MySQL DSN.
func redact(dsn string) string {
	if dsn == "" {
		return ""
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil || cfg.Passwd == "" {
		return dsn
	}
	cfg.Passwd = "****"
	return cfg.FormatDSN()
}
