// Package cli implements the lifesync command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lifesync/lifesync/internal/config"
	"github.com/lifesync/lifesync/internal/logging"
)

// RootOptions holds global flags and the state loaded before any subcommand
// runs.
type RootOptions struct {
	DBPath string

	Config config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the lifesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lifesync",
		Short: "LifeSync backend",
		Long:  "LifeSync backend: goal tracking with XP, streaks and achievements plus smart-home automation rules.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.DBPath != "" {
				cfg.DBPath = opts.DBPath
			}
			opts.Config = cfg
			opts.Logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides LIFESYNC_DB_PATH)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))

	return cmd
}
