// Package cli wires the logmailer commands.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/logmailer/internal/app"
	"github.com/logmailer/internal/config"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "logmailer",
	Short: "Daily fatal-error log emailer",
	Long: `logmailer emails the previous day's WooCommerce fatal-error logs to the
configured recipients once a day.

Examples:
  # run the admin UI and the scheduler
  logmailer serve

  # mail yesterday's logs right now
  logmailer send

  # create an administrator
  logmailer admin create --email ops@example.com --password '...'`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env file(s) to load before the environment (default .env if present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFiles...)
}

// withApp builds the application, runs fn and closes it.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
