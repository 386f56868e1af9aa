package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logmailer/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin screens and run the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(ctx context.Context, a *app.App) error {
			return a.Start(ctx)
		})
	},
}
