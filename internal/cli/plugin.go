package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/logmailer/internal/app"
	"github.com/logmailer/internal/schedule"
)

var errCronInProcess = errors.New("the wp-cron provider keeps its schedule inside the running serve process; use the plugins screen instead")

// withPersistentSchedule is withApp for commands that change or read the
// schedule from outside serve, which only the action scheduler supports.
func withPersistentSchedule(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if a.SchedulerName() == schedule.CronSchedulerName {
			return errCronInProcess
		}
		return fn(ctx, a)
	})
}

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Schedule the daily log mail unless already scheduled",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersistentSchedule(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Plugin().Activate(ctx)
		})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Cancel the daily log mail and delete the recipients setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersistentSchedule(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Plugin().Deactivate(ctx)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scheduler and next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersistentSchedule(cmd.Context(), func(ctx context.Context, a *app.App) error {
			st, err := a.Plugin().Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s\n", st.Provider)
			if !st.Active {
				fmt.Fprintln(out, "next run: not scheduled")
				return nil
			}
			next := st.NextRun.In(a.Task().Location)
			fmt.Fprintf(out, "next run: %s (%s)\n", next.Format("2006-01-02 15:04 MST"), humanize.Time(next))
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Mail yesterday's fatal-error logs now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Task().Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "date %s: %d file(s), %d recipient(s), %d sent, %d failed, %d skipped\n",
				report.Date, len(report.Files), len(report.Recipients), report.Sent, report.Failed, report.Skipped)
			if report.Failed > 0 {
				return fmt.Errorf("%d send(s) failed", report.Failed)
			}
			return nil
		})
	},
}
