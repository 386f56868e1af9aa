// Package schedule runs named recurring jobs. Two providers exist: a
// persistent action scheduler backed by the database and an in-process cron
// fallback. One is chosen at startup by Select.
package schedule

import (
	"context"
	"time"
)

// Day is the recurrence interval of the log-mailer task.
const Day = 24 * time.Hour

// Callback is the work bound to a hook.
type Callback func(ctx context.Context) error

type Scheduler interface {
	// Name identifies the provider in logs and on the plugins screen.
	Name() string
	// Register binds fn to hook. Scheduling an unregistered hook is allowed;
	// its runs are skipped with a warning.
	Register(hook string, fn Callback)
	// NextScheduled reports the next pending run of hook, if any.
	NextScheduled(ctx context.Context, hook string) (time.Time, bool, error)
	// ScheduleRecurring adds a run of hook at start, repeating every interval.
	ScheduleRecurring(ctx context.Context, hook string, start time.Time, interval time.Duration) error
	// UnscheduleAll removes every pending run of hook.
	UnscheduleAll(ctx context.Context, hook string) error
	// Run dispatches due work until ctx is done.
	Run(ctx context.Context) error
}
