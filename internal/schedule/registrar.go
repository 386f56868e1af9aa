package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FirstRun returns hour:minute on the day after now, in loc.
func FirstRun(now time.Time, loc *time.Location, hour, minute int) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, hour, minute, 0, 0, loc)
}

// Registrar makes sure a hook has a recurring schedule.
type Registrar struct {
	Scheduler Scheduler
	Hook      string
	Interval  time.Duration
	Hour      int
	Minute    int
	Location  *time.Location
	// Immediate makes the first run happen right away instead of at the
	// next Hour:Minute. The cron fallback schedules this way.
	Immediate bool
	Logger    *slog.Logger
	Now       func() time.Time
}

// EnsureScheduled schedules the hook unless a run is already pending. The
// check and the insert are separate steps; two concurrent callers can both
// schedule. It reports whether a new schedule was added.
func (r *Registrar) EnsureScheduled(ctx context.Context) (bool, error) {
	_, ok, err := r.Scheduler.NextScheduled(ctx, r.Hook)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", r.Hook, err)
	}
	if ok {
		return false, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	start := now()
	if !r.Immediate {
		start = FirstRun(start, r.Location, r.Hour, r.Minute)
	}
	interval := r.Interval
	if interval == 0 {
		interval = Day
	}

	if err := r.Scheduler.ScheduleRecurring(ctx, r.Hook, start, interval); err != nil {
		return false, err
	}
	if r.Logger != nil {
		r.Logger.Info("schedule: hook registered", "hook", r.Hook, "provider", r.Scheduler.Name(), "first_run", start.Format(time.RFC3339))
	}
	return true, nil
}
