package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options configure provider selection.
type Options struct {
	Backend  string // auto, action, cron
	Poll     time.Duration
	Location *time.Location
}

// Select picks the scheduler once at startup. "auto" prefers the action
// scheduler and falls back to cron when its store cannot be reached.
func Select(ctx context.Context, opts Options, actions actionStore, logger *slog.Logger) (Scheduler, error) {
	switch opts.Backend {
	case "action":
		if actions == nil {
			return nil, fmt.Errorf("schedule: action scheduler requested but no store is available")
		}
		return NewActionScheduler(actions, opts.Poll, logger), nil
	case "cron":
		return NewCronScheduler(opts.Location, logger), nil
	case "", "auto":
		if actions == nil {
			return NewCronScheduler(opts.Location, logger), nil
		}
		if err := actions.Ping(ctx); err != nil {
			logger.Warn("schedule: action store unavailable, falling back to cron", "err", err)
			return NewCronScheduler(opts.Location, logger), nil
		}
		return NewActionScheduler(actions, opts.Poll, logger), nil
	default:
		return nil, fmt.Errorf("schedule: unknown backend %q", opts.Backend)
	}
}
