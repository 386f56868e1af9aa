package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/logmailer/internal/model"
	"github.com/logmailer/internal/store"
)

const ActionSchedulerName = "action-scheduler"

// rescheduleTimeout bounds the bookkeeping write after a run. It runs even
// when the runner's context was canceled mid-run.
const rescheduleTimeout = 10 * time.Second

type actionStore interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, hook string, at time.Time, interval time.Duration) (string, error)
	Next(ctx context.Context, hook string) (*model.ScheduledAction, error)
	Due(ctx context.Context, now time.Time) ([]model.ScheduledAction, error)
	Claim(ctx context.Context, id string) (bool, error)
	Reschedule(ctx context.Context, id string, ranAt, next time.Time) error
	ReleaseRunning(ctx context.Context) (int64, error)
	CancelAll(ctx context.Context, hook string) (int64, error)
}

// ActionScheduler keeps recurring actions in the database so schedules
// survive restarts and are visible to every process sharing the database.
type ActionScheduler struct {
	store  actionStore
	poll   time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	callbacks map[string]Callback
}

func NewActionScheduler(s actionStore, poll time.Duration, logger *slog.Logger) *ActionScheduler {
	return &ActionScheduler{
		store:     s,
		poll:      poll,
		logger:    logger,
		now:       time.Now,
		callbacks: make(map[string]Callback),
	}
}

func (s *ActionScheduler) Name() string { return ActionSchedulerName }

func (s *ActionScheduler) Register(hook string, fn Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[hook] = fn
}

func (s *ActionScheduler) NextScheduled(ctx context.Context, hook string) (time.Time, bool, error) {
	a, err := s.store.Next(ctx, hook)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return a.ScheduledAt, true, nil
}

func (s *ActionScheduler) ScheduleRecurring(ctx context.Context, hook string, start time.Time, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("schedule: interval %s too short", interval)
	}
	id, err := s.store.Insert(ctx, hook, start, interval)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", hook, err)
	}
	s.logger.Info("schedule: recurring action added", "hook", hook, "id", id, "start", start.Format(time.RFC3339), "interval", interval)
	return nil
}

func (s *ActionScheduler) UnscheduleAll(ctx context.Context, hook string) error {
	n, err := s.store.CancelAll(ctx, hook)
	if err != nil {
		return fmt.Errorf("unschedule %s: %w", hook, err)
	}
	s.logger.Info("schedule: actions canceled", "hook", hook, "count", n)
	return nil
}

// Run polls for due actions until ctx is cancelled. Actions a previous
// process left running are released first. Only one runner may share the
// database.
func (s *ActionScheduler) Run(ctx context.Context) error {
	n, err := s.store.ReleaseRunning(ctx)
	if err != nil {
		return fmt.Errorf("schedule: release running actions: %w", err)
	}
	if n > 0 {
		s.logger.Warn("schedule: released actions left running by a previous process", "count", n)
	}

	s.logger.Info("schedule: action runner started", "poll", s.poll)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("schedule: dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("schedule: action runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunDue executes every action that is due now, one at a time.
func (s *ActionScheduler) RunDue(ctx context.Context) error {
	now := s.now()
	due, err := s.store.Due(ctx, now)
	if err != nil {
		return err
	}
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := s.store.Claim(ctx, a.ID)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}

		s.dispatch(ctx, a)

		ranAt := s.now()
		next := nextSlot(a.ScheduledAt, a.Interval, ranAt)
		if err := s.reschedule(ctx, a.ID, ranAt, next); err != nil {
			return fmt.Errorf("reschedule %s: %w", a.ID, err)
		}
		s.logger.Debug("schedule: action rescheduled", "hook", a.Hook, "id", a.ID, "next", next.Format(time.RFC3339))
	}
	return nil
}

func (s *ActionScheduler) reschedule(ctx context.Context, id string, ranAt, next time.Time) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rescheduleTimeout)
	defer cancel()
	return s.store.Reschedule(ctx, id, ranAt, next)
}

func (s *ActionScheduler) dispatch(ctx context.Context, a model.ScheduledAction) {
	s.mu.RLock()
	fn, ok := s.callbacks[a.Hook]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn("schedule: no callback registered", "hook", a.Hook, "id", a.ID)
		return
	}

	s.logger.Info("schedule: running action", "hook", a.Hook, "id", a.ID, "scheduled_at", a.ScheduledAt.Format(time.RFC3339))
	if err := fn(ctx); err != nil {
		s.logger.Error("schedule: action failed", "hook", a.Hook, "id", a.ID, "err", err)
	}
}

// nextSlot returns the first start+k*interval strictly after now. Slots
// missed while the service was down collapse into the run just made.
func nextSlot(start time.Time, interval time.Duration, now time.Time) time.Time {
	if now.Before(start) {
		return start
	}
	k := now.Sub(start)/interval + 1
	return start.Add(k * interval)
}
