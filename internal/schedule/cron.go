package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const CronSchedulerName = "wp-cron"

// recurring fires at start and every interval after it. A start that is
// already past when the entry is added fires once immediately.
type recurring struct {
	start     time.Time
	interval  time.Duration
	immediate atomic.Bool
}

func (r *recurring) Next(t time.Time) time.Time {
	if r.immediate.CompareAndSwap(true, false) {
		return t
	}
	return nextSlot(r.start, r.interval, t)
}

type cronEntry struct {
	id       cron.EntryID
	schedule *recurring
}

// CronScheduler is the in-process fallback. Its schedule lives only as long
// as the process.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	callbacks map[string]Callback
	entries   map[string][]cronEntry
}

func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CronScheduler{
		cron:      cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:    logger,
		now:       time.Now,
		callbacks: make(map[string]Callback),
		entries:   make(map[string][]cronEntry),
	}
}

func (s *CronScheduler) Name() string { return CronSchedulerName }

func (s *CronScheduler) Register(hook string, fn Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[hook] = fn
}

func (s *CronScheduler) NextScheduled(_ context.Context, hook string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, e := range s.entries[hook] {
		t := s.cron.Entry(e.id).Next
		if t.IsZero() {
			// Not yet picked up by a running cron.
			t = e.schedule.start
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero(), nil
}

func (s *CronScheduler) ScheduleRecurring(_ context.Context, hook string, start time.Time, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("schedule: interval %s too short", interval)
	}
	sched := &recurring{start: start, interval: interval}
	if !start.After(s.now()) {
		sched.immediate.Store(true)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.trigger(hook) }))
	s.entries[hook] = append(s.entries[hook], cronEntry{id: id, schedule: sched})

	s.logger.Info("schedule: cron event added", "hook", hook, "entry", id, "start", start.Format(time.RFC3339), "interval", interval)
	return nil
}

func (s *CronScheduler) UnscheduleAll(_ context.Context, hook string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[hook] {
		s.cron.Remove(e.id)
	}
	s.logger.Info("schedule: cron events removed", "hook", hook, "count", len(s.entries[hook]))
	delete(s.entries, hook)
	return nil
}

// Run starts the cron loop and stops it, waiting for running jobs, when ctx is done.
func (s *CronScheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("schedule: cron runner started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("schedule: cron runner stopped")
	return nil
}

func (s *CronScheduler) trigger(hook string) {
	s.mu.Lock()
	fn, ok := s.callbacks[hook]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("schedule: no callback registered", "hook", hook)
		return
	}

	s.logger.Info("schedule: running cron event", "hook", hook)
	if err := fn(context.Background()); err != nil {
		s.logger.Error("schedule: cron event failed", "hook", hook, "err", err)
	}
}
