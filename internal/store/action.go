package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/logmailer/internal/model"
)

// ActionStore persists recurring actions for the action scheduler.
type ActionStore struct {
	db *sqlx.DB
}

func NewActionStore(db *sqlx.DB) *ActionStore {
	return &ActionStore{db: db}
}

type actionRow struct {
	ID              string        `db:"id"`
	Hook            string        `db:"hook"`
	Status          string        `db:"status"`
	ScheduledAt     int64         `db:"scheduled_at"`
	IntervalSeconds int64         `db:"interval_seconds"`
	LastRunAt       sql.NullInt64 `db:"last_run_at"`
	CreatedAt       int64         `db:"created_at"`
}

func (r actionRow) toModel() model.ScheduledAction {
	a := model.ScheduledAction{
		ID:          r.ID,
		Hook:        r.Hook,
		Status:      model.ActionStatus(r.Status),
		ScheduledAt: time.Unix(r.ScheduledAt, 0),
		Interval:    time.Duration(r.IntervalSeconds) * time.Second,
		CreatedAt:   time.Unix(r.CreatedAt, 0),
	}
	if r.LastRunAt.Valid {
		t := time.Unix(r.LastRunAt.Int64, 0)
		a.LastRunAt = &t
	}
	return a
}

// Ping checks that the scheduled_actions table is reachable.
func (s *ActionStore) Ping(ctx context.Context) error {
	var n int
	return s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM scheduled_actions WHERE 0`)
}

// Insert stores a new pending action and returns its ID.
func (s *ActionStore) Insert(ctx context.Context, hook string, at time.Time, interval time.Duration) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions (id, hook, status, scheduled_at, interval_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, hook, string(model.ActionPending), at.Unix(), int64(interval/time.Second), time.Now().Unix(),
	)
	return id, err
}

// Next returns the earliest pending or running action for hook.
func (s *ActionStore) Next(ctx context.Context, hook string) (*model.ScheduledAction, error) {
	var row actionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM scheduled_actions
		WHERE hook = ? AND status IN (?, ?)
		ORDER BY scheduled_at LIMIT 1`,
		hook, string(model.ActionPending), string(model.ActionRunning),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a := row.toModel()
	return &a, nil
}

// Due lists pending actions scheduled at or before now.
func (s *ActionStore) Due(ctx context.Context, now time.Time) ([]model.ScheduledAction, error) {
	var rows []actionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM scheduled_actions
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at`,
		string(model.ActionPending), now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	actions := make([]model.ScheduledAction, len(rows))
	for i, r := range rows {
		actions[i] = r.toModel()
	}
	return actions, nil
}

// Claim moves a pending action to running. It reports false when another
// runner claimed or canceled it first.
func (s *ActionStore) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_actions SET status = ? WHERE id = ? AND status = ?`,
		string(model.ActionRunning), id, string(model.ActionPending),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Reschedule records a finished run and sets the action pending at next.
// A canceled action stays canceled.
func (s *ActionStore) Reschedule(ctx context.Context, id string, ranAt, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_actions SET status = ?, scheduled_at = ?, last_run_at = ?
		WHERE id = ? AND status = ?`,
		string(model.ActionPending), next.Unix(), ranAt.Unix(), id, string(model.ActionRunning),
	)
	return err
}

// ReleaseRunning puts actions left running by an interrupted process back to
// pending so the runner picks them up again.
func (s *ActionStore) ReleaseRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_actions SET status = ? WHERE status = ?`,
		string(model.ActionPending), string(model.ActionRunning),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelAll cancels every pending or running action for hook.
func (s *ActionStore) CancelAll(ctx context.Context, hook string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_actions SET status = ?
		WHERE hook = ? AND status IN (?, ?)`,
		string(model.ActionCanceled), hook, string(model.ActionPending), string(model.ActionRunning),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive returns the number of pending or running actions for hook.
func (s *ActionStore) CountActive(ctx context.Context, hook string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM scheduled_actions WHERE hook = ? AND status IN (?, ?)`,
		hook, string(model.ActionPending), string(model.ActionRunning),
	)
	return n, err
}
