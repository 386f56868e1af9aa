package model

import "time"

type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionRunning  ActionStatus = "running"
	ActionCanceled ActionStatus = "canceled"
)

// ScheduledAction is one recurring job persisted by the action scheduler.
type ScheduledAction struct {
	ID          string
	Hook        string
	Status      ActionStatus
	ScheduledAt time.Time
	Interval    time.Duration
	LastRunAt   *time.Time
	CreatedAt   time.Time
}

// ActionLink is an entry in the plugin row of the plugins screen.
type ActionLink struct {
	Label string
	URL   string
	// Action, when set, renders the link as a nonced POST form.
	Action string
}
