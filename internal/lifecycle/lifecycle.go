// Package lifecycle implements activation and deactivation of the daily
// log mailer.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/logmailer/internal/model"
	"github.com/logmailer/internal/schedule"
)

// SettingsPath is where the settings page is served.
const SettingsPath = "/admin/settings"

type registrar interface {
	EnsureScheduled(ctx context.Context) (bool, error)
}

type optionDeleter interface {
	Delete(ctx context.Context, name string) error
}

// Status describes the current schedule for the plugins screen.
type Status struct {
	Active   bool
	Provider string
	NextRun  time.Time
}

type Plugin struct {
	scheduler schedule.Scheduler
	registrar registrar
	options   optionDeleter
	hook      string
	option    string
	logger    *slog.Logger
}

func New(s schedule.Scheduler, r registrar, options optionDeleter, hook, option string, logger *slog.Logger) *Plugin {
	return &Plugin{scheduler: s, registrar: r, options: options, hook: hook, option: option, logger: logger}
}

// Activate schedules the daily task unless it is already scheduled.
func (p *Plugin) Activate(ctx context.Context) error {
	added, err := p.registrar.EnsureScheduled(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	p.logger.Info("lifecycle: activated", "hook", p.hook, "newly_scheduled", added)
	return nil
}

// Deactivate cancels every scheduled run and deletes the recipient setting.
func (p *Plugin) Deactivate(ctx context.Context) error {
	if err := p.scheduler.UnscheduleAll(ctx, p.hook); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	if err := p.options.Delete(ctx, p.option); err != nil {
		return fmt.Errorf("deactivate: delete %s: %w", p.option, err)
	}
	p.logger.Info("lifecycle: deactivated", "hook", p.hook)
	return nil
}

func (p *Plugin) Status(ctx context.Context) (Status, error) {
	next, ok, err := p.scheduler.NextScheduled(ctx, p.hook)
	if err != nil {
		return Status{}, err
	}
	return Status{Active: ok, Provider: p.scheduler.Name(), NextRun: next}, nil
}

// ActionLinks puts a Settings link in front of links.
func ActionLinks(links []model.ActionLink) []model.ActionLink {
	out := make([]model.ActionLink, 0, len(links)+1)
	out = append(out, model.ActionLink{Label: "Settings", URL: SettingsPath})
	return append(out, links...)
}
