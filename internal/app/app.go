package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/logmailer/internal/auth"
	"github.com/logmailer/internal/config"
	"github.com/logmailer/internal/crypto"
	"github.com/logmailer/internal/lifecycle"
	"github.com/logmailer/internal/logmail"
	"github.com/logmailer/internal/mailer"
	"github.com/logmailer/internal/schedule"
	"github.com/logmailer/internal/store"
)

// HookPurgeSessions removes expired admin sessions.
const HookPurgeSessions = "logmailer_purge_sessions"

type App struct {
	config       *config.Config
	logger       *slog.Logger
	db           *sqlx.DB
	options      *store.OptionStore
	users        *store.UserStore
	sessions     *store.SessionStore
	mailSettings *store.MailSettingsStore
	mailer       *mailer.Mailer
	nonces       *auth.Noncer
	scheduler    schedule.Scheduler
	task         *logmail.Task
	plugin       *lifecycle.Plugin
	purge        *schedule.Registrar
}

func (app *App) Close() {
	app.db.Close()
}

// Plugin returns the activation controller.
func (app *App) Plugin() *lifecycle.Plugin { return app.plugin }

// Task returns the daily log-mailer task.
func (app *App) Task() *logmail.Task { return app.task }

// SchedulerName names the provider selected at startup.
func (app *App) SchedulerName() string { return app.scheduler.Name() }

// Users returns the admin user store.
func (app *App) Users() *store.UserStore { return app.users }

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	crypter, err := crypto.New(cfg.SettingsEncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("settings crypter: %w", err)
	}

	options := store.NewOptionStore(db)
	users := store.NewUserStore(db)
	mailSettings := store.NewMailSettingsStore(options, crypter, cfg)

	if created, err := auth.SeedFirstAdmin(ctx, users, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		logger.Error("admin seed failed", "err", err)
	} else if created {
		logger.Info("created first administrator", "email", cfg.SeedAdminEmail)
	}

	s, err := mailSettings.Load(ctx)
	if err != nil {
		logger.Warn("mail settings unreadable, using defaults", "err", err)
		s = nil
	}
	m := mailer.New(s, logger)

	loc, err := cfg.Location()
	if err != nil {
		db.Close()
		return nil, err
	}
	hour, minute, err := cfg.RunAtClock()
	if err != nil {
		db.Close()
		return nil, err
	}

	sched, err := schedule.Select(ctx, schedule.Options{
		Backend:  cfg.Scheduler,
		Poll:     cfg.PollInterval,
		Location: loc,
	}, store.NewActionStore(db), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("scheduler selected", "provider", sched.Name())

	task := &logmail.Task{
		LogDir:   cfg.LogDir,
		SiteName: cfg.SiteName,
		Location: loc,
		Recipients: []logmail.Resolver{
			logmail.FromOption(options),
			logmail.FromValue(cfg.RecoveryModeEmail),
			logmail.FromValue(cfg.AdminEmail),
		},
		Sender: m,
		Logger: logger,
	}
	sched.Register(logmail.Hook, func(ctx context.Context) error {
		_, err := task.Run(ctx)
		return err
	})

	immediate := sched.Name() == schedule.CronSchedulerName
	registrar := &schedule.Registrar{
		Scheduler: sched,
		Hook:      logmail.Hook,
		Interval:  schedule.Day,
		Hour:      hour,
		Minute:    minute,
		Location:  loc,
		Immediate: immediate,
		Logger:    logger,
	}

	sessions := store.NewSessionStore(db)
	sched.Register(HookPurgeSessions, sessions.DeleteExpired)
	purge := &schedule.Registrar{
		Scheduler: sched,
		Hook:      HookPurgeSessions,
		Interval:  time.Hour,
		Location:  loc,
		Immediate: true,
		Logger:    logger,
	}

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		options:      options,
		users:        users,
		sessions:     sessions,
		mailSettings: mailSettings,
		mailer:       m,
		nonces:       auth.NewNoncer(cfg.SessionSecret),
		scheduler:    sched,
		task:         task,
		plugin:       lifecycle.New(sched, registrar, options, logmail.Hook, logmail.OptionRecipients, logger),
		purge:        purge,
	}, nil
}

// Start activates the daily task, then serves HTTP and dispatches scheduled
// work until ctx is done.
func (app *App) Start(ctx context.Context) error {
	if err := app.plugin.Activate(ctx); err != nil {
		return err
	}
	if _, err := app.purge.EnsureScheduled(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute, // send-now reads and mails every log file
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.logger.Info("starting scheduler", "provider", app.scheduler.Name())
		return app.scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

// NewLogger installs the process-wide slog logger for cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
