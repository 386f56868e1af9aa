package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/logmailer/internal/handler"
	"github.com/logmailer/internal/logmail"
	"github.com/logmailer/internal/middleware"
	"github.com/logmailer/internal/model"
	"github.com/logmailer/internal/web"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS)))

	// Health check
	r.Get("/api/health", handler.Health(app.db, app.mailer, app.plugin))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/plugins", http.StatusSeeOther)
	})

	// Admin auth (public endpoints)
	authHandler := handler.NewAuthHandler(app.logger, app.users, app.sessions, web.Templates, app.config.SecureCookies)
	r.Get("/admin/login", authHandler.LoginPage)
	r.With(middleware.RateLimit(rate.Limit(0.2), 5)).Post("/admin/login", authHandler.Login)

	// Protected admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(app.sessions, app.users))

		r.Post("/admin/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(model.CapManageOptions))

			settingsHandler := handler.NewSettingsHandler(app.logger, app.options, app.mailSettings, app.mailer, app.nonces, app.task, web.Templates, handler.SettingsConfig{
				SiteName: app.config.SiteName,
				Fallback: logmail.Fallback(app.config.RecoveryModeEmail, app.config.AdminEmail),
				Location: app.task.Location,
			})
			r.Get("/admin/settings", settingsHandler.Page)
			r.Post("/admin/settings", settingsHandler.Save)
			r.Post("/admin/settings/send-now", settingsHandler.SendNow)
			r.Get("/api/admin/mail", settingsHandler.MailGet)
			r.Put("/api/admin/mail", settingsHandler.MailUpdate)
			r.Post("/api/admin/mail/test", settingsHandler.TestEmail)

			pluginsHandler := handler.NewPluginsHandler(app.logger, app.plugin, app.nonces, web.Templates)
			r.Get("/admin/plugins", pluginsHandler.Page)
			r.Post("/admin/plugins/activate", pluginsHandler.Activate)
			r.Post("/admin/plugins/deactivate", pluginsHandler.Deactivate)
		})
	})
	return r
}
