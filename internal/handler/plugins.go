package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/logmailer/internal/lifecycle"
	appmw "github.com/logmailer/internal/middleware"
	"github.com/logmailer/internal/model"
)

const (
	activatePath   = "/admin/plugins/activate"
	deactivatePath = "/admin/plugins/deactivate"
)

type plugin interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	Status(ctx context.Context) (lifecycle.Status, error)
}

type pluginsPageData struct {
	Name        string
	Description string
	Status      lifecycle.Status
	Links       []model.ActionLink
	Nonces      map[string]string
	Notice      string
}

// PluginsHandler serves the plugins screen.
type PluginsHandler struct {
	BaseHandler
	plugin plugin
	nonces noncer
}

func NewPluginsHandler(logger *slog.Logger, p plugin, nonces noncer, tmpl *template.Template) *PluginsHandler {
	return &PluginsHandler{
		BaseHandler: BaseHandler{Logger: logger, Templates: tmpl},
		plugin:      p,
		nonces:      nonces,
	}
}

func (h *PluginsHandler) Page(w http.ResponseWriter, r *http.Request) {
	status, err := h.plugin.Status(r.Context())
	if err != nil {
		h.Logger.Error("plugins: failed to load status", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	link := model.ActionLink{Label: "Activate", Action: activatePath}
	if status.Active {
		link = model.ActionLink{Label: "Deactivate", Action: deactivatePath}
	}

	session := appmw.SessionIDFromContext(r.Context())
	data := pluginsPageData{
		Name:        "Daily Error Log Emailer",
		Description: "Emails yesterday's WooCommerce fatal-error log to the configured recipients every day.",
		Status:      status,
		Links:       lifecycle.ActionLinks([]model.ActionLink{link}),
		Nonces: map[string]string{
			activatePath:   h.nonces.Create("activate", session),
			deactivatePath: h.nonces.Create("deactivate", session),
		},
	}
	switch r.URL.Query().Get("notice") {
	case "activated":
		data.Notice = "Plugin activated."
	case "deactivated":
		data.Notice = "Plugin deactivated."
	}

	h.render(w, r, http.StatusOK, "admin_plugins.html", data)
}

func (h *PluginsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "activate", h.plugin.Activate, "activated")
}

func (h *PluginsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "deactivate", h.plugin.Deactivate, "deactivated")
}

func (h *PluginsHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context) error, notice string) {
	if !h.verifyForm(w, r, h.nonces, action) {
		return
	}

	if err := fn(r.Context()); err != nil {
		h.Logger.Error("plugins: "+action+" failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.Logger.Info("plugins: "+action, "user_id", appmw.UserIDFromContext(r.Context()))
	http.Redirect(w, r, "/admin/plugins?notice="+notice, http.StatusSeeOther)
}
