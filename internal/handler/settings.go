package handler

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/logmailer/internal/logmail"
	appmw "github.com/logmailer/internal/middleware"
	"github.com/logmailer/internal/model"
)

const (
	nonceUpdateRecipients = "update_recipients"
	nonceSendNow          = "send_now"
)

type optionStore interface {
	Get(ctx context.Context, name, def string) (string, error)
	Update(ctx context.Context, name, value string) error
}

type mailSettingsStore interface {
	Load(ctx context.Context) (*model.MailSettings, error)
	Save(ctx context.Context, settings *model.MailSettings) error
}

type mailer interface {
	Reconfigure(settings *model.MailSettings)
	Send(ctx context.Context, to, subject, body string) error
}

type taskRunner interface {
	Run(ctx context.Context) (logmail.Report, error)
}

type settingsPageData struct {
	Recipients  string
	Fallback    string
	Nonce       string
	SendNonce   string
	Updated     bool
	Notice      string
	NoticeClass string
	Date        string
}

// SettingsConfig carries the values the settings screen needs besides its stores.
type SettingsConfig struct {
	SiteName string
	// Fallback is the address used when no recipients are configured.
	Fallback string
	Location *time.Location
	Now      func() time.Time
}

// SettingsHandler handles the recipients settings page and the mail API.
type SettingsHandler struct {
	BaseHandler
	options optionStore
	mail    mailSettingsStore
	mailer  mailer
	nonces  noncer
	task    taskRunner
	cfg     SettingsConfig
}

func NewSettingsHandler(logger *slog.Logger, options optionStore, mail mailSettingsStore, m mailer, nonces noncer, task taskRunner, tmpl *template.Template, cfg SettingsConfig) *SettingsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SettingsHandler{
		BaseHandler: BaseHandler{Logger: logger, Templates: tmpl},
		options:     options,
		mail:        mail,
		mailer:      m,
		nonces:      nonces,
		task:        task,
		cfg:         cfg,
	}
}

// Page renders the recipients form.
func (h *SettingsHandler) Page(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.options.Get(r.Context(), logmail.OptionRecipients, "")
	if err != nil {
		h.Logger.Error("settings: failed to load recipients", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	session := appmw.SessionIDFromContext(r.Context())
	q := r.URL.Query()
	data := settingsPageData{
		Recipients: recipients,
		Fallback:   h.cfg.Fallback,
		Nonce:      h.nonces.Create(nonceUpdateRecipients, session),
		SendNonce:  h.nonces.Create(nonceSendNow, session),
		Updated:    q.Get("updated") == "1",
		Date:       logmail.Yesterday(h.cfg.Now(), h.cfg.Location),
	}
	data.Notice, data.NoticeClass = sendNotice(q)

	h.render(w, r, http.StatusOK, "admin_settings.html", data)
}

func sendNotice(q url.Values) (string, string) {
	if q.Get("sent") == "" {
		return "", ""
	}
	sent, _ := strconv.Atoi(q.Get("sent"))
	failed, _ := strconv.Atoi(q.Get("failed"))
	files, _ := strconv.Atoi(q.Get("files"))

	switch {
	case files == 0:
		return "No fatal-error logs found for yesterday.", "info"
	case failed > 0:
		return fmt.Sprintf("Sent %d email(s); %d failed. Check the service log.", sent, failed), "error"
	default:
		return fmt.Sprintf("Sent %d email(s) for %d log file(s).", sent, files), "success"
	}
}

// Save stores the trimmed recipients string. Addresses are validated when
// mail is sent, not here.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	if !h.verifyForm(w, r, h.nonces, nonceUpdateRecipients) {
		return
	}

	value := strings.TrimSpace(r.PostFormValue("recipients"))
	if err := h.options.Update(r.Context(), logmail.OptionRecipients, value); err != nil {
		h.Logger.Error("settings: failed to save recipients", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.Logger.Info("settings: recipients updated", "user_id", appmw.UserIDFromContext(r.Context()))
	http.Redirect(w, r, "/admin/settings?updated=1", http.StatusSeeOther)
}

// SendNow runs the daily task immediately.
func (h *SettingsHandler) SendNow(w http.ResponseWriter, r *http.Request) {
	if !h.verifyForm(w, r, h.nonces, nonceSendNow) {
		return
	}

	report, err := h.task.Run(r.Context())
	if err != nil {
		h.Logger.Error("settings: send now failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	q := url.Values{}
	q.Set("sent", strconv.Itoa(report.Sent))
	q.Set("failed", strconv.Itoa(report.Failed))
	q.Set("files", strconv.Itoa(len(report.Files)))
	http.Redirect(w, r, "/admin/settings?"+q.Encode(), http.StatusSeeOther)
}

// MailGet returns the SMTP settings as JSON with the password masked.
func (h *SettingsHandler) MailGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.mail.Load(r.Context())
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if err := h.writeJSON(w, http.StatusOK, s.Masked(), nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// MailUpdate saves SMTP settings and applies them. A blank password keeps
// the stored one.
func (h *SettingsHandler) MailUpdate(w http.ResponseWriter, r *http.Request) {
	s := &model.MailSettings{}
	if err := h.readJSON(w, r, s); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if s.SMTPPort <= 0 || s.SMTPPort > 65535 {
		h.badRequestResponse(w, r, fmt.Errorf("smtpPort must be between 1 and 65535"))
		return
	}
	if s.SMTPFromAddress != "" && !logmail.ValidEmail(s.SMTPFromAddress) {
		h.badRequestResponse(w, r, fmt.Errorf("smtpFromAddress is not a valid email address"))
		return
	}

	if s.SMTPPass == "" {
		current, err := h.mail.Load(r.Context())
		if err != nil {
			h.serverErrorResponse(w, r, err)
			return
		}
		s.SMTPPass = current.SMTPPass
	}

	if err := h.mail.Save(r.Context(), s); err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	h.mailer.Reconfigure(s)
	h.Logger.Info("settings: mail settings updated", "user_id", appmw.UserIDFromContext(r.Context()), "smtp_host", s.SMTPHost)

	if err := h.writeJSON(w, http.StatusOK, s.Masked(), nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// TestEmail sends a test message to every resolved recipient.
func (h *SettingsHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	raw, err := logmail.Resolve(r.Context(), logmail.FromOption(h.options), logmail.FromValue(h.cfg.Fallback))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	var sent []string
	for _, to := range logmail.SplitRecipients(raw) {
		if !logmail.ValidEmail(to) {
			continue
		}
		subject := fmt.Sprintf("[%s] Daily error log emailer test", h.cfg.SiteName)
		if err := h.mailer.Send(r.Context(), to, subject, "This is a test email from the daily error log emailer."); err != nil {
			h.Logger.Error("settings: test email failed", "to", to, "err", err)
			h.errorResponse(w, r, http.StatusBadGateway, "send failed: "+err.Error())
			return
		}
		sent = append(sent, to)
	}
	if len(sent) == 0 {
		h.badRequestResponse(w, r, fmt.Errorf("no valid recipients configured"))
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"sent": sent}, nil); err != nil {
		h.serverErrorResponse(w, r, err)
	}
}
