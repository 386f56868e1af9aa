package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/logmailer/internal/auth"
	appmw "github.com/logmailer/internal/middleware"
	"github.com/logmailer/internal/model"
	"github.com/logmailer/internal/store"
)

// dummyHash is compared against when the email is unknown so both paths
// cost one bcrypt comparison.
var dummyHash, _ = auth.Hash("logmailer-unknown-user")

type loginUsers interface {
	GetByEmail(ctx context.Context, email string) (*model.AdminUser, string, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

type loginSessions interface {
	Create(ctx context.Context, userID string) (string, error)
	DeleteAllByUserID(ctx context.Context, userID string) error
}

type loginPageData struct {
	Error string
}

// AuthHandler serves the admin login form and logout.
type AuthHandler struct {
	BaseHandler
	users         loginUsers
	sessions      loginSessions
	secureCookies bool
}

func NewAuthHandler(logger *slog.Logger, users loginUsers, sessions loginSessions, tmpl *template.Template, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		BaseHandler:   BaseHandler{Logger: logger, Templates: tmpl},
		users:         users,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "admin_login.html", loginPageData{})
}

// Login checks the posted credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostFormValue("email")))

	user, err := h.check(r.Context(), email, r.PostFormValue("password"))
	switch {
	case errors.Is(err, errBadCredentials):
		h.Logger.Info("auth: login failed", "email", email)
		h.render(w, r, http.StatusUnauthorized, "admin_login.html", loginPageData{Error: "Invalid email or password."})
		return
	case errors.Is(err, errInactive):
		h.render(w, r, http.StatusForbidden, "admin_login.html", loginPageData{Error: "Account is inactive."})
		return
	case err != nil:
		h.logError(r, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	token, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.logError(r, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		h.Logger.Warn("auth: last login not recorded", "user_id", user.ID, "err", err)
	}
	h.Logger.Info("auth: login", "user_id", user.ID)

	h.setSessionCookie(w, token, time.Now().Add(store.SessionTTL))
	http.Redirect(w, r, "/admin/settings", http.StatusSeeOther)
}

var (
	errBadCredentials = errors.New("bad credentials")
	errInactive       = errors.New("account inactive")
)

func (h *AuthHandler) check(ctx context.Context, email, password string) (*model.AdminUser, error) {
	user, hash, err := h.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		auth.Verify(dummyHash, password)
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.Verify(hash, password) {
		return nil, errBadCredentials
	}
	if user.Status != model.StatusActive {
		return nil, errInactive
	}
	return user, nil
}

// Logout ends every session of the current user.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID := appmw.UserIDFromContext(r.Context()); userID != "" {
		if err := h.sessions.DeleteAllByUserID(r.Context(), userID); err != nil {
			h.logError(r, err)
		}
	}
	h.setSessionCookie(w, "", time.Unix(0, 0))
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	c := &http.Cookie{
		Name:     appmw.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
	}
	if value == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}
