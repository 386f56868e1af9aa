package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/logmailer/internal/model"
)

const SessionCookieName = "logmailer_session"

type contextKey string

const (
	contextKeyUserID    contextKey = "userID"
	contextKeyRole      contextKey = "role"
	contextKeySessionID contextKey = "sessionID"
)

// SessionReader retrieves the user ID for a session token.
type SessionReader interface {
	GetUserID(ctx context.Context, sessionID string) (string, error)
}

// userByIDer retrieves an admin user by ID.
type userByIDer interface {
	GetByID(ctx context.Context, id string) (*model.AdminUser, error)
}

// Session admits requests carrying a live session cookie for an active user
// and stores the user, role and session token in the request context. Page
// requests without one are sent to /admin/login; /api/ requests get a 401.
func Session(sessions SessionReader, users userByIDer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, token, ok := authenticate(r, sessions, users)
			if !ok {
				unauthenticated(w, r)
				return
			}
			ctx := WithUser(r.Context(), user.ID, user.Role, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, sessions SessionReader, users userByIDer) (*model.AdminUser, string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, "", false
	}
	userID, err := sessions.GetUserID(r.Context(), cookie.Value)
	if err != nil {
		return nil, "", false
	}
	user, err := users.GetByID(r.Context(), userID)
	if err != nil || user.Status != model.StatusActive {
		return nil, "", false
	}
	return user, cookie.Value, true
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authentication required"}` + "\n"))
		return
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// WithUser returns ctx carrying the authenticated user.
func WithUser(ctx context.Context, userID string, role model.Role, sessionID string) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID, userID)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	return context.WithValue(ctx, contextKeySessionID, sessionID)
}

// UserIDFromContext returns the authenticated user's ID from the context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyUserID).(string)
	return v
}

// RoleFromContext returns the authenticated user's role from the context.
func RoleFromContext(ctx context.Context) model.Role {
	v, _ := ctx.Value(contextKeyRole).(model.Role)
	return v
}

// SessionIDFromContext returns the session token nonces are bound to.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(contextKeySessionID).(string)
	return v
}
