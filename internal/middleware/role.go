package middleware

import (
	"net/http"

	"github.com/logmailer/internal/model"
)

// RequireCapability returns middleware that allows only users whose role
// grants cap. Returns 403 Forbidden otherwise.
func RequireCapability(cap model.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !RoleFromContext(r.Context()).Can(cap) {
				http.Error(w, "Sorry, you are not allowed to access this page.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
