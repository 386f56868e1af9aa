package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/logmailer/internal/model"
)

type fakeSessions map[string]string

func (f fakeSessions) GetUserID(_ context.Context, id string) (string, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return "", errors.New("not found")
}

type fakeUsers map[string]*model.AdminUser

func (f fakeUsers) GetByID(_ context.Context, id string) (*model.AdminUser, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", UserIDFromContext(r.Context()))
		w.Header().Set("X-Session", SessionIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestSession(t *testing.T) {
	sessions := fakeSessions{"tok": "u1", "tok2": "u2"}
	users := fakeUsers{
		"u1": {ID: "u1", Role: model.RoleAdministrator, Status: model.StatusActive},
		"u2": {ID: "u2", Role: model.RoleAdministrator, Status: model.StatusInactive},
	}
	h := Session(sessions, users)(okHandler())

	cases := []struct {
		name   string
		cookie string
		want   int
	}{
		{"no cookie", "", http.StatusSeeOther},
		{"unknown session", "nope", http.StatusSeeOther},
		{"inactive user", "tok2", http.StatusSeeOther},
		{"valid", "tok", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tc.cookie})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "u1", rr.Header().Get("X-User"))
				assert.Equal(t, "tok", rr.Header().Get("X-Session"))
			} else {
				assert.Equal(t, "/admin/login", rr.Header().Get("Location"))
			}
		})
	}
}

func TestSessionAPIGets401(t *testing.T) {
	h := Session(fakeSessions{}, fakeUsers{})(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/mail", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rr.Body.String())
}

func TestRequireCapability(t *testing.T) {
	h := RequireCapability(model.CapManageOptions)(okHandler())

	for role, want := range map[model.Role]int{
		model.RoleAdministrator: http.StatusOK,
		model.RoleViewer:        http.StatusForbidden,
		"":                      http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
		req = req.WithContext(WithUser(req.Context(), "u", role, "s"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, "role %q", role)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(rate.Every(time.Hour), 2)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.RemoteAddr = "203.0.113.7"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.RemoteAddr = "198.51.100.1"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "other clients are unaffected")

	req = httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "port does not reset the bucket")
}

func TestClientLimitsEvictIdleBuckets(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	c := &clientLimits{
		buckets: make(map[string]*clientBucket),
		every:   rate.Every(time.Hour),
		burst:   1,
		now:     func() time.Time { return now },
	}

	assert.True(t, c.allow("a"))
	assert.False(t, c.allow("a"))

	now = now.Add(limiterIdle + time.Minute)
	assert.True(t, c.allow("b"))
	assert.NotContains(t, c.buckets, "a")
	assert.Contains(t, c.buckets, "b")
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
