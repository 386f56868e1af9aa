package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logmailer/internal/config"
	"github.com/logmailer/internal/logmail"
	"github.com/logmailer/internal/middleware"
	"github.com/logmailer/internal/schedule"
)

var nonceRE = regexp.MustCompile(`name="_nonce" value="([0-9a-f]+)"`)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Port:                  "0",
		Env:                   "test",
		DatabaseURL:           filepath.Join(t.TempDir(), "app.db"),
		SessionSecret:         "0123456789abcdef0123",
		SettingsEncryptionKey: "0123456789abcdef0123456789abcdef",
		SeedAdminEmail:        "admin@example.com",
		SeedAdminPassword:     "correct horse battery",
		SiteName:              "Shop",
		AdminEmail:            "admin@example.com",
		LogDir:                t.TempDir(),
		SMTPPort:              587,
		Scheduler:             "action",
		RunAt:                 "05:00",
		PollInterval:          time.Minute,
		Timezone:              "UTC",
	}
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {"admin@example.com"}, "password": {"correct horse battery"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func post(h http.Handler, path string, cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewSelectsConfiguredScheduler(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, schedule.ActionSchedulerName, app.scheduler.Name())
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	h := newTestApp(t).routes()

	for _, path := range []string{"/admin/settings", "/admin/plugins"} {
		rr := get(h, path, nil)
		assert.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/admin/login", rr.Header().Get("Location"), path)
	}

	rr := get(h, "/api/admin/mail", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	h := newTestApp(t).routes()

	rr := get(h, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"smtp":"log-only"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestSettingsRoundTrip(t *testing.T) {
	app := newTestApp(t)
	h := app.routes()
	cookie := login(t, h)

	rr := get(h, "/admin/settings", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	m := nonceRE.FindStringSubmatch(rr.Body.String())
	require.Len(t, m, 2)

	rr = post(h, "/admin/settings", cookie, url.Values{"_nonce": {m[1]}, "recipients": {" ops@example.com,dev@example.com "}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	got, err := app.options.Get(context.Background(), logmail.OptionRecipients, "")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com,dev@example.com", got)

	rr = post(h, "/admin/settings", cookie, url.Values{"_nonce": {"0000"}, "recipients": {"x@example.com"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestActivateAndDeactivateThroughPluginsScreen(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.plugin.Activate(ctx))
	require.NoError(t, app.options.Update(ctx, logmail.OptionRecipients, "ops@example.com"))

	status, err := app.plugin.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Active)
	assert.Equal(t, 5, status.NextRun.In(time.UTC).Hour())

	h := app.routes()
	cookie := login(t, h)

	rr := get(h, "/admin/plugins", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), ">Settings</a>")
	m := nonceRE.FindStringSubmatch(rr.Body.String())
	require.Len(t, m, 2)

	rr = post(h, "/admin/plugins/deactivate", cookie, url.Values{"_nonce": {m[1]}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	status, err = app.plugin.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Active)
	exists, err := app.options.Exists(ctx, logmail.OptionRecipients)
	require.NoError(t, err)
	assert.False(t, exists)
}
