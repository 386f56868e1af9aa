package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logmailer/internal/config"
	"github.com/logmailer/internal/crypto"
	"github.com/logmailer/internal/model"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	v, dirty, err := Version(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
	require.NoError(t, db.Close())
}

func TestRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, Rollback(context.Background(), path))

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()
	_, err = NewOptionStore(db).Get(context.Background(), "anything", "")
	assert.NoError(t, err)
}

func TestOptionStore(t *testing.T) {
	ctx := context.Background()
	opts := NewOptionStore(openTestDB(t))

	v, err := opts.Get(ctx, "recipients", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, opts.Update(ctx, "recipients", "a@x.com"))
	require.NoError(t, opts.Update(ctx, "recipients", "b@x.com"))

	v, err = opts.Get(ctx, "recipients", "")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", v, "last write wins")

	ok, err := opts.Exists(ctx, "recipients")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, opts.Delete(ctx, "recipients"))
	require.NoError(t, opts.Delete(ctx, "recipients"))

	v, err = opts.Get(ctx, "recipients", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", v)
}

func TestMailSettingsStoreSeedsAndEncrypts(t *testing.T) {
	ctx := context.Background()
	opts := NewOptionStore(openTestDB(t))
	c, err := crypto.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	cfg := &config.Config{SMTPHost: "smtp.example.org", SMTPPass: "s3cret", SMTPFromEmail: "logs@example.org"}
	settings := NewMailSettingsStore(opts, c, cfg)

	s, err := settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.org", s.SMTPHost)
	assert.Equal(t, 587, s.SMTPPort)

	raw, err := opts.Get(ctx, OptionMailSettings, "")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotContains(t, raw, "s3cret")

	s.SMTPHost = "mail.example.org"
	require.NoError(t, settings.Save(ctx, s))

	reloaded, err := settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mail.example.org", reloaded.SMTPHost)
	assert.Equal(t, "s3cret", reloaded.SMTPPass)
}

func TestUserAndSessionStores(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	sessions := NewSessionStore(db)

	n, err := users.CountAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, users.Create(ctx, "u1", "admin@site.com", "hash", string(model.RoleAdministrator)))

	u, hash, err := users.GetByEmail(ctx, "admin@site.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, model.RoleAdministrator, u.Role)
	assert.Equal(t, model.StatusActive, u.Status)
	assert.Nil(t, u.LastLoginAt)

	require.NoError(t, users.UpdateLastLogin(ctx, "u1"))
	u, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLoginAt)

	_, _, err = users.GetByEmail(ctx, "nobody@site.com")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := sessions.Create(ctx, "u1")
	require.NoError(t, err)
	got, err := sessions.GetUserID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	sessions.now = func() time.Time { return time.Now().Add(SessionTTL + time.Minute) }
	_, err = sessions.GetUserID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, sessions.DeleteExpired(ctx))

	sessions.now = time.Now
	id, err = sessions.Create(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, sessions.DeleteAllByUserID(ctx, "u1"))
	_, err = sessions.GetUserID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	actions := NewActionStore(openTestDB(t))
	require.NoError(t, actions.Ping(ctx))

	_, err := actions.Next(ctx, "hook")
	assert.ErrorIs(t, err, ErrNotFound)

	start := time.Date(2026, 10, 18, 5, 0, 0, 0, time.UTC)
	id, err := actions.Insert(ctx, "hook", start, 24*time.Hour)
	require.NoError(t, err)

	next, err := actions.Next(ctx, "hook")
	require.NoError(t, err)
	assert.Equal(t, id, next.ID)
	assert.True(t, next.ScheduledAt.Equal(start))
	assert.Equal(t, 24*time.Hour, next.Interval)

	due, err := actions.Due(ctx, start.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = actions.Due(ctx, start)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := actions.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = actions.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	require.NoError(t, actions.Reschedule(ctx, id, start, start.Add(24*time.Hour)))
	next, err = actions.Next(ctx, "hook")
	require.NoError(t, err)
	assert.Equal(t, model.ActionPending, next.Status)
	assert.True(t, next.ScheduledAt.Equal(start.Add(24*time.Hour)))
	require.NotNil(t, next.LastRunAt)

	n, err := actions.CancelAll(ctx, "hook")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := actions.CountActive(ctx, "hook")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestActionStoreReleaseRunning(t *testing.T) {
	ctx := context.Background()
	actions := NewActionStore(openTestDB(t))

	start := time.Date(2026, 10, 18, 5, 0, 0, 0, time.UTC)
	running, err := actions.Insert(ctx, "hook", start, 24*time.Hour)
	require.NoError(t, err)
	canceled, err := actions.Insert(ctx, "other", start, 24*time.Hour)
	require.NoError(t, err)

	claimed, err := actions.Claim(ctx, running)
	require.NoError(t, err)
	require.True(t, claimed)
	_, err = actions.CancelAll(ctx, "other")
	require.NoError(t, err)

	n, err := actions.ReleaseRunning(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	due, err := actions.Due(ctx, start)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, running, due[0].ID)
	assert.NotEqual(t, canceled, due[0].ID)
}
