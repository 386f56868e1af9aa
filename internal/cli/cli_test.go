package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logmailer/internal/logmail"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.Mkdir(logDir, 0o755))

	t.Setenv("ENV", "test")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "cli.db"))
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
	t.Setenv("SETTINGS_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("LOG_DIR", logDir)
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("RECOVERY_MODE_EMAIL", "")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SCHEDULER", "action")
	t.Setenv("TIMEZONE", "UTC")
	return logDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")

	out, err = run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "reverted")
}

func TestAdminCreate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "admin", "create", "--email", "ops@example.com", "--password", "a long enough password")
	require.NoError(t, err)
	assert.Contains(t, out, "created ops@example.com (administrator)")

	_, err = run(t, "admin", "create", "--email", "ops@example.com", "--password", "a long enough password")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "admin", "create", "--email", "not an email", "--password", "a long enough password")
	assert.Error(t, err)
}

func TestActivateStatusDeactivate(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "activate")
	require.NoError(t, err)

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "provider: action-scheduler")
	assert.Contains(t, out, "05:00 UTC")

	_, err = run(t, "deactivate")
	require.NoError(t, err)

	out, err = run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not scheduled")
}

func TestSend(t *testing.T) {
	logDir := setupEnv(t)
	date := logmail.Yesterday(time.Now(), time.UTC)
	name := "fatal-errors-" + date + "-abc123.log"
	require.NoError(t, os.WriteFile(filepath.Join(logDir, name), []byte("PHP Fatal error"), 0o644))

	out, err := run(t, "send")
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s), 1 recipient(s), 1 sent, 0 failed")
}

func TestScheduleCommandsRefuseCronProvider(t *testing.T) {
	setupEnv(t)
	t.Setenv("SCHEDULER", "cron")

	for _, cmd := range []string{"activate", "deactivate", "status"} {
		_, err := run(t, cmd)
		assert.ErrorIs(t, err, errCronInProcess, cmd)
	}
}
