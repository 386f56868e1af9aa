package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse")
	require.NoError(t, err)

	assert.True(t, Verify(hash, "correct horse"))
	assert.False(t, Verify(hash, "wrong horse"))
}

func TestGenerateToken(t *testing.T) {
	a, b := GenerateToken(), GenerateToken()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNonceBoundToActionAndSession(t *testing.T) {
	n := NewNoncer("secret-secret-secret")
	nonce := n.Create("update_recipients", "session-1")

	assert.True(t, n.Verify(nonce, "update_recipients", "session-1"))
	assert.False(t, n.Verify(nonce, "send_now", "session-1"))
	assert.False(t, n.Verify(nonce, "update_recipients", "session-2"))
	assert.False(t, n.Verify("", "update_recipients", "session-1"))
}

func TestNonceExpiry(t *testing.T) {
	base := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	n := NewNoncer("secret-secret-secret")
	n.now = func() time.Time { return base }
	nonce := n.Create("update_recipients", "s")

	n.now = func() time.Time { return base.Add(NonceLifetime/2 + time.Hour) }
	assert.True(t, n.Verify(nonce, "update_recipients", "s"), "previous tick still valid")

	n.now = func() time.Time { return base.Add(NonceLifetime + time.Hour) }
	assert.False(t, n.Verify(nonce, "update_recipients", "s"))
}

type fakeUsers struct {
	count   int
	created []string
	err     error
}

func (f *fakeUsers) CountAll(ctx context.Context) (int, error) { return f.count, f.err }

func (f *fakeUsers) Create(ctx context.Context, id, email, hash, role string) error {
	f.created = append(f.created, email+":"+role)
	return nil
}

func TestSeedFirstAdmin(t *testing.T) {
	ctx := context.Background()
	const pw = "long enough password"

	empty := &fakeUsers{}
	created, err := SeedFirstAdmin(ctx, empty, "admin@site.com", pw)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"admin@site.com:administrator"}, empty.created)

	existing := &fakeUsers{count: 1}
	created, err = SeedFirstAdmin(ctx, existing, "admin@site.com", pw)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, existing.created)

	blank := &fakeUsers{}
	created, err = SeedFirstAdmin(ctx, blank, "", pw)
	require.NoError(t, err)
	assert.False(t, created)

	weak := &fakeUsers{}
	_, err = SeedFirstAdmin(ctx, weak, "admin@site.com", "pw")
	assert.True(t, IsWeakPassword(err))
	assert.Empty(t, weak.created)

	broken := &fakeUsers{err: errors.New("db down")}
	_, err = SeedFirstAdmin(ctx, broken, "admin@site.com", pw)
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, broken.created)
}
