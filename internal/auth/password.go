package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/logmailer/internal/model"
)

const bcryptCost = 12

// MinPasswordLength applies to every admin password set outside tests.
const MinPasswordLength = 12

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// Hash returns a bcrypt hash of the password.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(b), err
}

// Verify reports whether password matches the stored bcrypt hash.
func Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func CheckPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// NewID returns a random UUID for users and scheduled actions.
func NewID() string {
	return uuid.NewString()
}

// GenerateToken returns 32 random bytes hex-encoded, used as session tokens.
func GenerateToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UserCreator is what seeding needs from the user store.
type UserCreator interface {
	CountAll(ctx context.Context) (int, error)
	Create(ctx context.Context, id, email, passwordHash, role string) error
}

// SeedFirstAdmin creates an administrator from email and password when no
// admin account exists yet. Blank credentials skip seeding. It reports
// whether an account was created.
func SeedFirstAdmin(ctx context.Context, users UserCreator, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if err := CheckPassword(password); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	count, err := users.CountAll(ctx)
	if err != nil {
		return false, fmt.Errorf("seed admin: count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := Hash(password)
	if err != nil {
		return false, fmt.Errorf("seed admin: hash: %w", err)
	}
	if err := users.Create(ctx, NewID(), email, hash, string(model.RoleAdministrator)); err != nil {
		return false, fmt.Errorf("seed admin: create: %w", err)
	}
	return true, nil
}

// IsWeakPassword reports whether err came from CheckPassword.
func IsWeakPassword(err error) bool {
	return errors.Is(err, ErrWeakPassword)
}
