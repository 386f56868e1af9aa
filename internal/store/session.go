package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/logmailer/internal/auth"
)

const SessionTTL = 4 * time.Hour

type SessionStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create inserts a new session and returns its ID.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	id := auth.GenerateToken()
	expiresAt := s.now().Add(SessionTTL).UTC()
	slog.Debug("creating session", "user_id", userID, "expires_at", expiresAt.Format(time.RFC3339))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		id, userID, expiresAt.Unix(),
	)
	return id, err
}

// GetUserID validates the session and returns the associated user ID.
// Returns ErrNotFound if the session does not exist or is expired.
func (s *SessionStore) GetUserID(ctx context.Context, sessionID string) (string, error) {
	var userID string
	err := s.db.GetContext(ctx, &userID,
		`SELECT user_id FROM sessions WHERE id = ? AND expires_at > ?`,
		sessionID, s.now().Unix(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// DeleteAllByUserID removes all sessions for a user (used on logout).
func (s *SessionStore) DeleteAllByUserID(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpired removes expired sessions.
func (s *SessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().Unix())
	return err
}
