package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// OptionStore is a site-wide key/value store. Writes are upserts; the last
// write wins.
type OptionStore struct {
	db *sqlx.DB
}

func NewOptionStore(db *sqlx.DB) *OptionStore {
	return &OptionStore{db: db}
}

// Get returns the stored value for name, or def when the option is absent.
func (s *OptionStore) Get(ctx context.Context, name, def string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM options WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Exists reports whether name has a stored value.
func (s *OptionStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM options WHERE name = ?)`, name)
	return exists, err
}

func (s *OptionStore) Update(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value,
	)
	return err
}

// Delete removes name. Deleting an absent option is not an error.
func (s *OptionStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name)
	return err
}
