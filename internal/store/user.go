package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/logmailer/internal/model"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	ID           string        `db:"id"`
	Email        string        `db:"email"`
	PasswordHash string        `db:"password_hash"`
	Role         string        `db:"role"`
	Status       string        `db:"status"`
	CreatedAt    int64         `db:"created_at"`
	LastLoginAt  sql.NullInt64 `db:"last_login_at"`
}

func (r userRow) toModel() *model.AdminUser {
	u := &model.AdminUser{
		ID:        r.ID,
		Email:     r.Email,
		Role:      model.Role(r.Role),
		Status:    model.Status(r.Status),
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}
	if r.LastLoginAt.Valid {
		t := time.Unix(r.LastLoginAt.Int64, 0).UTC()
		u.LastLoginAt = &t
	}
	return u
}

func (s *UserStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM admin_users`)
	return n, err
}

func (s *UserStore) Create(ctx context.Context, id, email, passwordHash, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, email, password_hash, role, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, strings.ToLower(email), passwordHash, role, string(model.StatusActive), time.Now().Unix(),
	)
	return err
}

// GetByEmail returns the user and its password hash.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.AdminUser, string, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM admin_users WHERE email = ?`, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return row.toModel(), row.PasswordHash, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.AdminUser, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM admin_users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (s *UserStore) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}
