package auth

import (
	"context"
	"database/sql"
	"errors"
)

// Account は users テーブルのうち認証に必要な列のみ。
type Account struct {
	ID           int64
	Username     string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	IsActive     bool
}

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	const q = `
SELECT id, username, email, full_name, role, password_hash, is_active
FROM users
WHERE username = ?
LIMIT 1
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, username))
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Account, error) {
	const q = `
SELECT id, username, email, full_name, role, password_hash, is_active
FROM users
WHERE id = ?
LIMIT 1
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) scanOne(row *sql.Row) (*Account, error) {
	var a Account
	var isActiveInt int
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.FullName,
		&a.Role,
		&a.PasswordHash,
		&isActiveInt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isActiveInt != 0 {
		a.IsActive = true
	}
	return &a, nil
}
