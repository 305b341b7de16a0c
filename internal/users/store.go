package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"CLIS-backend/internal/platform/db"

	"github.com/go-sql-driver/mysql"
)

type Store struct {
	db *sql.DB
}

func NewStore(d *sql.DB) *Store { return &Store{db: d} }

const mysqlErrDuplicate = 1062

// username と email の両方に UNIQUE 制約があるので、どちらの衝突かは
// エラーメッセージのキー名で見分ける。
func duplicateField(err error) string {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlErrDuplicate {
		return ""
	}
	if strings.Contains(me.Message, "email") {
		return "email"
	}
	return "username"
}

// updateSpec は ExecUpdate で適用する差分。nil のフィールドは変更しない。
type updateSpec struct {
	Username       *string
	Email          *string
	FullName       *string
	StudentID      *string
	Role           *string
	PasswordHash   *string
	IsActive       *bool
	ProfilePicture *string
	PhoneNumber    *string
	Course         *string
}

// ---- Transactional Methods ----

func (s *Store) ExecCreate(ctx context.Context, u *User) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users
				(username, email, full_name, student_id, role, password_hash,
				 is_active, profile_picture, phone_number, course, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.Username, u.Email, u.FullName, u.StudentID, u.Role, u.PasswordHash,
			u.IsActive, u.ProfilePicture, u.PhoneNumber, u.Course, u.CreatedAt,
		)
		if err != nil {
			if f := duplicateField(err); f != "" {
				return ErrConflict(f + " already registered")
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		u.ID = id
		return nil
	})
}

func (s *Store) ExecUpdate(ctx context.Context, id int64, spec updateSpec) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var exists int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("user not found")
		}
		if err != nil {
			return fmt.Errorf("lock user %d: %w", id, err)
		}

		var sets []string
		var args []any
		add := func(col string, v any) {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
		if spec.Username != nil {
			add("username", *spec.Username)
		}
		if spec.Email != nil {
			add("email", *spec.Email)
		}
		if spec.FullName != nil {
			add("full_name", *spec.FullName)
		}
		if spec.StudentID != nil {
			add("student_id", *spec.StudentID)
		}
		if spec.Role != nil {
			add("role", *spec.Role)
		}
		if spec.PasswordHash != nil {
			add("password_hash", *spec.PasswordHash)
		}
		if spec.IsActive != nil {
			add("is_active", *spec.IsActive)
		}
		if spec.ProfilePicture != nil {
			add("profile_picture", *spec.ProfilePicture)
		}
		if spec.PhoneNumber != nil {
			add("phone_number", *spec.PhoneNumber)
		}
		if spec.Course != nil {
			add("course", *spec.Course)
		}
		if len(sets) == 0 {
			return nil
		}

		q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if f := duplicateField(err); f != "" {
				return ErrConflict(f + " already registered")
			}
			return fmt.Errorf("update user %d: %w", id, err)
		}
		return nil
	})
}

func (s *Store) ExecDelete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound("user not found")
		}
		return nil
	})
}

// ---- Query Methods ----

const userSelect = `
	SELECT id, username, email, full_name, student_id, role, password_hash,
	       is_active, profile_picture, phone_number, course, created_at
	FROM users`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.StudentID, &u.Role,
		&u.PasswordHash, &u.IsActive, &u.ProfilePicture, &u.PhoneNumber,
		&u.Course, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		userSelect+` ORDER BY username ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
