package users

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"CLIS-backend/internal/platform/auth"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// BorrowCounter は未返却の貸出数を返す。削除前ガードで使う。
type BorrowCounter interface {
	OutstandingByUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	store   *Store
	borrows BorrowCounter
	clock   Clock
}

func NewService(d *sql.DB, borrows BorrowCounter) *Service {
	return &Service{store: NewStore(d), borrows: borrows, clock: realClock{}}
}

func validRole(r string) bool {
	return r == auth.RoleAdmin || r == auth.RoleViewer
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 6 {
		return "", ErrInvalid("password must be at least 6 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if username == "" || email == "" || fullName == "" {
		return nil, ErrInvalid("username, email and full_name are required")
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalid("invalid email address")
	}

	role := auth.RoleViewer
	if req.Role != nil && *req.Role != "" {
		if !validRole(*req.Role) {
			return nil, ErrInvalid("role must be admin or viewer")
		}
		role = *req.Role
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	}
	if req.StudentID != nil {
		u.StudentID = sql.NullString{String: *req.StudentID, Valid: true}
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = sql.NullString{String: *req.PhoneNumber, Valid: true}
	}
	if req.Course != nil {
		u.Course = sql.NullString{String: *req.Course, Valid: true}
	}

	if err := s.store.ExecCreate(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	var spec updateSpec
	if req.Username != nil {
		n := strings.TrimSpace(*req.Username)
		if n == "" {
			return nil, ErrInvalid("username must not be empty")
		}
		spec.Username = &n
	}
	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		if !strings.Contains(e, "@") {
			return nil, ErrInvalid("invalid email address")
		}
		spec.Email = &e
	}
	spec.FullName = req.FullName
	spec.StudentID = req.StudentID
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, ErrInvalid("role must be admin or viewer")
		}
		spec.Role = req.Role
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		spec.PasswordHash = &hash
	}
	spec.IsActive = req.IsActive
	spec.PhoneNumber = req.PhoneNumber
	spec.Course = req.Course

	if err := s.store.ExecUpdate(ctx, id, spec); err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, id)
}

// DeleteUser は未返却の貸出が残っている利用者の削除を拒否する。
// 台帳の履歴ごと消えると在庫の辻褄が合わなくなるため。
func (s *Service) DeleteUser(ctx context.Context, callerID, id int64) error {
	if callerID == id {
		return ErrConflict("cannot delete your own account")
	}
	n, err := s.borrows.OutstandingByUser(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict(fmt.Sprintf("user has %d outstanding borrow(s); return them first", n))
	}
	return s.store.ExecDelete(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListUsers(ctx, limit, offset)
}

// ---- Profile ----

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*User, error) {
	spec := updateSpec{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Course:      req.Course,
	}
	if err := s.store.ExecUpdate(ctx, userID, spec); err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) SetProfilePicture(ctx context.Context, userID int64, url string) (*User, error) {
	if err := s.store.ExecUpdate(ctx, userID, updateSpec{ProfilePicture: &url}); err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return ErrInvalid("current password is incorrect")
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.store.ExecUpdate(ctx, userID, updateSpec{PasswordHash: &hash})
}

// ---- Seeding ----

// EnsureDefaults は空の users テーブルに admin/viewer の初期アカウントを
// 作る。既にユーザーがいれば何もしない。初期パスワードは初回ログイン後に
// 変更される前提の既知値。
func (s *Service) EnsureDefaults(ctx context.Context) error {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	defaults := []struct {
		username, email, fullName, role, password string
	}{
		{"admin", "admin@lab.local", "Lab Administrator", auth.RoleAdmin, "admin123"},
		{"viewer", "viewer@lab.local", "Lab Viewer", auth.RoleViewer, "viewer123"},
	}
	for _, d := range defaults {
		hash, err := hashPassword(d.password)
		if err != nil {
			return err
		}
		u := &User{
			Username:     d.username,
			Email:        d.email,
			FullName:     d.fullName,
			Role:         d.role,
			PasswordHash: hash,
			IsActive:     true,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.store.ExecCreate(ctx, u); err != nil {
			return err
		}
		log.Printf("[INFO] seeded default %s account (username=%s)", d.role, d.username)
	}
	return nil
}
