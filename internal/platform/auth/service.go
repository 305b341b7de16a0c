package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrAccountDisabled = errors.New("account disabled")
	ErrNotFound        = errors.New("not found")
)

type Service struct {
	store  AccountStore
	secret []byte
	expiry time.Duration
}

func NewService(db *sql.DB, secret string, expiry time.Duration) *Service {
	return &Service{
		store:  NewStore(db),
		secret: []byte(secret),
		expiry: expiry,
	}
}

func (s *Service) Secret() []byte { return s.secret }

// Login はパスワード照合に成功したらJWTと本人情報を返す。
// 失敗理由（ユーザー不在/パスワード不一致）は呼び出し側に区別させない。
func (s *Service) Login(ctx context.Context, username, password string) (string, *Account, error) {
	acct, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if acct == nil {
		return "", nil, ErrAuthFailed
	}
	if !acct.IsActive {
		return "", nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     acct.Username,
		"user_id": acct.ID,
		"role":    acct.Role,
		"exp":     time.Now().Add(s.expiry).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, acct, nil
}

// Me は認証済みユーザー自身の情報を返す。
func (s *Service) Me(ctx context.Context, userID int64) (*Account, error) {
	acct, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotFound
	}
	return acct, nil
}
