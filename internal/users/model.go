package users

import (
	"database/sql"
	"time"
)

type User struct {
	ID             int64
	Username       string
	Email          string
	FullName       string
	StudentID      sql.NullString
	Role           string
	PasswordHash   string
	IsActive       bool
	ProfilePicture sql.NullString
	PhoneNumber    sql.NullString
	Course         sql.NullString
	CreatedAt      time.Time
}
