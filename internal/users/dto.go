package users

import "time"

type CreateUserRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	Password    string  `json:"password"`
	StudentID   *string `json:"student_id"`
	Role        *string `json:"role"`
	PhoneNumber *string `json:"phone_number"`
	Course      *string `json:"course"`
}

type UpdateUserRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	FullName    *string `json:"full_name"`
	Password    *string `json:"password"`
	StudentID   *string `json:"student_id"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
	PhoneNumber *string `json:"phone_number"`
	Course      *string `json:"course"`
}

// UpdateProfileRequest は本人が自分で編集できる範囲だけを持つ。
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Course      *string `json:"course"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UserResponse struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	FullName       string  `json:"full_name"`
	StudentID      *string `json:"student_id,omitempty"`
	Role           string  `json:"role"`
	IsActive       bool    `json:"is_active"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	PhoneNumber    *string `json:"phone_number,omitempty"`
	Course         *string `json:"course,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func buildUserResponse(u *User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.StudentID.Valid {
		resp.StudentID = &u.StudentID.String
	}
	if u.ProfilePicture.Valid {
		resp.ProfilePicture = &u.ProfilePicture.String
	}
	if u.PhoneNumber.Valid {
		resp.PhoneNumber = &u.PhoneNumber.String
	}
	if u.Course.Valid {
		resp.Course = &u.Course.String
	}
	return resp
}
