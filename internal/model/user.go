package model

import (
	"time"
)

// UserStatus is the availability of an agent.
type UserStatus string

const (
	UserAvailable UserStatus = "available"
	UserBusy      UserStatus = "busy"
	UserOffline   UserStatus = "offline"
)

// User is an authenticated operator of the inbox.
type User struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;type:varchar(255);not null"`
	Name         string     `json:"name" gorm:"type:varchar(255);not null"`
	RoleID       *string    `json:"role_id,omitempty" gorm:"type:uuid;index"`
	Role         *Role      `json:"role,omitempty" gorm:"foreignKey:RoleID"`
	AvatarURL    string     `json:"avatar_url,omitempty" gorm:"type:varchar(500)"`
	Status       UserStatus `json:"status" gorm:"type:varchar(16);not null;default:offline"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoleName returns the name of the user's role, or "" when unassigned.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// CreateUserRequest registers a new user.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=255"`
	RoleID   string `json:"role_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateUserRequest changes user attributes; empty fields are left as is.
type UpdateUserRequest struct {
	Email  string     `json:"email,omitempty" validate:"omitempty,email"`
	Name   string     `json:"name,omitempty" validate:"max=255"`
	RoleID string     `json:"role_id,omitempty" validate:"omitempty,uuid"`
	Status UserStatus `json:"status,omitempty" validate:"omitempty,oneof=available busy offline"`
}

// LoginRequest exchanges credentials for a bearer token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}
