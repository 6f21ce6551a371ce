package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole identifies the authenticated principal kind carried in tokens.
type UserRole string

const (
	UserRoleTeacher UserRole = "TEACHER"
	UserRoleAdmin   UserRole = "ADMIN"
)

// JWTClaims is the access token payload for both teacher and admin sessions.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TeacherLoginRequest is the teacher login form payload.
type TeacherLoginRequest struct {
	TeacherID string `form:"teacher_id" json:"teacher_id" validate:"required"`
	Password  string `form:"password" json:"password" validate:"required"`

	IP        string `form:"-" json:"-" validate:"-"`
	UserAgent string `form:"-" json:"-" validate:"-"`
}

// AdminLoginRequest is the admin login form payload.
type AdminLoginRequest struct {
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`

	IP        string `form:"-" json:"-" validate:"-"`
	UserAgent string `form:"-" json:"-" validate:"-"`
}

// SessionInfo describes the authenticated principal returned on login.
type SessionInfo struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
}

// LoginResponse bundles the issued token with its validity window.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	IssuedAt    time.Time   `json:"issued_at"`
	User        SessionInfo `json:"user"`
}
