package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries credentials. IP and UserAgent are filled from the
// HTTP request and end up in the audit trail.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// TokenPair is what a session hands to the client. ExpiresIn counts seconds
// of access token validity from IssuedAt.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// LoginResponse is the token pair plus the account that logged in.
type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

// ChangePasswordRequest replaces the password of the signed-in account.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID       string   `json:"id"`
	PersonID string   `json:"person_id,omitempty"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims is the access token payload. PersonID is empty for staff
// accounts without a person.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	PersonID string   `json:"person_id,omitempty"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor converts the token claims into a revision actor.
func (c *JWTClaims) Actor() *Actor {
	if c == nil {
		return nil
	}
	return &Actor{UserID: c.UserID, PersonID: c.PersonID, Name: c.FullName, Role: c.Role}
}
