package api

import (
	"time"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/records"
)

// RegisterRequest is the body of POST /auth/register. display_name is
// accepted as an alias of full_name.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
}

// Name returns the display name, preferring full_name
func (r RegisterRequest) Name() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.DisplayName
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyTokenRequest is the body of POST /auth/verify-token
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Input string `json:"input"`
}

// UserResponse is the public view of an account. It never carries
// verification material.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Provider  string     `json:"provider,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// SessionResponse is returned by register and login
type SessionResponse struct {
	AccessToken string       `json:"access_token,omitempty"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in,omitempty"`
	User        UserResponse `json:"user"`
	Message     string       `json:"message,omitempty"`
}

// TokenUser mirrors the verified claims of a token
type TokenUser struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Issuer    string `json:"iss"`
	ExpiresAt int64  `json:"exp"`
}

// VerifyTokenResponse is returned by POST /auth/verify-token
type VerifyTokenResponse struct {
	Valid bool       `json:"valid"`
	User  *TokenUser `json:"user,omitempty"`
}

// AskListResponse is returned by GET /ask
type AskListResponse struct {
	Records []*records.Record `json:"records"`
	Count   int               `json:"count"`
}

func newUserResponse(u *auth.UserIdentity) UserResponse {
	resp := UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.DisplayName,
		Provider: u.Provider,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func newTokenUser(identity *auth.IdentityContext) *TokenUser {
	return &TokenUser{
		Subject:   identity.Subject,
		Email:     identity.Email,
		Name:      identity.DisplayName,
		Issuer:    identity.Issuer,
		ExpiresAt: identity.ExpiresAt.Unix(),
	}
}
