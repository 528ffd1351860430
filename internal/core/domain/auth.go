package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrTokenExpired indicates a bearer token past its expiry
var ErrTokenExpired = errors.New("token expired")

// Role is the operator role carried in a bearer token
type Role string

const (
	// RoleAdmin may build indexes and activate searchers
	RoleAdmin Role = "admin"

	// RoleReader may only query and read status
	RoleReader Role = "reader"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleReader
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthContext is the authenticated caller attached to a request
type AuthContext struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// IsAdmin checks if the caller may run mutating operations
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// NewTokenClaims builds claims for subject valid for ttl from now
func NewTokenClaims(subject string, role Role, ttl time.Duration) (*TokenClaims, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: token subject is required", ErrInvalidArgument)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: token ttl must be positive, got %s", ErrInvalidArgument, ttl)
	}
	now := time.Now()
	return &TokenClaims{
		Subject:   subject,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}, nil
}
