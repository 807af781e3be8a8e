// Package auth validates and mints the bearer tokens that identify actors.
// Tokens carry only the actor's ID and role; account management lives in the
// identity provider that issues them.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the kind of actor a token was issued to.
type Role string

// Known roles
const (
	RoleParticipant Role = "participant"
	RoleProvider    Role = "provider"
	RoleAdmin       Role = "admin"
)

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleParticipant, RoleProvider, RoleAdmin:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed token for actorID acting as role.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, actorID uuid.UUID, role Role) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns an error if validation fails (expired, invalid signature, unknown role).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a token.
type Claims struct {
	// ActorID identifies the participant, provider or administrator.
	ActorID uuid.UUID `json:"aid"`

	// Role is what the actor may do.
	Role Role `json:"role"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// HasRole reports whether the claims carry one of roles.
func (c *Claims) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
