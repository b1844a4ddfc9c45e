package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are carried by the session cookie. RegisteredClaims.ID is the
// session id, so every token maps to exactly one row in the sessions table.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the id of the session the token was issued for
func (c *TokenClaims) SessionID() string {
	return c.ID
}
