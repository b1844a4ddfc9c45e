package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sunvolt/loginguard/internal/models"
)

// TokenTypeSession marks tokens that authenticate an admin session
const TokenTypeSession = "session"

// TokenManager issues and validates session tokens. Each token's jti is the
// id of the session row it represents, so deleting the row revokes it.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry is the absolute lifetime of issued tokens
func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

// IssueSessionToken signs a token for the given user and session
func (tm *TokenManager) IssueSessionToken(user *models.User, sessionID string) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.expiry)

	claims := &models.TokenClaims{
		Type:   TokenTypeSession,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies a session token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != TokenTypeSession || claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: not a session token", models.ErrUnauthorized)
	}

	return claims, nil
}
