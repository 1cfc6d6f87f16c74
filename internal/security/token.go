// Package security issues player tokens and hashes passwords.
package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "guess2"

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("security: missing jwt secret")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("security: invalid token")
)

// UserClaims are the claims carried by a player token.
type UserClaims struct {
	UserID  uint64 `json:"uid"`
	IsAdmin bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// IssueUserToken signs an HS256 token for userID valid for expiry.
func IssueUserToken(secret string, userID uint64, isAdmin bool, expiry time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := UserClaims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseUserToken verifies token and returns its claims. Only HS256 is accepted.
func ParseUserToken(secret, token string) (*UserClaims, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &UserClaims{}
	parsed, errParse := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if errParse != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errParse)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
