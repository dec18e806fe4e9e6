package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token classes. Every token carries its class in the claims, and every
// verification site states which class it expects. A refresh token can
// never be replayed where an access token is required (and vice versa),
// even though both are HS256-signed JWTs.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Lifetimes follow the usual split: access tokens are short enough that a
// stolen one goes stale quickly, refresh tokens long enough that users
// aren't logged out mid-week.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims is the payload inside every JWT this service issues.
//
// TokenType distinguishes access from refresh tokens. The WebSocket
// handshake and the REST middleware accept only TokenTypeAccess;
// /v1/auth/refresh accepts only TokenTypeRefresh.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	TokenType string    `json:"type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken mints a short-lived access token for a user.
func GenerateAccessToken(userID uuid.UUID, email, secret string) (string, error) {
	return generateToken(userID, email, TokenTypeAccess, secret, AccessTokenTTL)
}

// GenerateRefreshToken mints a long-lived refresh token for a user.
func GenerateRefreshToken(userID uuid.UUID, email, secret string) (string, error) {
	return generateToken(userID, email, TokenTypeRefresh, secret, RefreshTokenTTL)
}

func generateToken(userID uuid.UUID, email, tokenType, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pulse",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a JWT string and extracts the claims.
//
// It verifies the signature against secret, the expiry, the signing method
// (HMAC only — rejects algorithm-switching tokens), and that the token's
// class matches wantType.
func ParseToken(tokenString, secret, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("wrong token type: got %q, want %q", claims.TokenType, wantType)
	}

	return claims, nil
}
