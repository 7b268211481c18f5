package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// JWTAuthenticator implements Authenticator by verifying HS256 bearer
// tokens against a shared secret. Token issuance is out of scope (§1);
// this only verifies tokens minted elsewhere and reads the subject claim
// as the user ID.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

var _ Authenticator = (*JWTAuthenticator)(nil)

func (a *JWTAuthenticator) VerifyToken(ctx context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwtauth: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("jwtauth: invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("jwtauth: missing sub claim")
	}
	return sub, nil
}
