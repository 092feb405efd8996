package authapi

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from a bearer token without verifying it.
// It is for display only; the identity service remains the authority on validity.
type TokenInfo struct {
	Subject   string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim before now.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// InspectToken decodes the claims of a JWT bearer token without checking its signature.
func InspectToken(token string) (TokenInfo, error) {
	if token == "" {
		return TokenInfo{}, errors.New("authapi: empty token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, err
	}
	var info TokenInfo
	info.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if v, ok := claims["user_id"].(float64); ok {
		info.UserID = int64(v)
	}
	return info, nil
}
