package sessions

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the identity claims the backend embeds in its tokens.
type TokenClaims struct {
	UserID    string
	ExpiresAt time.Time
}

// ClaimsFromToken reads user_id and exp from a JWT without verifying its signature.
// The client never holds the signing secret, so the values are hints only; the
// backend remains the authority and answers 401 for a bad token.
func ClaimsFromToken(token string) (TokenClaims, error) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parse token claims: %w", err)
	}

	var tc TokenClaims
	switch id := claims["user_id"].(type) {
	case string:
		tc.UserID = id
	case float64:
		tc.UserID = fmt.Sprintf("%.0f", id)
	}
	if tc.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			tc.UserID = sub
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, nil
}

// FromToken builds a Session for token, filling UserID and ExpiresAt from its
// claims when the token is a JWT. An explicit userID wins over the claim.
func FromToken(token, userID string, role Role) Session {
	s := Session{Token: token, UserID: userID, Role: role}
	if tc, err := ClaimsFromToken(token); err == nil {
		if s.UserID == "" {
			s.UserID = tc.UserID
		}
		s.ExpiresAt = tc.ExpiresAt
	}
	return s
}
