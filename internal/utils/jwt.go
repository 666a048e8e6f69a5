package utils // package utils provides helper functions for token creation

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID, the user's role, and a TTL in minutes.
// The JWT includes the standard claims subject (sub), expiration (exp)
// and issued at (iat) plus the role.  Production tokens come from the
// auth service; this helper mints compatible ones for local use and tests.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
