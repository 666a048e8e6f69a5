package middleware

// identity.go holds the context keys shared by the middleware in this
// package and the handlers that read them.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and RequestLogger.
const (
	UserIDKey    = "user_id"
	RoleKey      = "role"
	RequestIDKey = "request_id"
)

// subjectID converts a "sub" claim into a user ID.  JSON numbers decode
// as float64; some issuers send the ID as a string instead.
func subjectID(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), true
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// userID renders the authenticated user for logs and rate-limit keys.
// It returns "anon" when no user is authenticated.
func userID(c echo.Context) string {
	if v, ok := c.Get(UserIDKey).(uint64); ok && v > 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
