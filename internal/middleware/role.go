package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It relies on
// JWTAuth having stored the token's role claim under RoleKey.  Any
// other role, or none at all, is answered with 403 Forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(RoleKey).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
