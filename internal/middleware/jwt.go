package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// subject is stored as a uint64 under "user_id" and the role as a string
// under "role".  Tokens are issued by the auth service; this middleware
// only verifies them with the shared secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse also checks exp and rejects any algorithm other than HS256.
			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			uid, ok := subjectID(claims["sub"])
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			role, _ := claims["role"].(string)

			c.Set(UserIDKey, uid)
			c.Set(RoleKey, role)
			return next(c)
		}
	}
}
