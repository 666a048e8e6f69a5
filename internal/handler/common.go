package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used in getUserID
	"strconv" // strconv converts path parameters to numbers

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID extracts the user_id stored by JWTAuth and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.UserIDKey).(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
