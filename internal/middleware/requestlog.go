package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger tags every request with an ID (reusing an incoming
// X-Request-ID) and writes one log entry once the response is sent.
// Server errors are logged at error level, everything else at info.
func RequestLogger(log *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Request().Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set(RequestIDKey, reqID)
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)

			err := next(c)
			if err != nil {
				// let echo write the response so the status below is final
				c.Error(err)
			}

			status := c.Response().Status
			entry := log.WithFields(logrus.Fields{
				"request_id": reqID,
				"method":     c.Request().Method,
				"path":       c.Path(),
				"status":     status,
				"latency_ms": time.Since(start).Milliseconds(),
				"user_id":    userID(c),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			if status >= 500 {
				entry.Error("request failed")
			} else {
				entry.Info("request served")
			}
			return nil
		}
	}
}
