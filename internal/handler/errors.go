package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// writeError maps a service error onto its HTTP response.  This is the
// only place kinds become status codes.  Internal errors are logged with
// the request ID and reach the client only as a generic message.
func writeError(c echo.Context, log *logrus.Entry, err error) error {
	kind := service.KindOf(err)
	switch kind {
	case service.InvalidInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.MessageOf(err), "code": kind.String()})
	case service.SeatTaken:
		unavailable := service.SeatIDsOf(err)
		if unavailable == nil {
			unavailable = []uint64{}
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       service.MessageOf(err),
			"code":        kind.String(),
			"unavailable": unavailable,
		})
	case service.NotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": service.MessageOf(err), "code": kind.String()})
	}
	log.WithError(err).WithFields(logrus.Fields{
		"request_id": c.Get(middleware.RequestIDKey),
		"path":       c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": kind.String()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": service.InvalidInput.String()})
}
