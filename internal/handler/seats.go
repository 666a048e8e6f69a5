package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// SeatMap reports seat availability for a session.
type SeatMap interface {
	ForSession(ctx context.Context, sessionID uint64) ([]service.SeatAvailability, error)
}

// SeatHandler serves the public seat map.  No authentication is needed
// so guests can look at a session before signing in.
type SeatHandler struct {
	seats SeatMap
	log   *logrus.Entry
}

// NewSeatHandler constructs a SeatHandler and panics if any dependency is nil.
func NewSeatHandler(seats SeatMap, log *logrus.Entry) *SeatHandler {
	if seats == nil || log == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	return &SeatHandler{seats: seats, log: log}
}

// ForSession handles GET /v1/sessions/:id/seats.  Every seat of the
// session's room is listed with status AVAILABLE or TAKEN, ordered by
// row then number.  Unknown sessions are 404.
func (h *SeatHandler) ForSession(c echo.Context) error {
	sessionID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	items, err := h.seats.ForSession(c.Request().Context(), sessionID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": sessionID, "items": items})
}
