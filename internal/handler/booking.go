package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// BookingEngine is the lifecycle side of the booking service.
type BookingEngine interface {
	Create(ctx context.Context, in service.CreateBookingInput) (service.CreatedBooking, error)
	Confirm(ctx context.Context, userID, bookingID uint64) (model.Booking, error)
	Cancel(ctx context.Context, userID, bookingID uint64) (bool, error)
}

// BookingLister is the read side used by GET /v1/bookings.
type BookingLister interface {
	ListForUser(ctx context.Context, userID uint64) ([]service.BookingView, error)
}

// BookingHandler serves the authenticated booking endpoints.  All
// methods assume JWTAuth has run and answer 401 when no user ID can be
// extracted from the context.
type BookingHandler struct {
	engine BookingEngine
	lister BookingLister
	log    *logrus.Entry
}

// NewBookingHandler constructs a BookingHandler and panics if any
// dependency is nil.
func NewBookingHandler(engine BookingEngine, lister BookingLister, log *logrus.Entry) *BookingHandler {
	if engine == nil || lister == nil || log == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{engine: engine, lister: lister, log: log}
}

type createBookingRequest struct {
	SessionID uint64   `json:"session_id" validate:"required,gt=0"`
	SeatIDs   []uint64 `json:"seat_ids" validate:"required,min=1,dive,gt=0"`
}

// Create handles POST /v1/bookings.  The body must be a JSON object
// with a positive "session_id" and a non-empty "seat_ids" array of
// positive integers.  On success it returns 201 with the booking ID,
// status and hold deadline; 409 lists the seats that are not available.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, "session_id and a non-empty seat_ids array of positive integers are required")
	}
	out, err := h.engine.Create(c.Request().Context(), service.CreateBookingInput{
		UserID:    userID,
		SessionID: body.SessionID,
		SeatIDs:   body.SeatIDs,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Confirm handles POST /v1/bookings/:id/confirm.  Confirming twice
// returns the same booking; a missing or lapsed hold is 404.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.engine.Confirm(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /v1/bookings/:id and POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	existed, err := h.engine.Cancel(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !existed {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found", "code": service.NotFound.String()})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true})
}

// List handles GET /v1/bookings and returns the caller's bookings,
// newest first.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.lister.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
