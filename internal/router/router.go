package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-seat-booking/internal/handler"    // handlers that translate HTTP to service calls
	"github.com/iliyamo/cinema-seat-booking/internal/middleware" // JWT authentication, roles and rate limiting
)

// Deps carries everything the routes need.
type Deps struct {
	Bookings  *handler.BookingHandler
	Seats     *handler.SeatHandler
	Health    echo.HandlerFunc
	Metrics   http.Handler        // optional; /metrics is not exposed when nil
	JWTSecret string              // verifies bearer tokens on /v1/bookings
	RateLimit echo.MiddlewareFunc // optional; guards booking creation
}

// RegisterRoutes registers routes that do not require authentication:
// the health check, the Prometheus endpoint and the public seat map.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}
	// Guests can view seat availability before signing in.
	e.GET("/v1/sessions/:id/seats", d.Seats.ForSession)
}

// RegisterBookings registers the customer booking endpoints under
// /v1/bookings.  All routes require a valid JWT and the CUSTOMER role.
func RegisterBookings(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/bookings",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	create := []echo.MiddlewareFunc{}
	if d.RateLimit != nil {
		create = append(create, d.RateLimit)
	}
	g.POST("", d.Bookings.Create, create...)
	g.GET("", d.Bookings.List)
	g.POST("/:id/confirm", d.Bookings.Confirm)
	g.DELETE("/:id", d.Bookings.Cancel)
	// Older clients cancel with a POST.
	g.POST("/:id/cancel", d.Bookings.Cancel)
}

// New builds the Echo instance with validation, request logging and
// every route registered.
func New(d Deps, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(mws...)
	RegisterRoutes(e, d)
	RegisterBookings(e, d)
	return e
}
