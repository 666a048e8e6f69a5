package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator returns the echo.Validator used for request bodies.
func NewValidator() echo.Validator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (r *requestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}
