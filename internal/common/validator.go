package common

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RequestValidator adapts go-playground/validator to echo's Validator
// interface. Failed struct validation maps to a 400 so handlers can return
// the error from c.Validate unchanged.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
