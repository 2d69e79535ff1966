package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/logging"
)

// Envelope is the shape of every response body, success or failure.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// PagedData pairs a result page with its pagination block.
type PagedData struct {
	Data       any `json:"data"`
	Pagination any `json:"pagination"`
}

func OK(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// NewErrorHandler maps domain errors to the envelope. Unexpected failures
// are opaque in production and verbose in development.
func NewErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		l := logging.FromContext(c.Request().Context())

		status := http.StatusInternalServerError
		message := "Internal server error"
		var errs []string

		var ae *apperr.Error
		var ve *ValidationError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ve):
			status = http.StatusBadRequest
			message = "Validation failed"
			errs = ve.Messages
		case errors.As(err, &ae):
			status = ae.Status
			message = ae.Message
		case errors.As(err, &he):
			status = he.Code
			message = fmt.Sprintf("%v", he.Message)
		default:
			if !production {
				message = err.Error()
			}
		}

		if status >= http.StatusInternalServerError {
			l.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		} else {
			l.Warn("request rejected", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}

		if writeErr := c.JSON(status, Envelope{Success: false, Message: message, Errors: errs}); writeErr != nil {
			l.Error("failed to write error response", "error", writeErr)
		}
	}
}
