package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/getadoc/getadoc/internal/platform/apperr"
)

const internalMessage = "Internal server error"

// ErrorHandler translates handler errors into the failure envelope. Typed
// domain errors keep their message; anything unclassified becomes a 500 with
// a generic message and is logged.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = Fail(c, status, msg)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func classify(err error) (int, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.HTTPStatus(ae.Kind), ae.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError && he.Code != http.StatusGatewayTimeout {
			return he.Code, internalMessage
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	return http.StatusInternalServerError, internalMessage
}
