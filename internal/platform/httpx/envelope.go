// Package httpx holds the JSON envelope, request validation and error
// translation shared by every handler.
package httpx

import (
	"github.com/labstack/echo/v4"
)

// OK writes a success envelope: {"success": true, "message": ..., ...payload}.
// An empty message is omitted.
func OK(c echo.Context, status int, message string, payload echo.Map) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

// Fail writes a failure envelope.
func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}
