package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestID returns Echo's request ID middleware with UUIDv4 identifiers.
// Paths under relayPrefix are skipped so relayed backend responses are not
// given an extra header.
func RequestID(relayPrefix string) echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == relayPrefix || strings.HasPrefix(p, relayPrefix+"/")
		},
		Generator: uuid.NewString,
	})
}
