package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders errors that reach Echo's central handler, including
// router misses, in the proxy's JSON shape. Any unmatched path gets the
// not-found body.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = http.StatusText(code)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
		} else {
			logger.Error("unhandled error", "err", err, "path", c.Request().URL.Path)
		}
		if code == http.StatusNotFound {
			msg = notFoundMessage
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, failure(msg))
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
