package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"event-relay/internal/telemetry"
)

// Tracing returns an Echo middleware that opens a server span per request,
// continuing any W3C trace context the caller sent.
func Tracing(tr *telemetry.Tracing) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			ctx, span := tr.StartServerSpan(c.Request(), route)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			telemetry.EndServerSpan(span, status)

			return err
		}
	}
}
