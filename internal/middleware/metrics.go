package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"event-relay/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that counts and times inbound
// requests by method, status and route. Routes are labelled from the matched
// route template, so the configured scrape path and the relay endpoints get
// their own series and everything else collapses into "other".
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			labels := []string{
				metrics.NormalizeMethod(c.Request().Method),
				strconv.Itoa(responseStatus(c, err)),
				routeLabel(c, m),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// responseStatus returns the status the caller will see. An *echo.HTTPError
// is written later by the central error handler.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}

func routeLabel(c echo.Context, m *metrics.Metrics) string {
	if p := c.Path(); p != "" {
		return m.NormalizePath(p)
	}
	return m.NormalizePath(c.Request().URL.Path)
}
