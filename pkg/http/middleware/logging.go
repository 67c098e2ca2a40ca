package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "ForexDash/pkg/logger"
)

// RequestLogging logs one line per request. 5xx responses are logged at error level.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				// let echo write the error so the logged status is the real one
				c.Error(err)
			}

			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("latency", time.Since(start)),
			}
			switch {
			case status >= 500:
				if err != nil {
					fields = append(fields, applogger.Error(err))
				}
				l.Error("http request", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
