package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Timeout bounds the request context. Handlers that honor ctx give up once
// d elapses; a non-positive d leaves the context untouched.
func Timeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
