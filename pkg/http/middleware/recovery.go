package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover logs a handler panic with its stack and answers 500 in the
// usual envelope. http.ErrAbortHandler is re-raised so net/http can drop
// the connection.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("panic: %v", r)
				}
				if errors.Is(cause, http.ErrAbortHandler) {
					panic(r)
				}
				l.Error("handler panic",
					applogger.Error(cause),
					applogger.String("method", c.Request().Method),
					applogger.String("route", routeLabel(c)),
					applogger.String("stack", string(debug.Stack())))
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": http.StatusText(http.StatusInternalServerError),
				})
			}()
			return next(c)
		}
	}
}
