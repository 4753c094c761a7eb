package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	applogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter(0.001, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per key")
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimit(NewLimiter(0.001, 1)))

	do := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestRecoverAndMetrics(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()), Metrics(applogger.Nop(), 0))
	e.GET("/boom/:id", func(c echo.Context) error { panic("kaboom") })
	e.GET("/ok/:id", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom/1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORSExposeHeaders(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}, ExposeHeaders: []string{"X-Model-Family"}}))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://dash.local")
	e.ServeHTTP(rec, req)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Model-Family", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	e := echo.New()
	var has bool
	e.GET("/t", func(c echo.Context) error {
		_, has = c.Request().Context().Deadline()
		return c.NoContent(http.StatusNoContent)
	}, Timeout(time.Second))
	e.GET("/none", func(c echo.Context) error {
		_, has = c.Request().Context().Deadline()
		return c.NoContent(http.StatusNoContent)
	}, Timeout(0))

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.True(t, has)
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/none", nil))
	assert.False(t, has)
}
