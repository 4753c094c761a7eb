package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Idle buckets are dropped on sweep.
type Limiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idle    time.Duration
	buckets map[string]*visitor
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		buckets: make(map[string]*visitor),
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	v, ok := l.buckets[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = v
	}
	v.seen = now
	if len(l.buckets) > 1024 {
		l.sweep(now)
	}
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

func (l *Limiter) sweep(now time.Time) {
	for k, v := range l.buckets {
		if now.Sub(v.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

// RateLimit rejects requests over the per client IP budget with 429.
func RateLimit(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
