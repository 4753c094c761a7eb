package api

import (
	"context"
	"net/http"
	"time"

	drepo "EconCast/internal/domain/repository"
	xhttp "EconCast/pkg/http"

	"github.com/labstack/echo/v4"
)

// Router registers every API handler on one echo instance.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(handlers ...xhttp.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}

// HealthHandler reports liveness and storage reachability.
type HealthHandler struct {
	store   drepo.Storage
	timeout time.Duration
}

func NewHealthHandler(store drepo.Storage) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{
			"status":     "degraded",
			"clickhouse": err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok", "clickhouse": "ok"})
}
