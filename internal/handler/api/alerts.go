package api

import (
	"EconCast/internal/domain/models"
	"EconCast/internal/usecase"
	xhttp "EconCast/pkg/http"
	xlogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AlertsHandler struct {
	logger *xlogger.Logger
	uc     *usecase.AlertsUseCase
}

func NewAlertsHandler(logger *xlogger.Logger, uc *usecase.AlertsUseCase) *AlertsHandler {
	return &AlertsHandler{logger: logger, uc: uc}
}

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alertas", h.Stored)
	g.POST("/alertas", h.Supplied)
}

type alertsResponse struct {
	Alertas interface{} `json:"alertas"`
}

func render(format string, alerts []models.Alert) alertsResponse {
	if format == "records" {
		if alerts == nil {
			alerts = []models.Alert{}
		}
		return alertsResponse{Alertas: alerts}
	}
	return alertsResponse{Alertas: models.Messages(alerts)}
}

// Stored scans the configured series as currently stored.
func (h *AlertsHandler) Stored(c echo.Context) error {
	req := &models.AlertsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.uc.Stored(c.Request().Context())
	if err != nil {
		h.logger.Error("alerts usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Erro ao carregar dados para alertas").WithError(err))
	}
	return xhttp.SuccessResponse(c, render(req.Format, out))
}

// Supplied scans the series in the request body.
func (h *AlertsHandler) Supplied(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	format := c.QueryParam("format")
	if format != "" && format != "records" && format != "messages" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("format must be one of: messages, records"))
	}
	return xhttp.SuccessResponse(c, render(format, h.uc.FromRecords(req.Series)))
}
