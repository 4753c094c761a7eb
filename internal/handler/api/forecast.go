package api

import (
	"net/http"
	"strconv"
	"strings"

	"EconCast/internal/domain/models"
	"EconCast/internal/usecase"
	xhttp "EconCast/pkg/http"
	"EconCast/pkg/http/middleware"
	xlogger "EconCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderModelFamily     = "X-Model-Family"
	HeaderVolatilityRatio = "X-Volatility-Ratio"
)

type ForecastHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.ForecastUseCase
	limiter *middleware.Limiter
}

// NewForecastHandler creates the handler. A nil limiter disables rate limiting.
func NewForecastHandler(logger *xlogger.Logger, uc *usecase.ForecastUseCase, limiter *middleware.Limiter) *ForecastHandler {
	return &ForecastHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, middleware.RateLimit(h.limiter))
	}
	e.POST("/api/predict/:indicator", h.Predict, mw...)
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ind := models.Indicator(req.Indicator)
	if n := len(req.HistoricalData); n > 0 && n < 2*req.WindowSize {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_INSUFFICIENT_DATA",
			"historical_data",
			"Dados históricos insuficientes para análise de "+strings.ToUpper(string(ind))+
				". Necessários pelo menos "+strconv.Itoa(2*req.WindowSize)+" pontos.",
			http.StatusBadRequest,
		).WithParam("min", 2*req.WindowSize))
	}

	out, err := h.uc.Predict(c.Request().Context(), usecase.PredictParams{
		Indicator: ind,
		Records:   req.HistoricalData,
		Periods:   req.Periods,
		Window:    req.WindowSize,
		ModelType: models.ModelFamily(req.ModelType),
		Strict:    req.Strict,
	})
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= 500 {
			h.logger.Error("predict usecase error",
				xlogger.String("indicator", string(ind)),
				xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}

	hdr := c.Response().Header()
	hdr.Set(HeaderModelFamily, string(out.Family))
	hdr.Set(HeaderVolatilityRatio, strconv.FormatFloat(out.VolatilityRatio, 'f', 4, 64))
	return xhttp.SuccessResponse(c, out.Points)
}
