package api

import (
	"fmt"
	"net/http"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/services/features"
	"EconCast/internal/usecase"
	xhttp "EconCast/pkg/http"
	xlogger "EconCast/pkg/logger"
	"EconCast/pkg/util"

	"github.com/labstack/echo/v4"
)

type SeriesHandler struct {
	logger *xlogger.Logger
	uc     *usecase.SeriesUseCase
}

func NewSeriesHandler(logger *xlogger.Logger, uc *usecase.SeriesUseCase) *SeriesHandler {
	return &SeriesHandler{logger: logger, uc: uc}
}

func (h *SeriesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/series/:indicator", h.Observations)
	g.GET("/series/:indicator/stats", h.Stats)
	g.GET("/filtro/:tipo", h.FilterMonth)
	g.GET("/filtro-pib/:ano", h.FilterPIB)
	g.GET("/media/:tipo", h.Mean)
}

func (h *SeriesHandler) Observations(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var from, to time.Time
	for _, b := range []struct {
		raw   string
		field string
		dst   *time.Time
	}{{req.From, "from", &from}, {req.To, "to", &to}} {
		if b.raw == "" {
			continue
		}
		t, ok := xhttp.ParseDate(b.raw)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_DATE", b.field, "invalid date "+b.raw, http.StatusBadRequest))
		}
		*b.dst = t
	}

	s, err := h.uc.Observations(c.Request().Context(), models.Indicator(req.Indicator), from, to, req.Limit)
	if err != nil {
		return h.fail(c, "series", err)
	}
	return xhttp.ListResponse(c, nonNil(s), int64(len(s)))
}

func (h *SeriesHandler) Stats(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind := models.Indicator(req.Indicator)

	sum, err := h.uc.Summary(c.Request().Context(), ind)
	if err != nil {
		return h.fail(c, "stats", err)
	}
	if sum.Count == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("Dados não encontrados para %s", ind))
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *SeriesHandler) FilterMonth(c echo.Context) error {
	req := &models.FilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind := models.Indicator(req.Tipo)
	if ind == models.PIB {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("Para dados do PIB, use a rota /api/filtro-pib/{ano}?trimestre="))
	}
	month, ok := util.ParseMonth(req.Mes)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_MONTH", "mes", "mês inválido: "+req.Mes, http.StatusBadRequest))
	}

	s, err := h.uc.ByMonth(c.Request().Context(), ind, req.Ano, month)
	if err != nil {
		return h.fail(c, "filter", err)
	}
	return xhttp.ListResponse(c, nonNil(s), int64(len(s)))
}

func (h *SeriesHandler) FilterPIB(c echo.Context) error {
	req := &models.PIBFilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, err := h.uc.ByQuarter(c.Request().Context(), models.PIB, req.Ano, req.Trimestre)
	if err != nil {
		return h.fail(c, "filter_pib", err)
	}
	if len(s) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("Dados não encontrados para o ano %d e trimestre %d", req.Ano, req.Trimestre))
	}
	return xhttp.ListResponse(c, s, int64(len(s)))
}

type meanResponse struct {
	Indicator models.Indicator `json:"indicator"`
	Periodo   string           `json:"periodo"`
	Media     float64          `json:"media"`
}

func (h *SeriesHandler) Mean(c echo.Context) error {
	req := &models.MeanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind := models.Indicator(req.Tipo)

	var month time.Month
	if req.Mes != "" {
		m, ok := util.ParseMonth(req.Mes)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_MONTH", "mes", "mês inválido: "+req.Mes, http.StatusBadRequest))
		}
		month = m
	}

	mean, ok, err := h.uc.Mean(c.Request().Context(), ind, req.Ano, month)
	if err != nil {
		return h.fail(c, "mean", err)
	}
	period := features.PeriodLabel(req.Ano, month)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(fmt.Sprintf("Dados não encontrados para %s em %s", ind, period)))
	}
	return xhttp.SuccessResponse(c, meanResponse{Indicator: ind, Periodo: period, Media: mean})
}

func (h *SeriesHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func nonNil(s models.TimeSeries) models.TimeSeries {
	if s == nil {
		return models.TimeSeries{}
	}
	return s
}
