package api

import (
	"errors"
	"net/http"

	"EconCast/internal/services/forecast"
	"EconCast/internal/usecase"
	xhttp "EconCast/pkg/http"
)

// toAppError maps use case errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fe *forecast.ForecastError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case forecast.KindInsufficientData:
			return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "historical_data", fe.Error(), http.StatusBadRequest).WithError(err)
		case forecast.KindInvalidParams:
			return xhttp.BadRequestError(fe.Error()).WithError(err)
		default:
			return xhttp.InternalErrorf("Erro ao gerar previsão: %v", fe.Err).WithError(err)
		}
	}

	if errors.Is(err, usecase.ErrNoStoredData) {
		return xhttp.NotFoundError("Dados não encontrados").WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
