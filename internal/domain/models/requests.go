package models

import "strings"

// Requests for the HTTP endpoints. Normalize runs after binding and before
// validation, so "SELIC" and " selic" pass the oneof checks.

type PredictRequest struct {
	Indicator      string      `param:"indicator" validate:"required,oneof=selic cambio ipca pib divida desemprego"`
	HistoricalData []RawRecord `json:"historical_data"`
	Periods        int         `json:"periods" default:"90" validate:"gte=1,lte=365"`
	WindowSize     int         `json:"window_size" default:"15" validate:"gte=2,lte=120"`
	ModelType      string      `json:"model_type" default:"sequence" validate:"oneof=sequence ensemble linear"`
	Strict         bool        `json:"strict"`
}

type AlertsQuery struct {
	Format string `query:"format" default:"messages" validate:"oneof=messages records"`
}

type AlertsRequest struct {
	Series map[string][]RawRecord `json:"series" validate:"required,min=1"`
}

type SeriesRequest struct {
	Indicator string `param:"indicator" validate:"required,oneof=selic cambio ipca pib divida desemprego"`
	From      string `query:"from"`
	To        string `query:"to"`
	Limit     int    `query:"limit" default:"5000" validate:"gte=1,lte=50000"`
}

type FilterRequest struct {
	Tipo string `param:"tipo" validate:"required,oneof=selic cambio ipca pib divida desemprego"`
	Ano  int    `query:"ano" validate:"required,gte=1900,lte=2100"`
	Mes  string `query:"mes" validate:"required"`
}

type MeanRequest struct {
	Tipo string `param:"tipo" validate:"required,oneof=selic cambio ipca pib divida desemprego"`
	Ano  int    `query:"ano" validate:"required,gte=1900,lte=2100"`
	Mes  string `query:"mes"`
}

type PIBFilterRequest struct {
	Ano       int `param:"ano" validate:"required,gte=1900,lte=2100"`
	Trimestre int `query:"trimestre" validate:"gte=0,lte=4"`
}

func (r *PredictRequest) Normalize() {
	r.Indicator = string(NormalizeIndicator(r.Indicator))
	r.ModelType = strings.ToLower(strings.TrimSpace(r.ModelType))
}

func (r *SeriesRequest) Normalize() { r.Indicator = string(NormalizeIndicator(r.Indicator)) }
func (r *FilterRequest) Normalize() { r.Tipo = string(NormalizeIndicator(r.Tipo)) }
func (r *MeanRequest) Normalize()   { r.Tipo = string(NormalizeIndicator(r.Tipo)) }
