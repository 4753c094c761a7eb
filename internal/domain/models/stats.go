package models

// Trend is the direction of the most recent observations.
type Trend string

const (
	TrendUp     Trend = "alta"
	TrendDown   Trend = "queda"
	TrendStable Trend = "estável"
)

// SeriesSummary aggregates descriptive statistics for a series.
type SeriesSummary struct {
	Indicator     Indicator `json:"indicator,omitempty"`
	Count         int       `json:"count"`
	Mean          float64   `json:"media"`
	Median        float64   `json:"mediana"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	StdDev        float64   `json:"desvio_padrao"`
	PctChange     float64   `json:"variacao_percentual"`
	MovingAverage *float64  `json:"media_movel,omitempty"`
	Trend         Trend     `json:"tendencia"`
	Last          *Point    `json:"ultimo,omitempty"`
}
