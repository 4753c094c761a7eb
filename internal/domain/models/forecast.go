package models

import (
	"encoding/json"
	"time"
)

// ModelFamily selects the regressor used to forecast a series.
type ModelFamily string

const (
	FamilySequence ModelFamily = "sequence"
	FamilyEnsemble ModelFamily = "ensemble"
	FamilyLinear   ModelFamily = "linear"
)

// IsValid returns true if f is a known family.
func (f ModelFamily) IsValid() bool {
	switch f {
	case FamilySequence, FamilyEnsemble, FamilyLinear:
		return true
	default:
		return false
	}
}

// ForecastPoint is one projected value. IsForecast is always true.
type ForecastPoint struct {
	Date       time.Time
	Value      float64
	IsForecast bool
	Confidence float64
}

func (p ForecastPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date       string  `json:"data"`
		Value      float64 `json:"valor"`
		IsForecast bool    `json:"previsto"`
		Confidence float64 `json:"confiabilidade"`
	}{p.Date.Format(DateLayout), p.Value, p.IsForecast, p.Confidence})
}

// Evaluation holds one-step-ahead fit metrics over the training windows.
type Evaluation struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}
