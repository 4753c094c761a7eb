package models

import (
	"encoding/json"
	"time"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityVariation   Severity = "variation"
	SeverityExtremeHigh Severity = "extreme_high"
	SeverityExtremeLow  Severity = "extreme_low"
)

// Alert flags an abnormal observation in a named series.
type Alert struct {
	SeriesName string
	Date       time.Time
	Message    string
	Severity   Severity
}

func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SeriesName string   `json:"series_name"`
		Date       string   `json:"date"`
		Message    string   `json:"message"`
		Severity   Severity `json:"severity"`
	}{a.SeriesName, a.Date.Format(DateLayout), a.Message, a.Severity})
}

// Messages flattens alerts into their human readable form.
func Messages(alerts []Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Message
	}
	return out
}
