package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Point is a single dated observation.
type Point struct {
	Date  time.Time
	Value float64
}

type pointJSON struct {
	Date  string  `json:"data"`
	Value float64 `json:"valor"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Date: p.Date.Format(DateLayout), Value: p.Value})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return err
	}
	p.Date, p.Value = t, raw.Value
	return nil
}

// TimeSeries is ordered by strictly increasing date with no duplicates.
// Treat it as read-only; transformations return new series.
type TimeSeries []Point

// Values returns a copy of the observation values.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the most recent point. It panics on an empty series.
func (s TimeSeries) Last() Point { return s[len(s)-1] }

// Between returns the points with from <= date <= to. Zero bounds are open.
func (s TimeSeries) Between(from, to time.Time) TimeSeries {
	out := make(TimeSeries, 0, len(s))
	for _, p := range s {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RawValue keeps the textual form of a value that may arrive as a JSON number or string.
type RawValue string

func (v *RawValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*v = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*v = RawValue(str)
	default:
		*v = RawValue(s)
	}
	return nil
}

// RawRecord is an unparsed observation as received from callers or upstream CSV.
type RawRecord struct {
	Date  string   `json:"data"`
	Value RawValue `json:"valor"`
}

// Observation is a stored point tagged with its indicator.
type Observation struct {
	Indicator Indicator `json:"indicator"`
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
}

// ToObservations tags every point of s with ind.
func ToObservations(ind Indicator, s TimeSeries) []Observation {
	out := make([]Observation, len(s))
	for i, p := range s {
		out[i] = Observation{Indicator: ind, Date: p.Date, Value: p.Value}
	}
	return out
}

// ObservationMessage is the wire form of one observation on the observations topic.
type ObservationMessage struct {
	Indicator string  `json:"indicator"`
	Date      string  `json:"data"`
	Value     float64 `json:"valor"`
}

// NewObservationMessage renders o for the wire.
func NewObservationMessage(o Observation) ObservationMessage {
	return ObservationMessage{Indicator: string(o.Indicator), Date: o.Date.Format(DateLayout), Value: o.Value}
}
