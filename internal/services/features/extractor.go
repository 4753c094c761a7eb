package features

import (
	"time"

	"EconCast/internal/domain/models"
)

// PctChanges computes day-over-day percentage changes (v_t / v_{t-1} - 1) * 100.
// A zero previous value yields 0 for that step. Returns nil for fewer than 2 points.
func PctChanges(s models.TimeSeries) []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		prev := s[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (s[i].Value/prev-1)*100)
	}
	return out
}

// AlignFromTo rounds a query range to calendar days. A zero to means today.
func AlignFromTo(from, to time.Time, now time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = now
	}
	if !from.IsZero() {
		from = models.Day(from)
	}
	to = models.Day(to)
	if !from.IsZero() && from.After(to) {
		from, to = to, from
	}
	return from, to
}

// Tail returns the last n points, or s when it is shorter.
func Tail(s models.TimeSeries, n int) models.TimeSeries {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
