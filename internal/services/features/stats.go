package features

import (
	"sort"
	"strconv"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/pkg/util"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	MovingAveragePeriod = 5
	TrendWindow         = 5
	trendSlope          = 0.01
)

// Summary computes descriptive statistics. An empty series yields a zero summary.
func Summary(ind models.Indicator, s models.TimeSeries) models.SeriesSummary {
	out := models.SeriesSummary{Indicator: ind, Count: len(s), Trend: models.TrendStable}
	if len(s) == 0 {
		return out
	}
	vals := s.Values()
	last := s.Last()
	out.Last = &last
	out.Mean = stat.Mean(vals, nil)
	out.Min, out.Max = vals[0], vals[0]
	for _, v := range vals[1:] {
		out.Min = min(out.Min, v)
		out.Max = max(out.Max, v)
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if n := len(sorted); n%2 == 1 {
		out.Median = sorted[n/2]
	} else {
		out.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	if len(vals) < 2 {
		return out
	}
	out.StdDev = stat.StdDev(vals, nil)
	if vals[0] != 0 {
		out.PctChange = (vals[len(vals)-1]/vals[0] - 1) * 100
	}
	if ma, ok := MovingAverage(vals, MovingAveragePeriod); ok {
		out.MovingAverage = &ma
	}
	out.Trend = TrendOf(vals, TrendWindow)
	return out
}

// MovingAverage returns the latest simple moving average over period values.
func MovingAverage(vals []float64, period int) (float64, bool) {
	if period < 1 || len(vals) < period {
		return 0, false
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	result := helper.ChanToSlice(sma.Compute(helper.SliceToChan(vals)))
	if len(result) == 0 {
		return 0, false
	}
	return result[len(result)-1], true
}

// TrendOf classifies the least-squares slope of the last window values.
func TrendOf(vals []float64, window int) models.Trend {
	if window > 0 && len(vals) > window {
		vals = vals[len(vals)-window:]
	}
	if len(vals) < 2 {
		return models.TrendStable
	}
	xs := make([]float64, len(vals))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, vals, nil, false)
	switch {
	case slope > trendSlope:
		return models.TrendUp
	case slope < -trendSlope:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

// FilterByYearMonth keeps the points of a calendar month.
func FilterByYearMonth(s models.TimeSeries, year int, month time.Month) models.TimeSeries {
	out := models.TimeSeries{}
	for _, p := range s {
		if p.Date.Year() == year && p.Date.Month() == month {
			out = append(out, p)
		}
	}
	return out
}

// FilterByYearQuarter keeps the points of a year and, when quarter is 1..4, of that quarter.
func FilterByYearQuarter(s models.TimeSeries, year, quarter int) models.TimeSeries {
	out := models.TimeSeries{}
	for _, p := range s {
		if p.Date.Year() != year {
			continue
		}
		if quarter >= 1 && quarter <= 4 && util.Quarter(p.Date) != quarter {
			continue
		}
		out = append(out, p)
	}
	return out
}

// MonthlyMean averages a calendar month, rounded to 2 places.
func MonthlyMean(s models.TimeSeries, year int, month time.Month) (float64, bool) {
	return roundedMean(FilterByYearMonth(s, year, month))
}

// AnnualMean averages a calendar year, rounded to 2 places.
func AnnualMean(s models.TimeSeries, year int) (float64, bool) {
	return roundedMean(FilterByYearQuarter(s, year, 0))
}

func roundedMean(s models.TimeSeries) (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	m, _ := decimal.NewFromFloat(stat.Mean(s.Values(), nil)).Round(2).Float64()
	return m, true
}

// PeriodLabel renders "março/2024" or "2024".
func PeriodLabel(year int, month time.Month) string {
	if month == 0 {
		return strconv.Itoa(year)
	}
	return util.MonthName(month) + "/" + strconv.Itoa(year)
}
