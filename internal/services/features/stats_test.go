package features

import (
	"testing"
	"time"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daily(from time.Time, vals ...float64) models.TimeSeries {
	s := make(models.TimeSeries, len(vals))
	for i, v := range vals {
		s[i] = models.Point{Date: from.AddDate(0, 0, i), Value: v}
	}
	return s
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSummary(t *testing.T) {
	s := daily(jan1, 2, 4, 4, 4, 5, 5, 7, 9)
	sum := Summary(models.Selic, s)

	assert.Equal(t, models.Selic, sum.Indicator)
	assert.Equal(t, 8, sum.Count)
	assert.InDelta(t, 5.0, sum.Mean, 1e-12)
	assert.InDelta(t, 4.5, sum.Median, 1e-12)
	assert.Equal(t, 2.0, sum.Min)
	assert.Equal(t, 9.0, sum.Max)
	assert.InDelta(t, 2.138, sum.StdDev, 1e-3)
	assert.InDelta(t, 350.0, sum.PctChange, 1e-9)
	require.NotNil(t, sum.MovingAverage)
	assert.InDelta(t, 6.0, *sum.MovingAverage, 1e-12)
	assert.Equal(t, models.TrendUp, sum.Trend)
	require.NotNil(t, sum.Last)
	assert.Equal(t, 9.0, sum.Last.Value)
}

func TestSummaryShortSeries(t *testing.T) {
	empty := Summary(models.IPCA, nil)
	assert.Equal(t, 0, empty.Count)
	assert.Nil(t, empty.Last)
	assert.Equal(t, models.TrendStable, empty.Trend)

	one := Summary(models.IPCA, daily(jan1, 3))
	assert.Equal(t, 3.0, one.Median)
	assert.Equal(t, 0.0, one.StdDev)
	assert.Nil(t, one.MovingAverage)
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, models.TrendUp, TrendOf([]float64{1, 2, 3}, 5))
	assert.Equal(t, models.TrendDown, TrendOf([]float64{9, 1, 1, 0.9, 0.8, 0.7, 0.6}, 5))
	assert.Equal(t, models.TrendStable, TrendOf([]float64{5, 5.001, 5, 5.002, 5}, 5))
	assert.Equal(t, models.TrendStable, TrendOf([]float64{1}, 5))
}

func TestPctChanges(t *testing.T) {
	got := PctChanges(daily(jan1, 100, 110, 0, 5))
	require.Len(t, got, 3)
	assert.InDelta(t, 10.0, got[0], 1e-9)
	assert.InDelta(t, -100.0, got[1], 1e-9)
	assert.Equal(t, 0.0, got[2])
	assert.Nil(t, PctChanges(daily(jan1, 1)))
}

func TestFiltersAndMeans(t *testing.T) {
	s := models.TimeSeries{
		{Date: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Value: 2},
		{Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Value: 2},
		{Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), Value: 10},
	}

	assert.Len(t, FilterByYearMonth(s, 2024, time.March), 3)
	assert.Len(t, FilterByYearQuarter(s, 2024, 1), 3)
	assert.Len(t, FilterByYearQuarter(s, 2024, 3), 1)
	assert.Len(t, FilterByYearQuarter(s, 2024, 0), 4)
	assert.Empty(t, FilterByYearQuarter(s, 2022, 0))

	m, ok := MonthlyMean(s, 2024, time.March)
	require.True(t, ok)
	assert.Equal(t, 1.67, m)

	a, ok := AnnualMean(s, 2024)
	require.True(t, ok)
	assert.Equal(t, 3.75, a)

	_, ok = MonthlyMean(s, 2024, time.May)
	assert.False(t, ok)

	assert.Equal(t, "março/2024", PeriodLabel(2024, time.March))
	assert.Equal(t, "2024", PeriodLabel(2024, 0))
}

func TestAlignFromTo(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	from, to := AlignFromTo(time.Time{}, time.Time{}, now)
	assert.True(t, from.IsZero())
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), to)

	from, to = AlignFromTo(now, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), now)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), to)

	assert.Len(t, Tail(daily(jan1, 1, 2, 3), 2), 2)
	assert.Len(t, Tail(daily(jan1, 1, 2, 3), 0), 3)
}
