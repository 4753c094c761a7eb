package forecast

import (
	"errors"
	"testing"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"13.75", 13.75},
		{"13,75", 13.75},
		{" 5,1 ", 5.1},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"-0,5", -0.5},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseValue(c.in)
			require.NoError(t, err)
			assert.InDelta(t, c.want, got, 1e-9)
		})
	}

	for _, bad := range []string{"", "abc", "1,2,3x"} {
		_, err := ParseValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSortsDedupesAndDrops(t *testing.T) {
	recs := []models.RawRecord{
		{Date: "03/01/2024", Value: "3"},
		{Date: "01/01/2024", Value: "1"},
		{Date: "not a date", Value: "9"},
		{Date: "02/01/2024", Value: "x"},
		{Date: "2024-01-03", Value: "33"},
		{Date: "02/01/2024", Value: "2,5"},
	}
	s, rep := Parse(recs)

	require.Len(t, s, 3)
	assert.Equal(t, []float64{1, 2.5, 33}, s.Values())
	assert.Equal(t, 3, rep.Accepted)
	assert.Equal(t, 1, rep.Duplicates)
	require.Len(t, rep.Dropped, 2)
	assert.Equal(t, "data", rep.Dropped[0].Field)
	assert.Equal(t, "valor", rep.Dropped[1].Field)
	for i := 1; i < len(s); i++ {
		assert.True(t, s[i].Date.After(s[i-1].Date))
	}
}

func TestPrepareMinimumLength(t *testing.T) {
	recs := dailyRecords(t, 12, func(i int) float64 { return float64(i) })

	_, _, err := Prepare(recs, 5)
	require.NoError(t, err, "12 points satisfy max(10, 2*5)")

	_, _, err = Prepare(recs, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, _, err = Prepare(recs[:9], 2)
	assert.ErrorIs(t, err, ErrInsufficientData, "floor of 10 points applies to small windows")
}

func TestMinPoints(t *testing.T) {
	assert.Equal(t, 10, MinPoints(1))
	assert.Equal(t, 10, MinPoints(5))
	assert.Equal(t, 30, MinPoints(15))
}

func TestBuildWindows(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	ws, err := BuildWindows(vals, 2)
	require.NoError(t, err)
	require.Len(t, ws, 3)
	assert.Equal(t, []float64{1, 2}, ws[0].Features)
	assert.Equal(t, 3.0, ws[0].Target)
	assert.Equal(t, []float64{3, 4}, ws[2].Features)
	assert.Equal(t, 5.0, ws[2].Target)

	_, err = BuildWindows(vals, 5)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = BuildWindows(vals, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestMinMaxScaler(t *testing.T) {
	s := FitMinMax([]float64{2, 4, 6})
	assert.Equal(t, 0.0, s.Transform(2))
	assert.Equal(t, 1.0, s.Transform(6))
	assert.InDelta(t, 5.0, s.Inverse(s.Transform(5)), 1e-12)

	flat := FitMinMax([]float64{3, 3, 3})
	assert.Equal(t, 1.0, flat.Scale)
	assert.Equal(t, 0.0, flat.Transform(3))
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, VolatilityRatio([]float64{1}, 30))
	assert.Equal(t, 0.0, VolatilityRatio([]float64{0, 0, 0}, 30), "zero level is degenerate")
	assert.Equal(t, 0.0, VolatilityRatio([]float64{5, 5, 5, 5}, 30))

	choppy := make([]float64, 40)
	for i := range choppy {
		choppy[i] = 10
		if i%2 == 1 {
			choppy[i] = 20
		}
	}
	v := DefaultVolatilityPolicy().Classify(choppy)
	assert.InDelta(t, 10.0/15.0, v.Ratio, 1e-2)
	assert.Equal(t, models.FamilyEnsemble, v.Recommended)

	smooth := DefaultVolatilityPolicy().Classify(rising(40))
	assert.Less(t, smooth.Ratio, DefaultVolatilityThreshold)
	assert.Equal(t, models.FamilySequence, smooth.Recommended)
}
