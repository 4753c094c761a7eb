package forecast

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + 0.1*float64(i)
	}
	return out
}

func seriesOf(vals []float64) models.TimeSeries {
	s := make(models.TimeSeries, len(vals))
	for i, v := range vals {
		s[i] = models.Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return s
}

func dailyRecords(t *testing.T, n int, f func(int) float64) []models.RawRecord {
	t.Helper()
	out := make([]models.RawRecord, n)
	for i := range out {
		b, err := json.Marshal(f(i))
		require.NoError(t, err)
		out[i] = models.RawRecord{Date: start.AddDate(0, 0, i).Format("02/01/2006"), Value: models.RawValue(b)}
	}
	return out
}

// small keeps the recurrent model cheap enough for unit tests.
func small() Config {
	cfg := DefaultConfig()
	cfg.Sequence = SequenceSpec{HiddenSize: 8, Layers: 1, Epochs: 3, BatchSize: 16, Seed: 7}
	cfg.Ensemble.Trees = 20
	return cfg
}

func TestForecastInsufficientData(t *testing.T) {
	vals := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16, 15, 17, 16, 18, 17, 25}
	_, err := NewEngine(small()).Forecast(seriesOf(vals), Params{Periods: 5, Window: 15})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	var fe *ForecastError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInsufficientData, fe.Kind)
}

func TestForecastEnsembleRisingSeries(t *testing.T) {
	series := seriesOf(rising(40))
	out, err := NewEngine(DefaultConfig()).Forecast(series, Params{Periods: 10, Window: 15, ModelType: models.FamilyEnsemble})
	require.NoError(t, err)

	require.Len(t, out.Points, 10)
	assert.Equal(t, models.FamilyEnsemble, out.Family)
	assert.Equal(t, 0.95, out.Points[0].Confidence)
	assert.Equal(t, 0.794, out.Points[9].Confidence)
	assert.Equal(t, start.AddDate(0, 0, 40), out.Points[0].Date)
	for _, p := range out.Points {
		assert.True(t, p.IsForecast)
	}
}

func TestForecastProperties(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 100 + 5*math.Sin(float64(i)/4) + 0.3*float64(i)
	}
	series := seriesOf(vals)
	eng := NewEngine(small())

	for _, fam := range []models.ModelFamily{models.FamilySequence, models.FamilyEnsemble, models.FamilyLinear} {
		t.Run(string(fam), func(t *testing.T) {
			out, err := eng.Forecast(series, Params{Periods: 30, Window: 10, ModelType: fam, Strict: true})
			require.NoError(t, err)
			require.Len(t, out.Points, 30)
			assert.Equal(t, fam, out.Family)

			last := series.Last()
			for i, p := range out.Points {
				assert.Equal(t, last.Date.AddDate(0, 0, i+1), p.Date)
				assert.Greater(t, p.Confidence, 0.0)
				assert.LessOrEqual(t, p.Confidence, MaxConfidence)
				if i == 0 {
					continue
				}
				prev := out.Points[i-1]
				assert.LessOrEqual(t, p.Confidence, prev.Confidence)
				assert.LessOrEqual(t, math.Abs(p.Value-prev.Value), ClampTrigger*math.Abs(prev.Value)+1e-9)
			}
		})
	}
}

func TestSelectVolatilityOverride(t *testing.T) {
	choppy := make([]float64, 40)
	for i := range choppy {
		choppy[i] = 10 + 10*float64(i%2)
	}
	eng := NewEngine(small())

	_, sel, err := eng.Select(seriesOf(choppy), Params{Window: 15})
	require.NoError(t, err)
	assert.Equal(t, models.FamilySequence, sel.Requested)
	assert.Equal(t, models.FamilyEnsemble, sel.Family)
	assert.Greater(t, sel.Ratio, DefaultVolatilityThreshold)

	_, sel, err = eng.Select(seriesOf(choppy), Params{Window: 15, Strict: true})
	require.NoError(t, err)
	assert.Equal(t, models.FamilySequence, sel.Family, "strict keeps the requested family")

	_, sel, err = eng.Select(seriesOf(choppy), Params{Window: 15, ModelType: models.FamilyLinear})
	require.NoError(t, err)
	assert.Equal(t, models.FamilyLinear, sel.Family)

	_, sel, err = eng.Select(seriesOf(rising(40)), Params{Window: 15})
	require.NoError(t, err)
	assert.Equal(t, models.FamilySequence, sel.Family)
}

func TestSelectDefaultsAndValidation(t *testing.T) {
	eng := NewEngine(small())
	p, _, err := eng.Select(seriesOf(rising(40)), Params{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriods, p.Periods)
	assert.Equal(t, DefaultWindow, p.Window)
	assert.Equal(t, models.FamilySequence, p.ModelType)

	cases := []Params{
		{Periods: -1},
		{Periods: MaxPeriods + 1},
		{Window: MaxWindow + 1},
		{ModelType: "arima"},
	}
	for _, c := range cases {
		_, _, err := eng.Select(seriesOf(rising(40)), c)
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", c)
	}
}

func TestStabilizerAnchor(t *testing.T) {
	st := DefaultStabilizer()

	out := st.Stabilize([]float64{20}, 10)
	assert.InDelta(t, 13.0, out[0], 1e-12)
	assert.LessOrEqual(t, math.Abs(out[0]-10), math.Max(0.05*10, math.Abs(0.3*(20-10))))

	out = st.Stabilize([]float64{10.4}, 10)
	assert.Equal(t, 10.4, out[0], "within tolerance is left alone")
}

func TestStabilizerClamp(t *testing.T) {
	raw := []float64{10, 15, 15.2, 15.3}
	out := DefaultStabilizer().Stabilize(raw, 10)

	assert.Equal(t, []float64{10, 15, 15.2, 15.3}, raw, "input is not mutated")
	assert.InDelta(t, 10.5, out[1], 1e-12)
	assert.InDelta(t, 11.025, out[2], 1e-12)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, math.Abs(out[i]-out[i-1]), 0.1*math.Abs(out[i-1])+1e-12)
	}

	down := DefaultStabilizer().Stabilize([]float64{10, 1}, 10)
	assert.InDelta(t, 9.5, down[1], 1e-12)

	assert.Empty(t, DefaultStabilizer().Stabilize(nil, 10))
}

func TestConfidenceAt(t *testing.T) {
	assert.Equal(t, 0.95, ConfidenceAt(0, FallbackDecay))
	assert.Equal(t, 0.794, ConfidenceAt(9, FallbackDecay))
	assert.Equal(t, 0.941, ConfidenceAt(1, SequenceDecay))
	assert.Equal(t, 0.001, ConfidenceAt(100000, FallbackDecay))

	d := DefaultDecay()
	assert.Equal(t, SequenceDecay, d.For(models.FamilySequence))
	assert.Equal(t, FallbackDecay, d.For(models.FamilyEnsemble))
	assert.Equal(t, FallbackDecay, d.For(models.FamilyLinear))
}
