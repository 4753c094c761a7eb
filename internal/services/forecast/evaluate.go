package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"EconCast/internal/domain/models"
)

// Evaluate scores one-step-ahead predictions over the windows of values,
// in original units.
func Evaluate(m *TrainedModel, values []float64) (models.Evaluation, error) {
	if m == nil {
		return models.Evaluation{}, invalidParams("evaluate", "nil model")
	}
	if len(values) <= m.Window {
		return models.Evaluation{}, insufficient("evaluate", len(values), m.Window+1)
	}
	next, err := m.regressor()
	if err != nil {
		return models.Evaluation{}, err
	}

	scaled := m.Scaler.TransformAll(values)
	n := len(values) - m.Window
	estimates := make([]float64, n)
	actual := values[m.Window:]
	var absSum, sqSum float64
	for i := 0; i < n; i++ {
		estimates[i] = m.Scaler.Inverse(next(scaled[i : i+m.Window]))
		d := estimates[i] - actual[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}

	ev := models.Evaluation{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
	}
	if stat.Variance(actual, nil) > 0 {
		ev.R2 = stat.RSquaredFrom(estimates, actual, nil)
	}
	return ev, nil
}
