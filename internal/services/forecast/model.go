package forecast

import (
	"context"
	"fmt"
	"math"

	"EconCast/internal/domain/models"
)

// ModelSpec selects and configures a model family. The set of
// implementations is closed: SequenceSpec, EnsembleSpec and LinearSpec.
type ModelSpec interface {
	Family() models.ModelFamily
	fit(ctx context.Context, samples []WindowSample) (*TrainedModel, error)
}

var (
	_ ModelSpec = SequenceSpec{}
	_ ModelSpec = EnsembleSpec{}
	_ ModelSpec = LinearSpec{}
)

// TrainedModel is the immutable result of Fit. Exactly one of the family
// states is set.
type TrainedModel struct {
	Family   models.ModelFamily `json:"family"`
	Window   int                `json:"window"`
	Scaler   MinMaxScaler       `json:"scaler"`
	Sequence *SequenceState     `json:"sequence,omitempty"`
	Ensemble *ForestState       `json:"ensemble,omitempty"`
	Linear   *LinearState       `json:"linear,omitempty"`
}

// Fit scales values onto [0,1], windows them and trains spec's regressor.
func Fit(spec ModelSpec, values []float64, window int) (*TrainedModel, error) {
	return FitContext(context.Background(), spec, values, window)
}

// FitContext is Fit that gives up once ctx is done. Iterative families check
// ctx between epochs or trees.
func FitContext(ctx context.Context, spec ModelSpec, values []float64, window int) (*TrainedModel, error) {
	if spec == nil {
		return nil, invalidParams("fit", "nil model spec")
	}
	scaler := FitMinMax(values)
	samples, err := BuildWindows(scaler.TransformAll(values), window)
	if err != nil {
		return nil, err
	}
	m, err := spec.fit(ctx, samples)
	if err != nil {
		return nil, err
	}
	m.Window = window
	m.Scaler = scaler
	return m, nil
}

func (m *TrainedModel) regressor() (func([]float64) float64, error) {
	switch m.Family {
	case models.FamilySequence:
		if m.Sequence != nil {
			return m.Sequence.predictor(m.Window), nil
		}
	case models.FamilyEnsemble:
		if m.Ensemble != nil {
			return m.Ensemble.predict, nil
		}
	case models.FamilyLinear:
		if m.Linear != nil {
			return m.Linear.predict, nil
		}
	}
	return nil, invalidParams("predict", "model has no state for family %q", m.Family)
}

// Predict forecasts steps values past lastWindow, feeding each prediction
// back into the window. lastWindow is in original units and must hold at
// least Window values; only the trailing Window are used.
func Predict(m *TrainedModel, lastWindow []float64, steps int) ([]float64, error) {
	if m == nil {
		return nil, invalidParams("predict", "nil model")
	}
	if steps < 1 {
		return nil, invalidParams("predict", "steps %d", steps)
	}
	if len(lastWindow) < m.Window {
		return nil, insufficient("predict", len(lastWindow), m.Window)
	}
	next, err := m.regressor()
	if err != nil {
		return nil, err
	}

	window := m.Scaler.TransformAll(lastWindow[len(lastWindow)-m.Window:])
	out := make([]float64, 0, steps)
	for step := 0; step < steps; step++ {
		y := next(window)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, trainingFailed("predict", fmt.Errorf("non-finite prediction at step %d", step))
		}
		copy(window, window[1:])
		window[len(window)-1] = y
		out = append(out, m.Scaler.Inverse(y))
	}
	return out, nil
}
