package forecast

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"EconCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearExtrapolatesLine(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	m, err := Fit(LinearSpec{}, vals, 5)
	require.NoError(t, err)
	assert.Equal(t, models.FamilyLinear, m.Family)

	got, err := Predict(m, vals, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []float64{31, 32, 33} {
		assert.InDelta(t, want, got[i], 1e-6)
	}

	ev, err := Evaluate(m, vals)
	require.NoError(t, err)
	assert.InDelta(t, 0, ev.MAE, 1e-6)
	assert.InDelta(t, 1, ev.R2, 1e-6)
}

func TestForestFlatSeries(t *testing.T) {
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = 7.5
	}
	m, err := Fit(EnsembleSpec{Trees: 5, Seed: 1}, vals, 4)
	require.NoError(t, err)
	require.Len(t, m.Ensemble.Trees, 5)

	got, err := Predict(m, vals, 4)
	require.NoError(t, err)
	for _, v := range got {
		assert.InDelta(t, 7.5, v, 1e-12)
	}
}

func TestForestDeterministicAndSerializable(t *testing.T) {
	vals := rising(40)
	spec := EnsembleSpec{Trees: 10, Seed: 3}
	a, err := Fit(spec, vals, 8)
	require.NoError(t, err)
	b, err := Fit(spec, vals, 8)
	require.NoError(t, err)

	pa, err := Predict(a, vals, 5)
	require.NoError(t, err)
	pb, err := Predict(b, vals, 5)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var restored TrainedModel
	require.NoError(t, json.Unmarshal(raw, &restored))
	pr, err := Predict(&restored, vals, 5)
	require.NoError(t, err)
	assert.Equal(t, pa, pr)

	// targets never leave the training range
	for _, v := range pa {
		assert.GreaterOrEqual(t, v, vals[0]-1e-9)
		assert.LessOrEqual(t, v, vals[len(vals)-1]+1e-9)
	}
}

func TestForestMaxDepth(t *testing.T) {
	vals := rising(30)
	m, err := Fit(EnsembleSpec{Trees: 3, MaxDepth: 1, Seed: 1}, vals, 3)
	require.NoError(t, err)
	for _, tree := range m.Ensemble.Trees {
		assert.LessOrEqual(t, len(tree.Nodes), 3)
	}
}

func TestSequenceTrainsDeterministically(t *testing.T) {
	vals := make([]float64, 40)
	for i := range vals {
		vals[i] = 50 + 10*math.Sin(float64(i)/5)
	}
	spec := SequenceSpec{HiddenSize: 6, Layers: 2, Epochs: 4, BatchSize: 8, Seed: 11}

	a, err := Fit(spec, vals, 6)
	require.NoError(t, err)
	require.NotNil(t, a.Sequence)
	assert.Len(t, a.Sequence.Layers, 2)
	assert.Equal(t, 1, a.Sequence.Layers[0].In)
	assert.Equal(t, 6, a.Sequence.Layers[1].In)

	b, err := Fit(spec, vals, 6)
	require.NoError(t, err)

	pa, err := Predict(a, vals, 7)
	require.NoError(t, err)
	pb, err := Predict(b, vals, 7)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	for _, v := range pa {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestSequenceLearns(t *testing.T) {
	vals := make([]float64, 80)
	for i := range vals {
		vals[i] = 20 + 5*math.Sin(float64(i)/3)
	}
	samples, err := BuildWindows(FitMinMax(vals).TransformAll(vals), 8)
	require.NoError(t, err)

	lossOf := func(epochs int) float64 {
		m, err := SequenceSpec{HiddenSize: 8, Epochs: epochs, BatchSize: 16, LearningRate: 1e-2, Seed: 5}.fit(context.Background(), samples)
		require.NoError(t, err)
		tr := newTrace(m.Sequence, 8)
		var sum float64
		for _, s := range samples {
			d := m.Sequence.forward(s.Features, tr) - s.Target
			sum += d * d
		}
		return sum / float64(len(samples))
	}
	assert.Less(t, lossOf(60), lossOf(1))
}

func TestSequenceGradientMatchesFiniteDifference(t *testing.T) {
	spec := SequenceSpec{HiddenSize: 4, Layers: 2}.withDefaults()
	st := newSequenceState(spec.HiddenSize, spec.Layers, rand.New(rand.NewSource(9)))
	sample := WindowSample{Features: []float64{0.1, 0.5, 0.3, 0.8}, Target: 0.4}
	tr := newTrace(st, 4)

	grad := st.zeroLike()
	st.backward(sample, tr, grad, newBackBuffers(spec.HiddenSize, 4), 1)

	loss := func() float64 {
		d := st.forward(sample.Features, tr) - sample.Target
		return d * d
	}
	params, grads := st.tensors(), grad.tensors()
	const h = 1e-6
	for ti := range params {
		for _, k := range []int{0, len(params[ti]) - 1} {
			orig := params[ti][k]
			params[ti][k] = orig + h
			up := loss()
			params[ti][k] = orig - h
			down := loss()
			params[ti][k] = orig
			assert.InDelta(t, (up-down)/(2*h), grads[ti][k], 1e-5, "tensor %d index %d", ti, k)
		}
	}
}

func TestPredictErrors(t *testing.T) {
	m, err := Fit(LinearSpec{}, rising(20), 5)
	require.NoError(t, err)

	_, err = Predict(m, rising(3), 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Predict(m, rising(20), 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = Predict(&TrainedModel{Family: models.FamilySequence, Window: 2}, rising(5), 1)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = Fit(nil, rising(20), 5)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestFitContextStopsWhenCancelled(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = float64(i) + math.Sin(float64(i))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, spec := range []ModelSpec{DefaultSequenceSpec(), DefaultEnsembleSpec()} {
		_, err := FitContext(ctx, spec, vals, 5)
		require.Error(t, err, spec.Family())
		assert.ErrorIs(t, err, context.Canceled)
	}

	m, err := FitContext(ctx, LinearSpec{}, vals, 5)
	require.NoError(t, err)
	assert.Equal(t, models.FamilyLinear, m.Family)
}
