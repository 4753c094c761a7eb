package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"EconCast/internal/domain/models"
)

// SequenceSpec configures the recurrent (LSTM) regressor.
type SequenceSpec struct {
	HiddenSize   int
	Layers       int
	Epochs       int
	BatchSize    int
	LearningRate float64
	WeightDecay  float64
	Seed         int64
}

// DefaultSequenceSpec mirrors the production settings: 32 hidden units, one
// layer, 30 epochs of batch 128, Adam at 1e-3 with 1e-5 weight decay.
func DefaultSequenceSpec() SequenceSpec {
	return SequenceSpec{
		HiddenSize:   32,
		Layers:       1,
		Epochs:       30,
		BatchSize:    128,
		LearningRate: 1e-3,
		WeightDecay:  1e-5,
		Seed:         42,
	}
}

func (s SequenceSpec) Family() models.ModelFamily { return models.FamilySequence }

func (s SequenceSpec) withDefaults() SequenceSpec {
	d := DefaultSequenceSpec()
	if s.HiddenSize < 2 {
		s.HiddenSize = d.HiddenSize
	}
	if s.Layers < 1 {
		s.Layers = d.Layers
	}
	if s.Epochs < 1 {
		s.Epochs = d.Epochs
	}
	if s.BatchSize < 1 {
		s.BatchSize = d.BatchSize
	}
	if s.LearningRate <= 0 {
		s.LearningRate = d.LearningRate
	}
	if s.WeightDecay < 0 {
		s.WeightDecay = 0
	}
	return s
}

// LSTMLayer holds one recurrent layer. Gate rows are ordered input, forget,
// cell, output; W is 4H x In, U is 4H x H, both row-major.
type LSTMLayer struct {
	In int       `json:"in"`
	W  []float64 `json:"w"`
	U  []float64 `json:"u"`
	B  []float64 `json:"b"`
}

// SequenceState is the trained LSTM followed by a two-layer dense head
// (H -> H/2 with ReLU -> 1).
type SequenceState struct {
	Hidden int         `json:"hidden"`
	Layers []LSTMLayer `json:"layers"`
	W1     []float64   `json:"w1"`
	B1     []float64   `json:"b1"`
	W2     []float64   `json:"w2"`
	B2     []float64   `json:"b2"`
}

func newSequenceState(hidden, layers int, rng *rand.Rand) *SequenceState {
	st := &SequenceState{Hidden: hidden}
	k := 1 / math.Sqrt(float64(hidden))
	for l := 0; l < layers; l++ {
		in := 1
		if l > 0 {
			in = hidden
		}
		st.Layers = append(st.Layers, LSTMLayer{
			In: in,
			W:  uniform(rng, 4*hidden*in, k),
			U:  uniform(rng, 4*hidden*hidden, k),
			B:  uniform(rng, 4*hidden, k),
		})
	}
	half := hidden / 2
	st.W1 = uniform(rng, half*hidden, k)
	st.B1 = uniform(rng, half, k)
	k2 := 1 / math.Sqrt(float64(half))
	st.W2 = uniform(rng, half, k2)
	st.B2 = uniform(rng, 1, k2)
	return st
}

func uniform(rng *rand.Rand, n int, k float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * k
	}
	return out
}

// zeroLike returns a state of the same shape filled with zeros, used for gradients.
func (st *SequenceState) zeroLike() *SequenceState {
	z := &SequenceState{Hidden: st.Hidden}
	for _, l := range st.Layers {
		z.Layers = append(z.Layers, LSTMLayer{
			In: l.In,
			W:  make([]float64, len(l.W)),
			U:  make([]float64, len(l.U)),
			B:  make([]float64, len(l.B)),
		})
	}
	z.W1 = make([]float64, len(st.W1))
	z.B1 = make([]float64, len(st.B1))
	z.W2 = make([]float64, len(st.W2))
	z.B2 = make([]float64, len(st.B2))
	return z
}

// tensors lists every parameter slice in a fixed order.
func (st *SequenceState) tensors() [][]float64 {
	out := make([][]float64, 0, 3*len(st.Layers)+4)
	for i := range st.Layers {
		l := &st.Layers[i]
		out = append(out, l.W, l.U, l.B)
	}
	return append(out, st.W1, st.B1, st.W2, st.B2)
}

func (st *SequenceState) reset() {
	for _, t := range st.tensors() {
		clear(t)
	}
}

// trace keeps per-step activations of one forward pass for backpropagation.
// h[l][t] and c[l][t] are the states before step t; index T is the final state.
type trace struct {
	x     [][]float64
	h     [][][]float64
	c     [][][]float64
	gates [][][]float64
	pre1  []float64
	act1  []float64
}

func newTrace(st *SequenceState, steps int) *trace {
	H := st.Hidden
	tr := &trace{
		x:     make([][]float64, steps),
		h:     make([][][]float64, len(st.Layers)),
		c:     make([][][]float64, len(st.Layers)),
		gates: make([][][]float64, len(st.Layers)),
		pre1:  make([]float64, len(st.B1)),
		act1:  make([]float64, len(st.B1)),
	}
	for t := range tr.x {
		tr.x[t] = make([]float64, 1)
	}
	for l := range st.Layers {
		tr.h[l] = matrix(steps+1, H)
		tr.c[l] = matrix(steps+1, H)
		tr.gates[l] = matrix(steps, 4*H)
	}
	return tr
}

func matrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func (tr *trace) input(l, t int) []float64 {
	if l == 0 {
		return tr.x[t]
	}
	return tr.h[l-1][t+1]
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// forward runs the network over seq and returns the scalar output.
func (st *SequenceState) forward(seq []float64, tr *trace) float64 {
	H := st.Hidden
	T := len(seq)
	for t, v := range seq {
		tr.x[t][0] = v
	}
	for l := range st.Layers {
		layer := &st.Layers[l]
		clear(tr.h[l][0])
		clear(tr.c[l][0])
		for t := 0; t < T; t++ {
			x := tr.input(l, t)
			hPrev, cPrev := tr.h[l][t], tr.c[l][t]
			g := tr.gates[l][t]
			for r := 0; r < 4*H; r++ {
				z := layer.B[r]
				w := layer.W[r*layer.In : (r+1)*layer.In]
				for k, xv := range x {
					z += w[k] * xv
				}
				u := layer.U[r*H : (r+1)*H]
				for k, hv := range hPrev {
					z += u[k] * hv
				}
				if r >= 2*H && r < 3*H {
					g[r] = math.Tanh(z)
				} else {
					g[r] = sigmoid(z)
				}
			}
			h, c := tr.h[l][t+1], tr.c[l][t+1]
			for j := 0; j < H; j++ {
				c[j] = g[H+j]*cPrev[j] + g[j]*g[2*H+j]
				h[j] = g[3*H+j] * math.Tanh(c[j])
			}
		}
	}

	top := tr.h[len(st.Layers)-1][T]
	y := st.B2[0]
	for k := range st.B1 {
		z := st.B1[k]
		w := st.W1[k*H : (k+1)*H]
		for j, hv := range top {
			z += w[j] * hv
		}
		tr.pre1[k] = z
		tr.act1[k] = max(z, 0)
		y += st.W2[k] * tr.act1[k]
	}
	return y
}

// backward accumulates scale * dLoss/dParam into grad for one sample and
// returns the squared error.
func (st *SequenceState) backward(s WindowSample, tr *trace, grad *SequenceState, buf *backBuffers, scale float64) float64 {
	H := st.Hidden
	T := len(s.Features)
	y := st.forward(s.Features, tr)
	diff := y - s.Target
	dy := 2 * diff * scale

	L := len(st.Layers)
	top := tr.h[L-1][T]
	for t := range buf.dhAbove {
		clear(buf.dhAbove[t])
	}
	dTop := buf.dhAbove[T-1]

	grad.B2[0] += dy
	for k := range st.B1 {
		grad.W2[k] += dy * tr.act1[k]
		if tr.pre1[k] <= 0 {
			continue
		}
		da := dy * st.W2[k]
		grad.B1[k] += da
		w := st.W1[k*H : (k+1)*H]
		gw := grad.W1[k*H : (k+1)*H]
		for j, hv := range top {
			gw[j] += da * hv
			dTop[j] += da * w[j]
		}
	}

	for l := L - 1; l >= 0; l-- {
		layer := &st.Layers[l]
		gl := &grad.Layers[l]
		clear(buf.dhNext)
		clear(buf.dcNext)
		if l > 0 {
			for t := range buf.dhBelow {
				clear(buf.dhBelow[t])
			}
		}
		for t := T - 1; t >= 0; t-- {
			g := tr.gates[l][t]
			c, cPrev := tr.c[l][t+1], tr.c[l][t]
			for j := 0; j < H; j++ {
				dh := buf.dhAbove[t][j] + buf.dhNext[j]
				i, f, gg, o := g[j], g[H+j], g[2*H+j], g[3*H+j]
				tc := math.Tanh(c[j])
				dc := buf.dcNext[j] + dh*o*(1-tc*tc)
				buf.dz[j] = dc * gg * i * (1 - i)
				buf.dz[H+j] = dc * cPrev[j] * f * (1 - f)
				buf.dz[2*H+j] = dc * i * (1 - gg*gg)
				buf.dz[3*H+j] = dh * tc * o * (1 - o)
				buf.dcNext[j] = dc * f
			}

			x := tr.input(l, t)
			hPrev := tr.h[l][t]
			clear(buf.dhNext)
			var dx []float64
			if l > 0 {
				dx = buf.dhBelow[t]
			}
			for r, dz := range buf.dz {
				if dz == 0 {
					continue
				}
				gl.B[r] += dz
				w := layer.W[r*layer.In : (r+1)*layer.In]
				gw := gl.W[r*layer.In : (r+1)*layer.In]
				for k, xv := range x {
					gw[k] += dz * xv
					if dx != nil {
						dx[k] += dz * w[k]
					}
				}
				u := layer.U[r*H : (r+1)*H]
				gu := gl.U[r*H : (r+1)*H]
				for k, hv := range hPrev {
					gu[k] += dz * hv
					buf.dhNext[k] += dz * u[k]
				}
			}
		}
		if l > 0 {
			buf.dhAbove, buf.dhBelow = buf.dhBelow, buf.dhAbove
		}
	}
	return diff * diff
}

type backBuffers struct {
	dhAbove [][]float64
	dhBelow [][]float64
	dhNext  []float64
	dcNext  []float64
	dz      []float64
}

func newBackBuffers(hidden, steps int) *backBuffers {
	return &backBuffers{
		dhAbove: matrix(steps, hidden),
		dhBelow: matrix(steps, hidden),
		dhNext:  make([]float64, hidden),
		dcNext:  make([]float64, hidden),
		dz:      make([]float64, 4*hidden),
	}
}

// adam implements Adam with L2 weight decay folded into the gradient.
type adam struct {
	lr, decay    float64
	beta1, beta2 float64
	eps          float64
	step         int
	m, v         [][]float64
}

func newAdam(params [][]float64, lr, decay float64) *adam {
	a := &adam{lr: lr, decay: decay, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) update(params, grads [][]float64) {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for k := range p {
			gk := g[k] + a.decay*p[k]
			m[k] = a.beta1*m[k] + (1-a.beta1)*gk
			v[k] = a.beta2*v[k] + (1-a.beta2)*gk*gk
			p[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}
}

var errDiverged = errors.New("loss is not finite")

func (s SequenceSpec) fit(ctx context.Context, samples []WindowSample) (*TrainedModel, error) {
	s = s.withDefaults()
	if len(samples) == 0 {
		return nil, insufficient("sequence fit", 0, 1)
	}
	steps := len(samples[0].Features)
	rng := rand.New(rand.NewSource(s.Seed))
	st := newSequenceState(s.HiddenSize, s.Layers, rng)
	grad := st.zeroLike()
	opt := newAdam(st.tensors(), s.LearningRate, s.WeightDecay)
	tr := newTrace(st, steps)
	buf := newBackBuffers(s.HiddenSize, steps)

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < s.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sequence fit stopped at epoch %d: %w", epoch, err)
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var loss float64
		for start := 0; start < len(order); start += s.BatchSize {
			end := min(start+s.BatchSize, len(order))
			grad.reset()
			scale := 1 / float64(end-start)
			for _, idx := range order[start:end] {
				loss += st.backward(samples[idx], tr, grad, buf, scale)
			}
			opt.update(st.tensors(), grad.tensors())
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, trainingFailed("sequence fit", errDiverged)
		}
	}
	return &TrainedModel{Family: models.FamilySequence, Sequence: st}, nil
}

func (st *SequenceState) predictor(steps int) func([]float64) float64 {
	tr := newTrace(st, steps)
	return func(window []float64) float64 { return st.forward(window, tr) }
}
