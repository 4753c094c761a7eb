package forecast

import "math"

const (
	AnchorTolerance = 0.05
	AnchorWeight    = 0.7
	ClampTrigger    = 0.10
	ClampStep       = 0.05
)

// Stabilizer post-processes raw autoregressive output. The first step is
// pulled towards the last observation when it jumps; later steps are
// clamped relative to the already stabilized previous step.
type Stabilizer struct {
	AnchorTolerance float64 `yaml:"anchor_tolerance"`
	AnchorWeight    float64 `yaml:"anchor_weight"`
	ClampTrigger    float64 `yaml:"clamp_trigger"`
	ClampStep       float64 `yaml:"clamp_step"`
}

func DefaultStabilizer() Stabilizer {
	return Stabilizer{
		AnchorTolerance: AnchorTolerance,
		AnchorWeight:    AnchorWeight,
		ClampTrigger:    ClampTrigger,
		ClampStep:       ClampStep,
	}
}

// Stabilize returns a new slice; raw is left untouched.
func (s Stabilizer) Stabilize(raw []float64, last float64) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)
	if len(out) == 0 {
		return out
	}

	if math.Abs(out[0]-last) > s.AnchorTolerance*math.Abs(last) {
		out[0] = s.AnchorWeight*last + (1-s.AnchorWeight)*out[0]
	}
	for i := 1; i < len(out); i++ {
		prev := out[i-1]
		delta := out[i] - prev
		if math.Abs(delta) > s.ClampTrigger*math.Abs(prev) {
			out[i] = prev + math.Copysign(s.ClampStep*math.Abs(prev), delta)
		}
	}
	return out
}
