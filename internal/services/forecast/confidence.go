package forecast

import (
	"math"

	"github.com/shopspring/decimal"

	"EconCast/internal/domain/models"
)

const (
	MaxConfidence = 0.95
	minConfidence = 0.001

	SequenceDecay = 0.01
	FallbackDecay = 0.02
)

// Decay holds the per-family confidence decay rates.
type Decay struct {
	Sequence float64 `yaml:"sequence"`
	Fallback float64 `yaml:"fallback"`
}

func DefaultDecay() Decay {
	return Decay{Sequence: SequenceDecay, Fallback: FallbackDecay}
}

func (d Decay) For(f models.ModelFamily) float64 {
	if f == models.FamilySequence {
		return d.Sequence
	}
	return d.Fallback
}

// ConfidenceAt is 0.95·e^(−decay·step) rounded half-to-even to 3 places,
// floored at 0.001.
func ConfidenceAt(step int, decay float64) float64 {
	raw := MaxConfidence * math.Exp(-decay*float64(step))
	c, _ := decimal.NewFromFloat(raw).RoundBank(3).Float64()
	return max(c, minConfidence)
}
