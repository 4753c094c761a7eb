package forecast

import (
	"math"

	"EconCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTrailingWindow      = 30
	DefaultVolatilityThreshold = 0.15
)

// VolatilityPolicy recommends a model family from recent noise.
type VolatilityPolicy struct {
	TrailingWindow int
	Threshold      float64
}

// DefaultVolatilityPolicy returns the trailing-30, ratio 0.15 policy.
func DefaultVolatilityPolicy() VolatilityPolicy {
	return VolatilityPolicy{TrailingWindow: DefaultTrailingWindow, Threshold: DefaultVolatilityThreshold}
}

// Volatility is the classifier output.
type Volatility struct {
	Ratio       float64
	Recommended models.ModelFamily
}

// Classify computes std(first differences) / mean(|values|) over the trailing window.
// A zero mean level is degenerate and yields ratio 0.
func (p VolatilityPolicy) Classify(values []float64) Volatility {
	r := VolatilityRatio(values, p.TrailingWindow)
	fam := models.FamilySequence
	if r > p.Threshold {
		fam = models.FamilyEnsemble
	}
	return Volatility{Ratio: r, Recommended: fam}
}

// VolatilityRatio is exported for statistics and alerting callers.
func VolatilityRatio(values []float64, trailing int) float64 {
	if trailing > 0 && len(values) > trailing {
		values = values[len(values)-trailing:]
	}
	if len(values) < 2 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
		if i > 0 {
			diffs[i-1] = v - values[i-1]
		}
	}
	level := stat.Mean(abs, nil)
	if level == 0 {
		return 0
	}
	return stat.PopStdDev(diffs, nil) / level
}
