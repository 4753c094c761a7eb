package forecast

import (
	"context"
	"fmt"

	"EconCast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// LinearSpec is ordinary least squares with an intercept. Rank-deficient
// windows fall back to the minimum-norm solution.
type LinearSpec struct {
	RCond float64
}

func (s LinearSpec) Family() models.ModelFamily { return models.FamilyLinear }

type LinearState struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (l *LinearState) predict(x []float64) float64 {
	y := l.Intercept
	for i, c := range l.Coef {
		y += c * x[i]
	}
	return y
}

func (s LinearSpec) fit(_ context.Context, samples []WindowSample) (*TrainedModel, error) {
	if len(samples) == 0 {
		return nil, insufficient("linear fit", 0, 1)
	}
	rcond := s.RCond
	if rcond <= 0 {
		rcond = 1e-10
	}
	n, p := len(samples), len(samples[0].Features)

	xMean := make([]float64, p)
	var yMean float64
	for _, smp := range samples {
		for j, v := range smp.Features {
			xMean[j] += v
		}
		yMean += smp.Target
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, smp := range samples {
		for j, v := range smp.Features {
			x.Set(i, j, v-xMean[j])
		}
		y.SetVec(i, smp.Target-yMean)
	}

	coef := make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, trainingFailed("linear fit", fmt.Errorf("svd did not converge"))
	}
	if rank := svd.Rank(rcond); rank > 0 {
		dst := mat.NewVecDense(p, nil)
		svd.SolveVecTo(dst, y, rank)
		for j := range coef {
			coef[j] = dst.AtVec(j)
		}
	}

	intercept := yMean
	for j, c := range coef {
		intercept -= c * xMean[j]
	}
	return &TrainedModel{Family: models.FamilyLinear, Linear: &LinearState{Coef: coef, Intercept: intercept}}, nil
}
