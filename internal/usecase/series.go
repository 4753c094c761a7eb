package usecase

import (
	"context"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
	"EconCast/internal/services/features"
)

// SeriesUseCase reads stored series and derives statistics from them.
type SeriesUseCase struct {
	store   drepo.Storage
	metrics drepo.Metrics
}

func NewSeriesUseCase(store drepo.Storage, metrics drepo.Metrics) *SeriesUseCase {
	return &SeriesUseCase{store: store, metrics: metrics}
}

// Observations returns at most limit of the newest points within [from, to].
func (uc *SeriesUseCase) Observations(ctx context.Context, ind models.Indicator, from, to time.Time, limit int) (models.TimeSeries, error) {
	start := time.Now()
	s, err := uc.store.Load(ctx, ind, from, to, limit)
	if err != nil {
		uc.metrics.RecordError("storage_load")
		return nil, fmt.Errorf("load %s: %w", ind, err)
	}
	uc.metrics.RecordLatency("series_load", time.Since(start).Seconds())
	return s, nil
}

func (uc *SeriesUseCase) Summary(ctx context.Context, ind models.Indicator) (models.SeriesSummary, error) {
	s, err := uc.all(ctx, ind)
	if err != nil {
		return models.SeriesSummary{}, err
	}
	return features.Summary(ind, s), nil
}

// ByMonth returns the points of ind in a calendar month.
func (uc *SeriesUseCase) ByMonth(ctx context.Context, ind models.Indicator, year int, month time.Month) (models.TimeSeries, error) {
	s, err := uc.year(ctx, ind, year)
	if err != nil {
		return nil, err
	}
	return features.FilterByYearMonth(s, year, month), nil
}

// ByQuarter returns the points of ind in a year, narrowed to quarter when 1..4.
func (uc *SeriesUseCase) ByQuarter(ctx context.Context, ind models.Indicator, year, quarter int) (models.TimeSeries, error) {
	s, err := uc.year(ctx, ind, year)
	if err != nil {
		return nil, err
	}
	return features.FilterByYearQuarter(s, year, quarter), nil
}

// Mean averages a month when month is set, otherwise the whole year. ok is
// false when the period has no observations.
func (uc *SeriesUseCase) Mean(ctx context.Context, ind models.Indicator, year int, month time.Month) (mean float64, ok bool, err error) {
	s, err := uc.year(ctx, ind, year)
	if err != nil {
		return 0, false, err
	}
	if month != 0 {
		mean, ok = features.MonthlyMean(s, year, month)
	} else {
		mean, ok = features.AnnualMean(s, year)
	}
	return mean, ok, nil
}

func (uc *SeriesUseCase) all(ctx context.Context, ind models.Indicator) (models.TimeSeries, error) {
	return uc.Observations(ctx, ind, time.Time{}, time.Time{}, 0)
}

func (uc *SeriesUseCase) year(ctx context.Context, ind models.Indicator, year int) (models.TimeSeries, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return uc.Observations(ctx, ind, from, to, 0)
}
