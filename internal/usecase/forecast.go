package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
	"EconCast/internal/services/forecast"
	"EconCast/pkg/cache"
	applogger "EconCast/pkg/logger"
)

// ErrNoStoredData means an indicator has no observations in storage.
var ErrNoStoredData = errors.New("no stored observations")

// ForecastUseCase serves forecasts for caller-supplied or stored series and
// keeps trained models in a read-through cache.
type ForecastUseCase struct {
	engine  *forecast.Engine
	store   drepo.Storage
	models  drepo.ModelCache
	metrics drepo.Metrics
	l       *applogger.Logger
	history int
}

func NewForecastUseCase(
	engine *forecast.Engine,
	store drepo.Storage,
	modelCache drepo.ModelCache,
	metrics drepo.Metrics,
	l *applogger.Logger,
	history int,
) *ForecastUseCase {
	return &ForecastUseCase{
		engine:  engine,
		store:   store,
		models:  modelCache,
		metrics: metrics,
		l:       l.Component("forecast"),
		history: history,
	}
}

type PredictParams struct {
	Indicator models.Indicator
	// Records overrides the stored series when not empty.
	Records   []models.RawRecord
	Periods   int
	Window    int
	ModelType models.ModelFamily
	Strict    bool
}

// Predict forecasts p.Periods days past the end of the series.
func (uc *ForecastUseCase) Predict(ctx context.Context, p PredictParams) (*forecast.Outcome, error) {
	start := time.Now()

	series, err := uc.series(ctx, p.Indicator, p.Records)
	if err != nil {
		return nil, err
	}

	params, sel, err := uc.engine.Select(series, forecast.Params{
		Periods:   p.Periods,
		Window:    p.Window,
		ModelType: p.ModelType,
		Strict:    p.Strict,
	})
	if err != nil {
		return nil, err
	}

	m, err := uc.model(ctx, p.Indicator, series, sel.Family, params.Window)
	if err != nil {
		uc.metrics.RecordError("forecast_train")
		return nil, err
	}
	out, err := uc.engine.Complete(m, series, params, sel)
	if err != nil {
		uc.metrics.RecordError("forecast_project")
		return nil, err
	}

	uc.metrics.RecordForecast(string(p.Indicator), string(out.Family), out.Family != out.Requested)
	uc.metrics.RecordFit(string(p.Indicator), string(out.Family), out.Evaluation.RMSE)
	uc.metrics.RecordLatency("forecast", time.Since(start).Seconds())

	first, last := forecast.Horizon(out.Points)
	uc.l.Info("forecast served",
		applogger.String("indicator", string(p.Indicator)),
		applogger.String("family", string(out.Family)),
		applogger.String("requested", string(out.Requested)),
		applogger.Float64("volatility_ratio", out.VolatilityRatio),
		applogger.Float64("rmse", out.Evaluation.RMSE),
		applogger.Time("from", first),
		applogger.Time("to", last),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// WarmUp trains and caches the model a default request for ind would use.
func (uc *ForecastUseCase) WarmUp(ctx context.Context, ind models.Indicator, window int, family models.ModelFamily) error {
	series, err := uc.series(ctx, ind, nil)
	if err != nil {
		return err
	}
	params, sel, err := uc.engine.Select(series, forecast.Params{Periods: 1, Window: window, ModelType: family})
	if err != nil {
		return err
	}
	_, err = uc.model(ctx, ind, series, sel.Family, params.Window)
	return err
}

func (uc *ForecastUseCase) series(ctx context.Context, ind models.Indicator, records []models.RawRecord) (models.TimeSeries, error) {
	if len(records) > 0 {
		series, rep := forecast.Parse(records)
		if len(rep.Dropped) > 0 {
			uc.l.Debug("dropped unparseable records",
				applogger.String("indicator", string(ind)),
				applogger.Int("dropped", len(rep.Dropped)))
		}
		return series, nil
	}

	series, err := uc.store.Load(ctx, ind, time.Time{}, time.Time{}, uc.history)
	if err != nil {
		uc.metrics.RecordError("storage_load")
		return nil, fmt.Errorf("load %s: %w", ind, err)
	}
	if len(series) == 0 {
		return nil, ErrNoStoredData
	}
	return series, nil
}

// model returns a cached model or trains one. Only the holder of the write
// lock stores a freshly trained model; cache failures fall back to training.
func (uc *ForecastUseCase) model(ctx context.Context, ind models.Indicator, series models.TimeSeries, family models.ModelFamily, window int) (*forecast.TrainedModel, error) {
	key := ModelKey(ind, series, window, family)

	if b, ok, err := uc.models.Get(ctx, key); err != nil {
		uc.l.Warn("model cache get failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var m forecast.TrainedModel
		if err := json.Unmarshal(b, &m); err == nil && m.Family == family && m.Window == window {
			uc.metrics.RecordCache("hit")
			return &m, nil
		}
		uc.l.Warn("discarding undecodable cached model", applogger.String("key", key))
	}
	uc.metrics.RecordCache("miss")

	won, err := uc.models.Claim(ctx, key)
	if err != nil {
		uc.l.Warn("model cache claim failed", applogger.String("key", key), applogger.Error(err))
	}
	if won {
		defer func() {
			if err := uc.models.Release(ctx, key); err != nil {
				uc.l.Warn("model cache release failed", applogger.String("key", key), applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	m, err := uc.engine.Train(ctx, series, family, window)
	if err != nil {
		return nil, err
	}
	uc.metrics.RecordLatency("train", time.Since(start).Seconds())

	if won {
		b, err := json.Marshal(m)
		if err == nil {
			err = uc.models.Put(ctx, key, b)
		}
		if err != nil {
			uc.l.Warn("model cache put failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return m, nil
}

// ModelKey identifies a model by series content, window and family. Any new
// or revised observation changes the key.
func ModelKey(ind models.Indicator, series models.TimeSeries, window int, family models.ModelFamily) string {
	var b strings.Builder
	for _, p := range series {
		b.WriteString(p.Date.Format(models.DateLayout))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p.Value, 'g', -1, 64))
		b.WriteByte(';')
	}
	name := string(ind)
	if name == "" {
		name = "adhoc"
	}
	return cache.GenerateKeyWithParams("model", name, cache.HashKey(b.String()), window, family)
}
