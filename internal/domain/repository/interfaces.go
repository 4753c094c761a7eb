package repository

import (
	"context"
	"time"

	"EconCast/internal/domain/models"
)

// SeriesSource fetches observations from an upstream publisher.
// Zero from/to fetch the full history.
type SeriesSource interface {
	Fetch(ctx context.Context, ind models.Indicator, from, to time.Time) ([]models.RawRecord, error)
}

type Publisher interface {
	PublishObservations(ctx context.Context, obs []models.Observation) error
	PublishAlerts(ctx context.Context, alerts []models.Alert) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, obs []models.Observation) error
	// Load returns the series ordered by date, last write wins per date.
	Load(ctx context.Context, ind models.Indicator, from, to time.Time, limit int) (models.TimeSeries, error)
	LastDate(ctx context.Context, ind models.Indicator) (time.Time, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// ModelCache stores trained models. Correctness never depends on it.
type ModelCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Claim takes the single-writer lock for key.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Put(ctx context.Context, key string, model []byte) error
}

type Metrics interface {
	RecordMessageSent(backend, indicator string)
	RecordError(kind string)
	RecordLastValue(indicator string, value float64)
	RecordLatency(op string, seconds float64)
	RecordForecast(indicator, family string, overridden bool)
	RecordFit(indicator, family string, rmse float64)
	RecordAlerts(severity string, n int)
	RecordCache(result string)
}
