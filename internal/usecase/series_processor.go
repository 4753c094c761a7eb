package usecase

import (
	"context"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// SeriesProcessor routes new observations to the configured backend.
type SeriesProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	batchSz int
}

// NewSeriesProcessor creates a new SeriesProcessor instance.
func NewSeriesProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
) *SeriesProcessor {
	if batchSz <= 0 {
		batchSz = 1000
	}
	return &SeriesProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
	}
}

func (p *SeriesProcessor) Backend() string { return p.backend }

// Process writes obs in batches of batchSz.
func (p *SeriesProcessor) Process(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	start := time.Now()
	for lo := 0; lo < len(obs); lo += p.batchSz {
		hi := lo + p.batchSz
		if hi > len(obs) {
			hi = len(obs)
		}
		if err := p.route(ctx, obs[lo:hi]); err != nil {
			p.metrics.RecordError("process_batch")
			return fmt.Errorf("process batch: %w", err)
		}
	}

	for _, o := range obs {
		p.metrics.RecordMessageSent(p.backend, string(o.Indicator))
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *SeriesProcessor) route(ctx context.Context, obs []models.Observation) error {
	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		return p.pub.PublishObservations(ctx, obs)
	case BackendClickHouse:
		return p.store.StoreBatch(ctx, obs)
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
}

// Close closes the publisher if any. The store is owned by the caller.
func (p *SeriesProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
