package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
	"EconCast/internal/services/forecast"
	applogger "EconCast/pkg/logger"
)

// SeriesCollector polls the upstream source and forwards new observations
// to the processor.
type SeriesCollector struct {
	source     drepo.SeriesSource
	store      drepo.Storage
	proc       *SeriesProcessor
	warmup     *ModelWarmup
	metrics    drepo.Metrics
	l          *applogger.Logger
	indicators []models.Indicator
	interval   time.Duration
	start      time.Time
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSeriesCollector creates a new SeriesCollector instance. A zero start
// loads the full history of empty indicators.
func NewSeriesCollector(
	source drepo.SeriesSource,
	store drepo.Storage,
	proc *SeriesProcessor,
	warmup *ModelWarmup,
	metrics drepo.Metrics,
	l *applogger.Logger,
	indicators []models.Indicator,
	interval time.Duration,
	start time.Time,
) *SeriesCollector {
	if len(indicators) == 0 {
		indicators = models.Indicators
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &SeriesCollector{
		source:     source,
		store:      store,
		proc:       proc,
		warmup:     warmup,
		metrics:    metrics,
		l:          l.Component("collector"),
		indicators: indicators,
		interval:   interval,
		start:      start,
		now:        time.Now,
	}
}

// Start runs one collection immediately and then every interval until Stop.
func (c *SeriesCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.loop(ctx)
	return nil
}

func (c *SeriesCollector) loop(ctx context.Context) {
	defer c.wg.Done()

	c.CollectAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectAll(ctx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight collection to return.
func (c *SeriesCollector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CollectAll updates every indicator. Failures are logged per indicator and
// do not stop the others.
func (c *SeriesCollector) CollectAll(ctx context.Context) {
	for _, ind := range c.indicators {
		if ctx.Err() != nil {
			return
		}
		n, err := c.Collect(ctx, ind)
		if err != nil {
			c.metrics.RecordError("collect")
			c.l.Error("collect failed",
				applogger.String("indicator", string(ind)),
				applogger.Error(err))
			continue
		}
		c.l.Info("collect done",
			applogger.String("indicator", string(ind)),
			applogger.Int("new", n))
	}
}

// Collect fetches observations of ind newer than the last stored date and
// returns how many were forwarded.
func (c *SeriesCollector) Collect(ctx context.Context, ind models.Indicator) (int, error) {
	last, err := c.store.LastDate(ctx, ind)
	if err != nil {
		return 0, fmt.Errorf("last date: %w", err)
	}

	from := c.start
	if !last.IsZero() {
		from = last.AddDate(0, 0, 1)
	}
	today := models.Day(c.now())
	if !from.IsZero() && from.After(today) {
		return 0, nil
	}

	start := time.Now()
	recs, err := c.source.Fetch(ctx, ind, from, today)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	c.metrics.RecordLatency("fetch", time.Since(start).Seconds())

	series, rep := forecast.Parse(recs)
	if len(rep.Dropped) > 0 {
		c.l.Warn("dropped unparseable rows",
			applogger.String("indicator", string(ind)),
			applogger.Int("dropped", len(rep.Dropped)))
	}
	if !last.IsZero() {
		// upstream may repeat the boundary day
		series = series.Between(last.AddDate(0, 0, 1), time.Time{})
	}
	if len(series) == 0 {
		return 0, nil
	}

	if err := c.proc.Process(ctx, models.ToObservations(ind, series)); err != nil {
		return 0, err
	}
	c.metrics.RecordLastValue(string(ind), series.Last().Value)

	// in kafka mode the observations consumer schedules warm-up once stored
	if c.proc.Backend() == BackendClickHouse {
		if err := c.warmup.Schedule(ctx, ind); err != nil {
			c.l.Warn("warmup not scheduled", applogger.Error(err))
		}
	}
	return len(series), nil
}
