package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EconCast/internal/domain/models"
	drepo "EconCast/internal/domain/repository"
	"EconCast/internal/services/alerts"
	"EconCast/internal/services/forecast"
	applogger "EconCast/pkg/logger"
)

// AlertsUseCase runs the alert engine over stored or caller-supplied series.
type AlertsUseCase struct {
	engine  *alerts.Engine
	store   drepo.Storage
	pub     drepo.Publisher
	metrics drepo.Metrics
	l       *applogger.Logger
	series  []models.Indicator
	publish bool
	timeout time.Duration
}

// NewAlertsUseCase creates the use case. pub may be nil, which disables publishing.
func NewAlertsUseCase(
	engine *alerts.Engine,
	store drepo.Storage,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
	series []models.Indicator,
	publish bool,
) *AlertsUseCase {
	if len(series) == 0 {
		series = []models.Indicator{models.Selic, models.Cambio, models.IPCA}
	}
	return &AlertsUseCase{
		engine:  engine,
		store:   store,
		pub:     pub,
		metrics: metrics,
		l:       l.Component("alerts"),
		series:  series,
		publish: publish && pub != nil,
		timeout: 10 * time.Second,
	}
}

// Stored scans the configured indicators as currently stored.
func (uc *AlertsUseCase) Stored(ctx context.Context) ([]models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		ind    models.Indicator
		series models.TimeSeries
		err    error
	}
	ch := make(chan item, len(uc.series))
	var wg sync.WaitGroup
	for _, ind := range uc.series {
		wg.Add(1)
		go func(ind models.Indicator) {
			defer wg.Done()
			s, err := uc.store.Load(ctx, ind, time.Time{}, time.Time{}, 0)
			ch <- item{ind, s, err}
		}(ind)
	}
	wg.Wait()
	close(ch)

	named := make(map[string]models.TimeSeries, len(uc.series))
	for it := range ch {
		if it.err != nil {
			uc.metrics.RecordError("storage_load")
			return nil, fmt.Errorf("load %s: %w", it.ind, it.err)
		}
		named[string(it.ind)] = it.series
	}

	out := uc.run(named)
	if uc.publish && len(out) > 0 {
		if err := uc.pub.PublishAlerts(ctx, out); err != nil {
			uc.metrics.RecordError("publish_alerts")
			uc.l.Error("publish alerts failed", applogger.Int("alerts", len(out)), applogger.Error(err))
		}
	}
	return out, nil
}

// FromRecords scans caller-supplied series. Unparseable rows are dropped.
func (uc *AlertsUseCase) FromRecords(series map[string][]models.RawRecord) []models.Alert {
	named := make(map[string]models.TimeSeries, len(series))
	for name, recs := range series {
		s, _ := forecast.Parse(recs)
		named[name] = s
	}
	return uc.run(named)
}

func (uc *AlertsUseCase) run(named map[string]models.TimeSeries) []models.Alert {
	out := uc.engine.Generate(named)

	counts := map[models.Severity]int{}
	for _, a := range out {
		counts[a.Severity]++
	}
	for sev, n := range counts {
		uc.metrics.RecordAlerts(string(sev), n)
	}
	uc.l.Debug("alerts generated",
		applogger.Int("series", len(named)),
		applogger.Int("alerts", len(out)))
	return out
}
