package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/services/forecast"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/queue"
)

// WarmupJobType is the queue message type of model warm-up jobs.
const WarmupJobType = "model_warmup"

// WarmupPayload asks for the model of (indicator, window, family) to be cached.
type WarmupPayload struct {
	Indicator models.Indicator   `json:"indicator"`
	Window    int                `json:"window"`
	Family    models.ModelFamily `json:"family"`
}

// ModelWarmup schedules and runs background training so that the first
// forecast after new data finds its model cached.
type ModelWarmup struct {
	pub      queue.Publisher
	forecast *ForecastUseCase
	window   int
	family   models.ModelFamily
	ttl      time.Duration
	l        *applogger.Logger
}

func NewModelWarmup(pub queue.Publisher, uc *ForecastUseCase, window int, family models.ModelFamily, l *applogger.Logger) *ModelWarmup {
	if window <= 0 {
		window = forecast.DefaultWindow
	}
	if !family.IsValid() {
		family = models.FamilySequence
	}
	return &ModelWarmup{
		pub:      pub,
		forecast: uc,
		window:   window,
		family:   family,
		ttl:      30 * time.Minute,
		l:        l.Component("warmup"),
	}
}

var _ queue.Job = (*ModelWarmup)(nil)

func (w *ModelWarmup) Name() string { return "ModelWarmup" }
func (w *ModelWarmup) Type() string { return WarmupJobType }

// Schedule enqueues a warm-up for ind unless one is already pending. A nil
// receiver or publisher disables warm-up.
func (w *ModelWarmup) Schedule(ctx context.Context, ind models.Indicator) error {
	if w == nil || w.pub == nil {
		return nil
	}
	payload := WarmupPayload{Indicator: ind, Window: w.window, Family: w.family}
	key := fmt.Sprintf("%s:%d:%s", ind, w.window, w.family)
	queued, err := w.pub.EnqueueUnique(ctx, WarmupJobType, key, payload, w.ttl)
	if err != nil {
		return fmt.Errorf("schedule warmup %s: %w", ind, err)
	}
	if queued {
		w.l.Debug("warmup scheduled", applogger.String("indicator", string(ind)))
	}
	return nil
}

func (w *ModelWarmup) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.DecodePayload[WarmupPayload](payload)
	if err != nil {
		return err
	}
	if !p.Indicator.IsValid() {
		return fmt.Errorf("warmup: unknown indicator %q", p.Indicator)
	}

	start := time.Now()
	err = w.forecast.WarmUp(ctx, p.Indicator, p.Window, p.Family)
	switch {
	case errors.Is(err, ErrNoStoredData), errors.Is(err, forecast.ErrInsufficientData):
		// nothing to train yet, retrying will not help
		w.l.Info("warmup skipped",
			applogger.String("indicator", string(p.Indicator)),
			applogger.String("reason", err.Error()))
		return nil
	case err != nil:
		return err
	}

	w.l.Info("model warmed up",
		applogger.String("indicator", string(p.Indicator)),
		applogger.Int("window", p.Window),
		applogger.String("family", string(p.Family)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}
