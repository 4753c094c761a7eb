package forecast

import (
	"context"
	"time"

	"EconCast/internal/domain/models"
)

const (
	DefaultPeriods = 90
	DefaultWindow  = 15
	MaxPeriods     = 365
	MaxWindow      = 120
)

// Config gathers every tunable of the forecasting pipeline.
type Config struct {
	Volatility VolatilityPolicy
	Stabilizer Stabilizer
	Decay      Decay
	Sequence   SequenceSpec
	Ensemble   EnsembleSpec
	Linear     LinearSpec
}

func DefaultConfig() Config {
	return Config{
		Volatility: DefaultVolatilityPolicy(),
		Stabilizer: DefaultStabilizer(),
		Decay:      DefaultDecay(),
		Sequence:   DefaultSequenceSpec(),
		Ensemble:   DefaultEnsembleSpec(),
	}
}

// Params are the per-request knobs. Zero values take the defaults.
type Params struct {
	Periods   int
	Window    int
	ModelType models.ModelFamily
	// Strict disables the volatility override of the sequence family.
	Strict bool
}

func (p Params) withDefaults() Params {
	if p.Periods == 0 {
		p.Periods = DefaultPeriods
	}
	if p.Window == 0 {
		p.Window = DefaultWindow
	}
	if p.ModelType == "" {
		p.ModelType = models.FamilySequence
	}
	return p
}

func (p Params) validate() error {
	if p.Periods < 1 || p.Periods > MaxPeriods {
		return invalidParams("forecast", "periods %d out of range 1..%d", p.Periods, MaxPeriods)
	}
	if p.Window < 1 || p.Window > MaxWindow {
		return invalidParams("forecast", "window_size %d out of range 1..%d", p.Window, MaxWindow)
	}
	if !p.ModelType.IsValid() {
		return invalidParams("forecast", "unknown model_type %q", p.ModelType)
	}
	return nil
}

// Selection is the family chosen for a request.
type Selection struct {
	Requested models.ModelFamily
	Family    models.ModelFamily
	Ratio     float64
}

// Outcome is a successful forecast.
type Outcome struct {
	Points          []models.ForecastPoint
	Family          models.ModelFamily
	Requested       models.ModelFamily
	VolatilityRatio float64
	Evaluation      models.Evaluation
}

// Engine composes classification, training, projection, stabilization and
// confidence. It holds configuration only and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Select validates params against the series and picks the model family.
func (e *Engine) Select(series models.TimeSeries, p Params) (Params, Selection, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return p, Selection{}, err
	}
	if need := MinPoints(p.Window); len(series) < need {
		return p, Selection{}, insufficient("forecast", len(series), need)
	}
	vol := e.cfg.Volatility.Classify(series.Values())
	sel := Selection{Requested: p.ModelType, Family: p.ModelType, Ratio: vol.Ratio}
	if p.ModelType == models.FamilySequence && !p.Strict && vol.Recommended == models.FamilyEnsemble {
		sel.Family = models.FamilyEnsemble
	}
	return p, sel, nil
}

func (e *Engine) spec(f models.ModelFamily) ModelSpec {
	switch f {
	case models.FamilyEnsemble:
		return e.cfg.Ensemble
	case models.FamilyLinear:
		return e.cfg.Linear
	default:
		return e.cfg.Sequence
	}
}

// Train fits the selected family on the series.
func (e *Engine) Train(ctx context.Context, series models.TimeSeries, family models.ModelFamily, window int) (*TrainedModel, error) {
	return FitContext(ctx, e.spec(family), series.Values(), window)
}

// Project predicts periods days past the end of series and attaches dates
// and confidences.
func (e *Engine) Project(m *TrainedModel, series models.TimeSeries, periods int) ([]models.ForecastPoint, error) {
	if len(series) == 0 {
		return nil, insufficient("project", 0, 1)
	}
	raw, err := Predict(m, series.Values(), periods)
	if err != nil {
		return nil, err
	}
	last := series.Last()
	values := e.cfg.Stabilizer.Stabilize(raw, last.Value)
	decay := e.cfg.Decay.For(m.Family)

	out := make([]models.ForecastPoint, len(values))
	for i, v := range values {
		out[i] = models.ForecastPoint{
			Date:       models.Day(last.Date).AddDate(0, 0, i+1),
			Value:      v,
			IsForecast: true,
			Confidence: ConfidenceAt(i, decay),
		}
	}
	return out, nil
}

// Forecast runs the whole pipeline with no caching.
func (e *Engine) Forecast(series models.TimeSeries, p Params) (*Outcome, error) {
	p, sel, err := e.Select(series, p)
	if err != nil {
		return nil, err
	}
	m, err := e.Train(context.Background(), series, sel.Family, p.Window)
	if err != nil {
		return nil, err
	}
	return e.Complete(m, series, p, sel)
}

// Complete projects an already trained model and evaluates it.
func (e *Engine) Complete(m *TrainedModel, series models.TimeSeries, p Params, sel Selection) (*Outcome, error) {
	points, err := e.Project(m, series, p.Periods)
	if err != nil {
		return nil, err
	}
	ev, err := Evaluate(m, series.Values())
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Points:          points,
		Family:          m.Family,
		Requested:       sel.Requested,
		VolatilityRatio: sel.Ratio,
		Evaluation:      ev,
	}, nil
}

// Horizon is the date range covered by points.
func Horizon(points []models.ForecastPoint) (time.Time, time.Time) {
	if len(points) == 0 {
		return time.Time{}, time.Time{}
	}
	return points[0].Date, points[len(points)-1].Date
}
