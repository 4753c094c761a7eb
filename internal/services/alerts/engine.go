package alerts

import (
	"fmt"
	"sort"

	"EconCast/internal/domain/models"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultThreshold = 1.0
	DefaultK         = 2.0
)

// Config holds variation thresholds in percent, keyed by series name, and
// the number of standard deviations that makes a value extreme.
type Config struct {
	Thresholds       map[string]float64 `yaml:"thresholds"`
	DefaultThreshold float64            `yaml:"default_threshold"`
	K                float64            `yaml:"k"`
}

func DefaultConfig() Config {
	return Config{
		Thresholds: map[string]float64{
			string(models.Selic):  1.0,
			string(models.Cambio): 3.0,
			string(models.IPCA):   0.5,
		},
		DefaultThreshold: DefaultThreshold,
		K:                DefaultK,
	}
}

// Engine scans named series for abnormal daily moves and outliers. It keeps
// no state between calls.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = DefaultThreshold
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	return &Engine{cfg: cfg}
}

// Threshold returns the variation threshold for name.
func (e *Engine) Threshold(name string) float64 {
	if t, ok := e.cfg.Thresholds[name]; ok && t > 0 {
		return t
	}
	return e.cfg.DefaultThreshold
}

// Generate returns alerts ordered by series name, then date, with the
// variation alert of a day before its extreme alert.
func (e *Engine) Generate(series map[string]models.TimeSeries) []models.Alert {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []models.Alert
	for _, name := range names {
		out = append(out, e.Scan(name, series[name])...)
	}
	return out
}

// Scan produces the alerts of a single series.
func (e *Engine) Scan(name string, s models.TimeSeries) []models.Alert {
	if len(s) < 2 {
		return nil
	}
	label := models.Indicator(name).Label()
	threshold := e.Threshold(name)
	limit := decimal.NewFromFloat(threshold)

	vals := s.Values()
	mean := stat.Mean(vals, nil)
	std := stat.PopStdDev(vals, nil)
	hi, lo := mean+e.cfg.K*std, mean-e.cfg.K*std

	var out []models.Alert
	for i, p := range s {
		if i > 0 {
			if prev := s[i-1].Value; prev != 0 {
				pct, ok := variation(prev, p.Value, limit)
				if ok {
					out = append(out, models.Alert{
						SeriesName: name,
						Date:       p.Date,
						Severity:   models.SeverityVariation,
						Message: fmt.Sprintf("Alerta: %s variou %+.2f%% em %s (%.4g -> %.4g, limite %.2f%%)",
							label, pct, p.Date.Format(models.DateLayout), prev, p.Value, threshold),
					})
				}
			}
		}
		if std == 0 {
			continue
		}
		switch {
		case p.Value > hi:
			out = append(out, models.Alert{
				SeriesName: name,
				Date:       p.Date,
				Severity:   models.SeverityExtremeHigh,
				Message: fmt.Sprintf("Alerta: %s em nível extremamente alto em %s: %.4g acima de %.4g (média %.4g)",
					label, p.Date.Format(models.DateLayout), p.Value, hi, mean),
			})
		case p.Value < lo:
			out = append(out, models.Alert{
				SeriesName: name,
				Date:       p.Date,
				Severity:   models.SeverityExtremeLow,
				Message: fmt.Sprintf("Alerta: %s em nível extremamente baixo em %s: %.4g abaixo de %.4g (média %.4g)",
					label, p.Date.Format(models.DateLayout), p.Value, lo, mean),
			})
		}
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// variation returns the percent change from prev to cur and whether it
// exceeds limit. Decimal arithmetic keeps moves of exactly the limit, like
// 5.00 -> 5.15 against 3%, from firing on float rounding.
func variation(prev, cur float64, limit decimal.Decimal) (float64, bool) {
	p := decimal.NewFromFloat(prev)
	pct := decimal.NewFromFloat(cur).Sub(p).Div(p).Mul(hundred)
	return pct.InexactFloat64(), pct.Abs().GreaterThan(limit)
}
