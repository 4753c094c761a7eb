package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastValue    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	forecasts    *prometheus.CounterVec
	fitRMSE      *prometheus.GaugeVec
	alerts       *prometheus.CounterVec
	cache        *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg, so tests can use a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_observations_sent_total",
				Help: "Total number of observations sent to the storage backend",
			},
			[]string{"backend", "indicator"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "econcast_last_value",
				Help: "Latest stored observation per indicator",
			},
			[]string{"indicator"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "econcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_forecasts_total",
				Help: "Forecasts served by model family",
			},
			[]string{"indicator", "family", "overridden"},
		),
		fitRMSE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "econcast_model_fit_rmse",
				Help: "In-sample one-step RMSE of the latest trained model",
			},
			[]string{"indicator", "family"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_alerts_total",
				Help: "Alerts generated by severity",
			},
			[]string{"severity"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econcast_model_cache_total",
				Help: "Model cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordMessageSent records an observation sent to a backend.
func (r *Recorder) RecordMessageSent(backend, indicator string) {
	r.messagesSent.WithLabelValues(backend, indicator).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastValue(indicator string, value float64) {
	r.lastValue.WithLabelValues(indicator).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordForecast(indicator, family string, overridden bool) {
	r.forecasts.WithLabelValues(indicator, family, strconv.FormatBool(overridden)).Inc()
}

func (r *Recorder) RecordFit(indicator, family string, rmse float64) {
	r.fitRMSE.WithLabelValues(indicator, family).Set(rmse)
}

func (r *Recorder) RecordAlerts(severity string, n int) {
	r.alerts.WithLabelValues(severity).Add(float64(n))
}

// RecordCache counts hit, miss, claim and error results.
func (r *Recorder) RecordCache(result string) {
	r.cache.WithLabelValues(result).Inc()
}

// Nop satisfies the metrics interface without recording.
type Nop struct{}

func (Nop) RecordMessageSent(string, string)    {}
func (Nop) RecordError(string)                  {}
func (Nop) RecordLastValue(string, float64)     {}
func (Nop) RecordLatency(string, float64)       {}
func (Nop) RecordForecast(string, string, bool) {}
func (Nop) RecordFit(string, string, float64)   {}
func (Nop) RecordAlerts(string, int)            {}
func (Nop) RecordCache(string)                  {}
