package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/services/alerts"
	"EconCast/internal/services/forecast"
	"EconCast/pkg/logger"
	"EconCast/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[models.Indicator]map[time.Time]float64
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: map[models.Indicator]map[time.Time]float64{}}
}

func (s *memStore) Init(context.Context) error   { return nil }
func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) StoreBatch(_ context.Context, obs []models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, o := range obs {
		if s.data[o.Indicator] == nil {
			s.data[o.Indicator] = map[time.Time]float64{}
		}
		s.data[o.Indicator][models.Day(o.Date)] = o.Value
	}
	return nil
}

func (s *memStore) Load(_ context.Context, ind models.Indicator, from, to time.Time, limit int) (models.TimeSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out models.TimeSeries
	for d, v := range s.data[ind] {
		out = append(out, models.Point{Date: d, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	out = out.Between(from, to)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) LastDate(_ context.Context, ind models.Indicator) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for d := range s.data[ind] {
		if d.After(last) {
			last = d
		}
	}
	return last, nil
}

func (s *memStore) put(ind models.Indicator, start time.Time, values ...float64) {
	obs := make([]models.Observation, len(values))
	for i, v := range values {
		obs[i] = models.Observation{Indicator: ind, Date: start.AddDate(0, 0, i), Value: v}
	}
	_ = s.StoreBatch(context.Background(), obs)
}

type memModels struct {
	mu     sync.Mutex
	data   map[string][]byte
	locked map[string]bool
	puts   int
}

func newMemModels() *memModels {
	return &memModels{data: map[string][]byte{}, locked: map[string]bool{}}
}

func (m *memModels) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memModels) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[key] {
		return false, nil
	}
	m.locked[key] = true
	return true, nil
}

func (m *memModels) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, key)
	return nil
}

func (m *memModels) Put(_ context.Context, key string, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.puts++
	return nil
}

type recPublisher struct {
	obs    []models.Observation
	alerts []models.Alert
}

func (p *recPublisher) PublishObservations(_ context.Context, obs []models.Observation) error {
	p.obs = append(p.obs, obs...)
	return nil
}

func (p *recPublisher) PublishAlerts(_ context.Context, a []models.Alert) error {
	p.alerts = append(p.alerts, a...)
	return nil
}

func (p *recPublisher) Close() error { return nil }

type recQueue struct {
	keys    []string
	pending map[string]bool
}

func (q *recQueue) Enqueue(context.Context, string, interface{}) error { return nil }

func (q *recQueue) EnqueueUnique(_ context.Context, _ string, key string, _ interface{}, _ time.Duration) (bool, error) {
	if q.pending == nil {
		q.pending = map[string]bool{}
	}
	if q.pending[key] {
		return false, nil
	}
	q.pending[key] = true
	q.keys = append(q.keys, key)
	return true, nil
}

type stubSource struct {
	calls [][2]time.Time
	recs  []models.RawRecord
	err   error
}

func (s *stubSource) Fetch(_ context.Context, _ models.Indicator, from, to time.Time) ([]models.RawRecord, error) {
	s.calls = append(s.calls, [2]time.Time{from, to})
	return s.recs, s.err
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + float64(i)*0.1
	}
	return out
}

func rawRecords(start time.Time, values []float64) []models.RawRecord {
	out := make([]models.RawRecord, len(values))
	for i, v := range values {
		out[i] = models.RawRecord{
			Date:  start.AddDate(0, 0, i).Format("02/01/2006"),
			Value: models.RawValue(fmt.Sprintf("%.2f", v)),
		}
	}
	return out
}

func newForecastUC(store *memStore, cache *memModels) *ForecastUseCase {
	return NewForecastUseCase(forecast.NewEngine(forecast.DefaultConfig()), store, cache, metrics.Nop{}, logger.Nop(), 0)
}

func TestPredictFromRecordsCachesModel(t *testing.T) {
	cache := newMemModels()
	uc := newForecastUC(newMemStore(), cache)
	p := PredictParams{
		Indicator: models.Selic,
		Records:   rawRecords(jan1, rising(40)),
		Periods:   10,
		Window:    5,
		ModelType: models.FamilyLinear,
	}

	out, err := uc.Predict(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, out.Points, 10)
	assert.Equal(t, models.FamilyLinear, out.Family)
	assert.Equal(t, jan1.AddDate(0, 0, 40), out.Points[0].Date)
	assert.Equal(t, 0.95, out.Points[0].Confidence)
	assert.Equal(t, 1, cache.puts)
	assert.Empty(t, cache.locked, "write lock released")

	again, err := uc.Predict(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.puts, "second call is served from cache")
	assert.Equal(t, out.Points, again.Points)
}

func TestPredictLockedKeyTrainsWithoutWriting(t *testing.T) {
	cache := newMemModels()
	uc := newForecastUC(newMemStore(), cache)
	series, _ := forecast.Parse(rawRecords(jan1, rising(40)))
	cache.locked[ModelKey(models.Selic, series, 5, models.FamilyLinear)] = true

	out, err := uc.Predict(context.Background(), PredictParams{
		Indicator: models.Selic,
		Records:   rawRecords(jan1, rising(40)),
		Periods:   3,
		Window:    5,
		ModelType: models.FamilyLinear,
	})
	require.NoError(t, err)
	assert.Len(t, out.Points, 3)
	assert.Zero(t, cache.puts)
}

func TestPredictFromStore(t *testing.T) {
	store := newMemStore()
	store.put(models.IPCA, jan1, rising(30)...)
	uc := newForecastUC(store, newMemModels())

	out, err := uc.Predict(context.Background(), PredictParams{Indicator: models.IPCA, Periods: 5, Window: 5, ModelType: models.FamilyLinear})
	require.NoError(t, err)
	assert.Equal(t, jan1.AddDate(0, 0, 30), out.Points[0].Date)
}

func TestPredictErrors(t *testing.T) {
	uc := newForecastUC(newMemStore(), newMemModels())
	ctx := context.Background()

	_, err := uc.Predict(ctx, PredictParams{Indicator: models.PIB, Window: 5})
	assert.ErrorIs(t, err, ErrNoStoredData)

	_, err = uc.Predict(ctx, PredictParams{
		Indicator: models.Selic,
		Records:   rawRecords(jan1, rising(16)),
		Window:    15,
		ModelType: models.FamilyLinear,
	})
	assert.ErrorIs(t, err, forecast.ErrInsufficientData)

	store := newMemStore()
	store.err = errors.New("boom")
	_, err = newForecastUC(store, newMemModels()).Predict(ctx, PredictParams{Indicator: models.Selic})
	assert.ErrorContains(t, err, "boom")
}

func TestModelKeyTracksContent(t *testing.T) {
	a, _ := forecast.Parse(rawRecords(jan1, rising(20)))
	b, _ := forecast.Parse(rawRecords(jan1, rising(21)))

	k := ModelKey(models.Selic, a, 15, models.FamilySequence)
	assert.Regexp(t, `^model:selic:[0-9a-f]{32}:15:sequence$`, k)
	assert.Equal(t, k, ModelKey(models.Selic, a, 15, models.FamilySequence))
	assert.NotEqual(t, k, ModelKey(models.Selic, b, 15, models.FamilySequence))
	assert.NotEqual(t, k, ModelKey(models.Selic, a, 10, models.FamilySequence))
	assert.NotEqual(t, k, ModelKey(models.Selic, a, 15, models.FamilyEnsemble))
}

func TestWarmupHandle(t *testing.T) {
	store := newMemStore()
	store.put(models.Cambio, jan1, rising(30)...)
	cache := newMemModels()
	q := &recQueue{}
	w := NewModelWarmup(q, newForecastUC(store, cache), 5, models.FamilyLinear, logger.Nop())

	require.NoError(t, w.Schedule(context.Background(), models.Cambio))
	require.NoError(t, w.Schedule(context.Background(), models.Cambio))
	assert.Equal(t, []string{"cambio:5:linear"}, q.keys)

	payload, err := json.Marshal(WarmupPayload{Indicator: models.Cambio, Window: 5, Family: models.FamilyLinear})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), payload))
	assert.Equal(t, 1, cache.puts)

	empty, _ := json.Marshal(WarmupPayload{Indicator: models.PIB, Window: 5, Family: models.FamilyLinear})
	assert.NoError(t, w.Handle(context.Background(), empty), "no data is not retried")

	bad, _ := json.Marshal(WarmupPayload{Indicator: "gdp"})
	assert.Error(t, w.Handle(context.Background(), bad))
}

func TestNilWarmupSchedule(t *testing.T) {
	var w *ModelWarmup
	assert.NoError(t, w.Schedule(context.Background(), models.Selic))
}

func TestSeriesProcessorRoutes(t *testing.T) {
	obs := []models.Observation{
		{Indicator: models.Selic, Date: jan1, Value: 1},
		{Indicator: models.Selic, Date: jan1.AddDate(0, 0, 1), Value: 2},
		{Indicator: models.Selic, Date: jan1.AddDate(0, 0, 2), Value: 3},
	}

	store := newMemStore()
	require.NoError(t, NewSeriesProcessor(nil, store, metrics.Nop{}, BackendClickHouse, 2).Process(context.Background(), obs))
	assert.Len(t, store.data[models.Selic], 3)

	pub := &recPublisher{}
	require.NoError(t, NewSeriesProcessor(pub, store, metrics.Nop{}, BackendKafka, 2).Process(context.Background(), obs))
	assert.Len(t, pub.obs, 3)

	err := NewSeriesProcessor(nil, store, metrics.Nop{}, "s3", 0).Process(context.Background(), obs)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestCollectorIncremental(t *testing.T) {
	store := newMemStore()
	src := &stubSource{recs: rawRecords(jan1, []float64{10, 11, 12})}
	q := &recQueue{}
	warm := NewModelWarmup(q, nil, 15, models.FamilySequence, logger.Nop())
	proc := NewSeriesProcessor(nil, store, metrics.Nop{}, BackendClickHouse, 100)
	c := NewSeriesCollector(src, store, proc, warm, metrics.Nop{}, logger.Nop(), []models.Indicator{models.Selic}, time.Hour, time.Time{})
	c.now = func() time.Time { return time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC) }

	n, err := c.Collect(context.Background(), models.Selic)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, src.calls[0][0].IsZero(), "empty store loads full history")
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), src.calls[0][1])
	assert.Equal(t, []string{"selic:15:sequence"}, q.keys)

	// upstream repeats the boundary day and adds one
	src.recs = rawRecords(jan1.AddDate(0, 0, 2), []float64{12, 13})
	n, err = c.Collect(context.Background(), models.Selic)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, jan1.AddDate(0, 0, 3), src.calls[1][0])

	s, _ := store.Load(context.Background(), models.Selic, time.Time{}, time.Time{}, 0)
	assert.Equal(t, []float64{10, 11, 12, 13}, s.Values())
}

func TestCollectorUpToDate(t *testing.T) {
	store := newMemStore()
	store.put(models.Selic, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 10)
	src := &stubSource{}
	proc := NewSeriesProcessor(nil, store, metrics.Nop{}, BackendClickHouse, 100)
	c := NewSeriesCollector(src, store, proc, nil, metrics.Nop{}, logger.Nop(), nil, 0, time.Time{})
	c.now = func() time.Time { return time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC) }

	n, err := c.Collect(context.Background(), models.Selic)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.calls)
}

func TestCollectorKafkaBackendDefersWarmup(t *testing.T) {
	store := newMemStore()
	pub := &recPublisher{}
	q := &recQueue{}
	src := &stubSource{recs: rawRecords(jan1, []float64{1, 2})}
	proc := NewSeriesProcessor(pub, store, metrics.Nop{}, BackendKafka, 100)
	c := NewSeriesCollector(src, store, proc, NewModelWarmup(q, nil, 15, "", logger.Nop()), metrics.Nop{}, logger.Nop(), nil, 0, time.Time{})

	n, err := c.Collect(context.Background(), models.Cambio)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, pub.obs, 2)
	assert.Empty(t, store.data)
	assert.Empty(t, q.keys)
}

func TestCollectorStartStop(t *testing.T) {
	store := newMemStore()
	src := &stubSource{err: errors.New("upstream down")}
	proc := NewSeriesProcessor(nil, store, metrics.Nop{}, BackendClickHouse, 100)
	c := NewSeriesCollector(src, store, proc, nil, metrics.Nop{}, logger.Nop(), []models.Indicator{models.IPCA}, time.Hour, time.Time{})

	require.NoError(t, c.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestKafkaObservationsHandler(t *testing.T) {
	store := newMemStore()
	q := &recQueue{}
	h := NewKafkaObservationsHandler("econcast.observations", store, metrics.Nop{}, NewModelWarmup(q, nil, 15, models.FamilySequence, logger.Nop()))
	assert.Equal(t, "econcast.observations", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"indicator":"selic","data":"2024-03-01","valor":10.65}`)))
	assert.Equal(t, 10.65, store.data[models.Selic][time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)])
	assert.Equal(t, []string{"selic:15:sequence"}, q.keys)

	assert.Error(t, h.Handle(context.Background(), []byte(`{"indicator":"gdp","data":"2024-03-01","valor":1}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"indicator":"selic","data":"março","valor":1}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
}

func spike() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = 5
	}
	return append(out, 9)
}

func TestAlertsStoredPublishes(t *testing.T) {
	store := newMemStore()
	store.put(models.Selic, jan1, spike()...)
	pub := &recPublisher{}
	uc := NewAlertsUseCase(alerts.NewEngine(alerts.DefaultConfig()), store, pub, metrics.Nop{}, logger.Nop(), []models.Indicator{models.Selic, models.Cambio}, true)

	out, err := uc.Stored(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	spikeDate := jan1.AddDate(0, 0, 20)
	assert.Equal(t, models.SeverityVariation, out[0].Severity)
	assert.Equal(t, models.SeverityExtremeHigh, out[1].Severity)
	for _, a := range out {
		assert.Equal(t, spikeDate, a.Date)
		assert.Contains(t, a.Message, "Alerta")
	}
	assert.Len(t, pub.alerts, 2)
}

func TestAlertsStoredLoadError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("down")
	uc := NewAlertsUseCase(alerts.NewEngine(alerts.DefaultConfig()), store, nil, metrics.Nop{}, logger.Nop(), nil, true)
	_, err := uc.Stored(context.Background())
	assert.Error(t, err)
}

func TestAlertsFromRecords(t *testing.T) {
	uc := NewAlertsUseCase(alerts.NewEngine(alerts.DefaultConfig()), newMemStore(), nil, metrics.Nop{}, logger.Nop(), nil, false)
	out := uc.FromRecords(map[string][]models.RawRecord{
		"juros": rawRecords(jan1, spike()),
		"vazia": nil,
	})
	require.Len(t, out, 2)
	assert.Equal(t, "juros", out[0].SeriesName)
}

func TestSeriesUseCase(t *testing.T) {
	store := newMemStore()
	// 2023-12-30 .. 2024-04-08
	store.put(models.IPCA, time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), rising(101)...)
	uc := NewSeriesUseCase(store, metrics.Nop{})
	ctx := context.Background()

	jan, err := uc.ByMonth(ctx, models.IPCA, 2024, time.January)
	require.NoError(t, err)
	assert.Len(t, jan, 31)

	q1, err := uc.ByQuarter(ctx, models.IPCA, 2024, 1)
	require.NoError(t, err)
	assert.Len(t, q1, 91)

	mean, ok, err := uc.Mean(ctx, models.IPCA, 2023, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.05, mean)

	_, ok, err = uc.Mean(ctx, models.IPCA, 2020, time.March)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := uc.Summary(ctx, models.IPCA)
	require.NoError(t, err)
	assert.Equal(t, 101, sum.Count)
	assert.Equal(t, models.TrendUp, sum.Trend)

	limited, err := uc.Observations(ctx, models.IPCA, time.Time{}, time.Time{}, 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
}
