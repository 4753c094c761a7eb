package di

import (
	"context"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	"EconCast/internal/domain/repository"
	"EconCast/internal/handler/api"
	internalrepo "EconCast/internal/repository"
	"EconCast/internal/service/bcb"
	"EconCast/internal/services/alerts"
	"EconCast/internal/services/forecast"
	"EconCast/internal/usecase"
	"EconCast/pkg/cache"
	pkgch "EconCast/pkg/clickhouse"
	"EconCast/pkg/config"
	xhttp "EconCast/pkg/http"
	"EconCast/pkg/http/middleware"
	pkgkafka "EconCast/pkg/kafka"
	applogger "EconCast/pkg/logger"
	"EconCast/pkg/metrics"
	"EconCast/pkg/queue"
	"EconCast/pkg/server"
	"EconCast/pkg/util"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCreateDatabase(true),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSeriesStorage creates the ClickHouse observation store and ensures
// its table exists.
func ProvideSeriesStorage(chClient *pkgch.Client, l *applogger.Logger) (repository.Storage, error) {
	store := internalrepo.NewClickHouseSeriesStore(chClient, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when something publishes:
// the kafka backend or alert publishing. Otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka && !cfg.Alerts.Publish {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSeriesPublisher wraps the producer. A nil producer yields a nil
// Publisher.
func ProvideSeriesPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.AlertsTopic)
}

// ProvideRedisClient connects to Redis when enabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 0, 0),
	)
}

// ProvideCache layers an in-process cache over Redis, or uses the in-process
// cache alone when Redis is disabled.
func ProvideCache(rdb *redis.Client) cache.Service {
	if rdb == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(256))
	}
	return cache.NewLayeredCache(
		cache.NewRedisCacheWithClient(rdb, "econcast:"),
		cache.WithLayeredMemorySize(256),
		cache.WithLayeredMemoryTTL(10*time.Minute),
	)
}

// ProvideModelCache stores trained models unless caching is disabled.
func ProvideModelCache(cfg *config.Config, svc cache.Service) repository.ModelCache {
	if !cfg.Forecast.Cache.Enabled {
		return internalrepo.NoModelCache{}
	}
	return internalrepo.NewCachedModels(svc, cfg.Forecast.Cache.TTL, cfg.Forecast.Cache.LockTTL)
}

// ProvideForecastConfig overlays the non-zero YAML settings on the defaults.
func ProvideForecastConfig(cfg *config.Config) forecast.Config {
	fc := forecast.DefaultConfig()
	f := cfg.Forecast

	setInt(&fc.Volatility.TrailingWindow, f.TrailingWindow)
	setFloat(&fc.Volatility.Threshold, f.VolatilityThreshold)
	setFloat(&fc.Stabilizer.AnchorTolerance, f.AnchorTolerance)
	setFloat(&fc.Stabilizer.AnchorWeight, f.AnchorWeight)
	setFloat(&fc.Stabilizer.ClampTrigger, f.ClampTrigger)
	setFloat(&fc.Stabilizer.ClampStep, f.ClampStep)
	setFloat(&fc.Decay.Sequence, f.SequenceDecay)
	setFloat(&fc.Decay.Fallback, f.FallbackDecay)

	setInt(&fc.Sequence.HiddenSize, f.Sequence.HiddenSize)
	setInt(&fc.Sequence.Layers, f.Sequence.Layers)
	setInt(&fc.Sequence.Epochs, f.Sequence.Epochs)
	setInt(&fc.Sequence.BatchSize, f.Sequence.BatchSize)
	setFloat(&fc.Sequence.LearningRate, f.Sequence.LearningRate)
	setFloat(&fc.Sequence.WeightDecay, f.Sequence.WeightDecay)
	if f.Sequence.Seed != 0 {
		fc.Sequence.Seed = f.Sequence.Seed
	}

	setInt(&fc.Ensemble.Trees, f.Ensemble.Trees)
	setInt(&fc.Ensemble.MaxDepth, f.Ensemble.MaxDepth)
	setInt(&fc.Ensemble.MinSamplesLeaf, f.Ensemble.MinSamplesLeaf)
	if f.Ensemble.Seed != 0 {
		fc.Ensemble.Seed = f.Ensemble.Seed
	}
	return fc
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func ProvideForecastEngine(fc forecast.Config) *forecast.Engine {
	return forecast.NewEngine(fc)
}

func ProvideAlertsEngine(cfg *config.Config) *alerts.Engine {
	ac := alerts.DefaultConfig()
	for name, t := range cfg.Alerts.Thresholds {
		ac.Thresholds[string(models.NormalizeIndicator(name))] = t
	}
	if cfg.Alerts.DefaultThreshold > 0 {
		ac.DefaultThreshold = cfg.Alerts.DefaultThreshold
	}
	if cfg.Alerts.K > 0 {
		ac.K = cfg.Alerts.K
	}
	return alerts.NewEngine(ac)
}

// ParseIndicators normalizes configured indicator names and rejects unknown ones.
func ParseIndicators(names []string) ([]models.Indicator, error) {
	out := make([]models.Indicator, 0, len(names))
	for _, n := range names {
		ind := models.NormalizeIndicator(n)
		if !ind.IsValid() {
			return nil, fmt.Errorf("unknown indicator %q", n)
		}
		out = append(out, ind)
	}
	return out, nil
}

// ProvideForecastUseCase creates the forecasting use case. Stored series are
// cut to the newest forecast.history points.
func ProvideForecastUseCase(
	cfg *config.Config,
	engine *forecast.Engine,
	store repository.Storage,
	modelCache repository.ModelCache,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(engine, store, modelCache, metrics, l, historyLimit(cfg.Forecast.History))
}

// historyLimit maps the configured history onto a Load limit, where 0 means
// no limit.
func historyLimit(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ProvideWarmupQueue creates the Redis job queue for model warm-up, or nil
// when warm-up is disabled.
func ProvideWarmupQueue(cfg *config.Config, rdb *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Forecast.Warmup.Enabled || rdb == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:     1,
		RetryLimit:  2,
		RetryDelay:  30 * time.Second,
		PollTimeout: cfg.Forecast.Warmup.Poll,
	}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Forecast.Warmup.Queue))
}

// ProvideModelWarmup registers the warm-up job on the queue. It returns nil
// without a queue, which disables scheduling.
func ProvideModelWarmup(
	cfg *config.Config,
	q *queue.RedisQueue,
	uc *usecase.ForecastUseCase,
	l *applogger.Logger,
) *usecase.ModelWarmup {
	if q == nil {
		return nil
	}
	w := usecase.NewModelWarmup(q, uc, cfg.Forecast.Warmup.Window, models.ModelFamily(cfg.Forecast.Warmup.Model), l)
	q.RegisterJobs(w)
	return w
}

// ProvideSeriesSource creates the BCB SGS client.
func ProvideSeriesSource(cfg *config.Config, l *applogger.Logger) repository.SeriesSource {
	return bcb.New(
		bcb.WithBaseURL(cfg.Ingest.BaseURL),
		bcb.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Ingest.Timeout))),
		bcb.WithRetry(cfg.Ingest.Retries, 500*time.Millisecond),
		bcb.WithLogger(l),
	)
}

// ProvideSeriesProcessor creates the observation router.
func ProvideSeriesProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SeriesProcessor {
	return usecase.NewSeriesProcessor(pub, store, metrics, cfg.Backend.Type, cfg.Backend.BatchSize)
}

// ProvideSeriesCollector creates the periodic BCB collector, or nil when
// ingestion is disabled.
func ProvideSeriesCollector(
	cfg *config.Config,
	source repository.SeriesSource,
	store repository.Storage,
	proc *usecase.SeriesProcessor,
	warmup *usecase.ModelWarmup,
	metrics repository.Metrics,
	l *applogger.Logger,
) (*usecase.SeriesCollector, error) {
	if !cfg.Ingest.Enabled {
		return nil, nil
	}
	inds, err := ParseIndicators(cfg.Ingest.Indicators)
	if err != nil {
		return nil, fmt.Errorf("ingest.indicators: %w", err)
	}
	var start time.Time
	if cfg.Ingest.Start != "" {
		t, ok := util.ParseDate(cfg.Ingest.Start)
		if !ok {
			return nil, fmt.Errorf("ingest.start: invalid date %q", cfg.Ingest.Start)
		}
		start = t
	}
	return usecase.NewSeriesCollector(source, store, proc, warmup, metrics, l, inds, cfg.Ingest.Interval, start), nil
}

// ProvideKafkaConsumer creates the observations consumer for the kafka
// backend, or nil for the clickhouse backend.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.RequireKeyHook(),
		pkgkafka.LoggingHook(l),
	))
	return consumer, nil
}

// ProvideKafkaObservationsHandler handles the observations topic.
func ProvideKafkaObservationsHandler(
	cfg *config.Config,
	store repository.Storage,
	metrics repository.Metrics,
	warmup *usecase.ModelWarmup,
) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.Topic, store, metrics, warmup)
}

// ProvideAlertsUseCase creates the alerts use case.
func ProvideAlertsUseCase(
	cfg *config.Config,
	engine *alerts.Engine,
	store repository.Storage,
	pub repository.Publisher,
	metrics repository.Metrics,
	l *applogger.Logger,
) (*usecase.AlertsUseCase, error) {
	series, err := ParseIndicators(cfg.Alerts.Series)
	if err != nil {
		return nil, fmt.Errorf("alerts.series: %w", err)
	}
	return usecase.NewAlertsUseCase(engine, store, pub, metrics, l, series, cfg.Alerts.Publish), nil
}

func ProvideSeriesUseCase(store repository.Storage, metrics repository.Metrics) *usecase.SeriesUseCase {
	return usecase.NewSeriesUseCase(store, metrics)
}

// ProvideLimiter creates the forecast rate limiter, or nil when disabled.
func ProvideLimiter(cfg *config.Config) *middleware.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return middleware.NewLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

// ProvideRouter assembles every HTTP handler.
func ProvideRouter(
	l *applogger.Logger,
	forecastUC *usecase.ForecastUseCase,
	alertsUC *usecase.AlertsUseCase,
	seriesUC *usecase.SeriesUseCase,
	store repository.Storage,
	limiter *middleware.Limiter,
) *api.Router {
	return api.NewRouter(
		api.NewHealthHandler(store),
		api.NewForecastHandler(l, forecastUC, limiter),
		api.NewAlertsHandler(l, alertsUC),
		api.NewSeriesHandler(l, seriesUC),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	router *api.Router,
	collector *usecase.SeriesCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	q *queue.RedisQueue,
	proc *usecase.SeriesProcessor,
	rdb *redis.Client,
) *server.App {
	parts := server.Components{
		Collector: collector,
		Consumer:  consumer,
		Warmup:    q,
		Processor: proc,
		Redis:     rdb,
	}
	if consumer != nil {
		parts.Handler = kh
	}
	return server.New(cfg, l, chClient, router, parts)
}
