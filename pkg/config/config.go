package config

import (
	"fmt"
	"os"
	"time"

	"EconCast/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logger      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logger"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled"`
			RPS     float64 `yaml:"rps"`
			Burst   int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type      string `yaml:"type"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"backend"`
	Ingest struct {
		Enabled    bool          `yaml:"enabled"`
		BaseURL    string        `yaml:"base_url"`
		Indicators []string      `yaml:"indicators"`
		Interval   time.Duration `yaml:"interval"`
		Timeout    time.Duration `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
		// Start bounds the first full load of an empty store.
		Start string `yaml:"start"`
	} `yaml:"ingest"`
	Forecast struct {
		// History caps how many of the newest stored points a forecast
		// trains on. Negative means the whole series.
		History             int     `yaml:"history"`
		TrailingWindow      int     `yaml:"trailing_window"`
		VolatilityThreshold float64 `yaml:"volatility_threshold"`
		AnchorTolerance     float64 `yaml:"anchor_tolerance"`
		AnchorWeight        float64 `yaml:"anchor_weight"`
		ClampTrigger        float64 `yaml:"clamp_trigger"`
		ClampStep           float64 `yaml:"clamp_step"`
		SequenceDecay       float64 `yaml:"sequence_decay"`
		FallbackDecay       float64 `yaml:"fallback_decay"`
		Sequence            struct {
			HiddenSize   int     `yaml:"hidden_size"`
			Layers       int     `yaml:"layers"`
			Epochs       int     `yaml:"epochs"`
			BatchSize    int     `yaml:"batch_size"`
			LearningRate float64 `yaml:"learning_rate"`
			WeightDecay  float64 `yaml:"weight_decay"`
			Seed         int64   `yaml:"seed"`
		} `yaml:"sequence"`
		Ensemble struct {
			Trees          int   `yaml:"trees"`
			MaxDepth       int   `yaml:"max_depth"`
			MinSamplesLeaf int   `yaml:"min_samples_leaf"`
			Seed           int64 `yaml:"seed"`
		} `yaml:"ensemble"`
		Cache struct {
			Enabled bool          `yaml:"enabled"`
			TTL     time.Duration `yaml:"ttl"`
			LockTTL time.Duration `yaml:"lock_ttl"`
		} `yaml:"cache"`
		Warmup struct {
			Enabled bool          `yaml:"enabled"`
			Queue   string        `yaml:"queue"`
			Window  int           `yaml:"window"`
			Model   string        `yaml:"model"`
			Poll    time.Duration `yaml:"poll"`
		} `yaml:"warmup"`
	} `yaml:"forecast"`
	Alerts struct {
		Thresholds       map[string]float64 `yaml:"thresholds"`
		DefaultThreshold float64            `yaml:"default_threshold"`
		K                float64            `yaml:"k"`
		Series           []string           `yaml:"series"`
		Publish          bool               `yaml:"publish"`
	} `yaml:"alerts"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		AlertsTopic  string   `yaml:"alerts_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("INDICATORS"); v != "" {
		c.Ingest.Indicators = util.SplitList(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 2 * time.Minute
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "clickhouse"
	}
	if c.Backend.BatchSize == 0 {
		c.Backend.BatchSize = 1000
	}
	if c.Ingest.BaseURL == "" {
		c.Ingest.BaseURL = "https://api.bcb.gov.br/dados/serie"
	}
	if len(c.Ingest.Indicators) == 0 {
		c.Ingest.Indicators = []string{"selic", "cambio", "ipca", "pib", "divida", "desemprego"}
	}
	if len(c.Alerts.Series) == 0 {
		c.Alerts.Series = []string{"selic", "cambio", "ipca"}
	}
	if c.Ingest.Interval == 0 {
		c.Ingest.Interval = 6 * time.Hour
	}
	if c.Ingest.Timeout == 0 {
		c.Ingest.Timeout = 30 * time.Second
	}
	if c.Ingest.Retries == 0 {
		c.Ingest.Retries = 3
	}
	if c.Forecast.History == 0 {
		c.Forecast.History = 1000
	}
	if c.Forecast.Cache.TTL == 0 {
		c.Forecast.Cache.TTL = 24 * time.Hour
	}
	if c.Forecast.Cache.LockTTL == 0 {
		c.Forecast.Cache.LockTTL = 5 * time.Minute
	}
	if c.Forecast.Warmup.Queue == "" {
		c.Forecast.Warmup.Queue = "econcast:warmup"
	}
	if c.Forecast.Warmup.Window == 0 {
		c.Forecast.Warmup.Window = 15
	}
	if c.Forecast.Warmup.Model == "" {
		c.Forecast.Warmup.Model = "sequence"
	}
	if c.Forecast.Warmup.Poll == 0 {
		c.Forecast.Warmup.Poll = 5 * time.Second
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 4
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "econcast"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required for the kafka backend")
	}
	if c.Alerts.Publish && c.Kafka.AlertsTopic == "" {
		return fmt.Errorf("kafka.alerts_topic is required when alerts.publish is set")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Forecast.VolatilityThreshold < 0 {
		return fmt.Errorf("forecast.volatility_threshold cannot be negative")
	}
	if w := c.Forecast.AnchorWeight; w < 0 || w > 1 {
		return fmt.Errorf("forecast.anchor_weight must be within [0,1], got %v", w)
	}
	for name, t := range c.Alerts.Thresholds {
		if t <= 0 {
			return fmt.Errorf("alerts.thresholds.%s must be positive", name)
		}
	}
	if c.Forecast.Warmup.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("forecast.warmup requires redis")
	}
	return nil
}
