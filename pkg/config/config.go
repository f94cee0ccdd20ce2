package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Models struct {
		Dir    string `yaml:"dir"`
		Seed   int64  `yaml:"seed"`
		Forest struct {
			Trees       int `yaml:"trees"`
			MaxDepth    int `yaml:"max_depth"`
			MinLeafSize int `yaml:"min_leaf_size"`
		} `yaml:"forest"`
	} `yaml:"models"`
	Prediction struct {
		DefaultHorizon int           `yaml:"default_horizon"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		TickerTimeout  time.Duration `yaml:"ticker_timeout"`
		BatchWorkers   int           `yaml:"batch_workers"`
		Lookback       int           `yaml:"lookback"`
	} `yaml:"prediction"`
	Watchlist  []string `yaml:"watchlist"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		PredictionsTopic string   `yaml:"predictions_topic"`
		MarketTopic      string   `yaml:"market_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Recorder struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"recorder"`
	Scheduler struct {
		PrewarmCron string        `yaml:"prewarm_cron"`
		RetrainCron string        `yaml:"retrain_cron"`
		Horizon     int           `yaml:"horizon"`
		JobTimeout  time.Duration `yaml:"job_timeout"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Models.Dir == "" {
		c.Models.Dir = "models"
	}
	if c.Models.Forest.Trees == 0 {
		c.Models.Forest.Trees = 100
	}
	if c.Models.Forest.MaxDepth == 0 {
		c.Models.Forest.MaxDepth = 10
	}
	if c.Models.Forest.MinLeafSize == 0 {
		c.Models.Forest.MinLeafSize = 1
	}
	if c.Prediction.DefaultHorizon == 0 {
		c.Prediction.DefaultHorizon = 5
	}
	if c.Prediction.CacheTTL == 0 {
		c.Prediction.CacheTTL = time.Hour
	}
	if c.Prediction.TickerTimeout == 0 {
		c.Prediction.TickerTimeout = 10 * time.Second
	}
	if c.Prediction.BatchWorkers == 0 {
		c.Prediction.BatchWorkers = 4
	}
	if c.Prediction.Lookback == 0 {
		c.Prediction.Lookback = 366
	}
	if c.Recorder.Path == "" {
		c.Recorder.Path = "data/predictions.db"
	}
	if c.Scheduler.Horizon == 0 {
		c.Scheduler.Horizon = c.Prediction.DefaultHorizon
	}
	if c.Scheduler.JobTimeout == 0 {
		c.Scheduler.JobTimeout = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Prediction.DefaultHorizon < 1 || c.Prediction.DefaultHorizon > 30 {
		return fmt.Errorf("prediction.default_horizon must be between 1 and 30, got %d", c.Prediction.DefaultHorizon)
	}
	if c.Models.Forest.Trees < 1 {
		return fmt.Errorf("models.forest.trees must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
