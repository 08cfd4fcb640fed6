// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Blobstore  BlobstoreConfig  `yaml:"blobstore" mapstructure:"blobstore"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Reaper     ReaperConfig     `yaml:"reaper" mapstructure:"reaper"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BlobstoreConfig configures source file storage.
type BlobstoreConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// AnthropicConfig holds Anthropic API settings for the extraction adapter.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ImportConfig configures the import pipeline: lease queue, worker loop,
// retry policy, and duplicate detection thresholds.
type ImportConfig struct {
	LeaseSecs        int     `yaml:"lease_secs" mapstructure:"lease_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RequeueDelaySecs int     `yaml:"requeue_delay_secs" mapstructure:"requeue_delay_secs"`
	LowConfidence    int     `yaml:"low_confidence" mapstructure:"low_confidence"`
	ReviewThreshold  float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	CandidateFloor   float64 `yaml:"candidate_floor" mapstructure:"candidate_floor"`
	MaxCandidates    int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	PollIntervalSecs int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxPollDelaySecs int     `yaml:"max_poll_delay_secs" mapstructure:"max_poll_delay_secs"`
}

// Lease returns the lease duration.
func (c ImportConfig) Lease() time.Duration { return time.Duration(c.LeaseSecs) * time.Second }

// RequeueDelay returns the base availability backoff for retried runs.
func (c ImportConfig) RequeueDelay() time.Duration {
	return time.Duration(c.RequeueDelaySecs) * time.Second
}

// PollInterval returns the worker's base poll delay.
func (c ImportConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// MaxPollDelay returns the worker's poll backoff cap.
func (c ImportConfig) MaxPollDelay() time.Duration {
	return time.Duration(c.MaxPollDelaySecs) * time.Second
}

// ReaperConfig configures the maintenance sweep.
type ReaperConfig struct {
	IntervalSecs   int `yaml:"interval_secs" mapstructure:"interval_secs"`
	RetentionHours int `yaml:"retention_hours" mapstructure:"retention_hours"`
}

// Interval returns the sweep period.
func (c ReaperConfig) Interval() time.Duration { return time.Duration(c.IntervalSecs) * time.Second }

// Retention returns how long terminal runs keep their source files.
func (c ReaperConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// MonitoringConfig configures health checks and webhook alerts.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewBacklogThreshold int     `yaml:"review_backlog_threshold" mapstructure:"review_backlog_threshold"`
	LookbackHours          int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// CheckInterval returns the period between background alert checks.
func (c MonitoringConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WASTESTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("blobstore.root", "./blobs")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("import.lease_secs", 300)
	v.SetDefault("import.max_attempts", 3)
	v.SetDefault("import.requeue_delay_secs", 60)
	v.SetDefault("import.low_confidence", 70)
	v.SetDefault("import.review_threshold", 0.85)
	v.SetDefault("import.candidate_floor", 0.55)
	v.SetDefault("import.max_candidates", 5)
	v.SetDefault("import.workers", 2)
	v.SetDefault("import.poll_interval_secs", 2)
	v.SetDefault("import.max_poll_delay_secs", 30)
	v.SetDefault("reaper.interval_secs", 60)
	v.SetDefault("reaper.retention_hours", 720)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.review_backlog_threshold", 500)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present. mode is the
// command family: "db" for anything touching the database, "worker" for the
// full pipeline.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "db":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required")
		}
	case "worker":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required")
		}
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required")
		}
		if c.Blobstore.Root == "" {
			return eris.New("config: blobstore.root is required")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if c.Import.ReviewThreshold < c.Import.CandidateFloor {
		return eris.New("config: import.review_threshold must be >= import.candidate_floor")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
