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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	MaxHelper MaxHelperConfig `yaml:"maxhelper" mapstructure:"maxhelper"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Sheet     SheetConfig     `yaml:"sheet" mapstructure:"sheet"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the object store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // fs, sqlite, postgres
	Root        string `yaml:"root" mapstructure:"root"`     // fs root directory
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MaxHelperConfig holds messaging platform API settings.
type MaxHelperConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// RetryDelayMs is the fixed pause before the single retry on a
	// rate-limited or server-error response.
	RetryDelayMs int `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`

	CircuitFailureThreshold int `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetTimeoutSecs int `yaml:"circuit_reset_timeout_secs" mapstructure:"circuit_reset_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for the analysis step.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SheetConfig configures the applicants tracking table.
type SheetConfig struct {
	Path      string `yaml:"path" mapstructure:"path"` // workbook file path
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// IngestConfig configures batch ingestion.
type IngestConfig struct {
	BatchLimit int `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// WorkerConfig configures the worker loop.
type WorkerConfig struct {
	MaxAttempts   int `yaml:"max_attempts" mapstructure:"max_attempts"`
	ClaimLimit    int `yaml:"claim_limit" mapstructure:"claim_limit"`
	PollSleepSecs int `yaml:"poll_sleep_secs" mapstructure:"poll_sleep_secs"`
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
}

// PollSleep returns the empty-queue poll interval.
func (w WorkerConfig) PollSleep() time.Duration {
	return time.Duration(w.PollSleepSecs) * time.Second
}

// RateLimitConfig configures the outbound token bucket.
type RateLimitConfig struct {
	RatePerMin float64 `yaml:"rate_per_min" mapstructure:"rate_per_min"`
	Capacity   int     `yaml:"capacity" mapstructure:"capacity"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "fs")
	v.SetDefault("store.root", "./data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("maxhelper.base_url", "")
	v.SetDefault("maxhelper.api_key", "")
	v.SetDefault("maxhelper.timeout_secs", 30)
	v.SetDefault("maxhelper.retry_delay_ms", 1500)
	v.SetDefault("maxhelper.circuit_failure_threshold", 5)
	v.SetDefault("maxhelper.circuit_reset_timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("sheet.path", "./data/applicants.xlsx")
	v.SetDefault("sheet.sheet_name", "Applicants")
	v.SetDefault("ingest.batch_limit", 10)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.claim_limit", 10)
	v.SetDefault("worker.poll_sleep_secs", 2)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("ratelimit.rate_per_min", 100)
	v.SetDefault("ratelimit.capacity", 100)

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
