// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Dedup    DedupConfig    `yaml:"dedup" mapstructure:"dedup"`
	Predict  PredictConfig  `yaml:"predict" mapstructure:"predict"`
	Verify   VerifyConfig   `yaml:"verify" mapstructure:"verify"`
	Accuracy AccuracyConfig `yaml:"accuracy" mapstructure:"accuracy"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// DedupConfig tunes sale-window clustering.
type DedupConfig struct {
	ProximityDays     int     `yaml:"proximity_days" mapstructure:"proximity_days"`
	DiscountTolerance float64 `yaml:"discount_tolerance" mapstructure:"discount_tolerance"`
}

// PredictConfig tunes prediction generation. The confidence weights are
// undocumented heuristics carried over from production; they are config
// parameters so behavior can be revised without a code change.
type PredictConfig struct {
	BaseConfidence     float64 `yaml:"base_confidence" mapstructure:"base_confidence"`
	HolidayBonus       float64 `yaml:"holiday_bonus" mapstructure:"holiday_bonus"`
	PerYearBonus       float64 `yaml:"per_year_bonus" mapstructure:"per_year_bonus"`
	MaxHistoryBonus    float64 `yaml:"max_history_bonus" mapstructure:"max_history_bonus"`
	DiscountMatchBonus float64 `yaml:"discount_match_bonus" mapstructure:"discount_match_bonus"`
	MinConfidence      float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	SimilarDayWindow   int     `yaml:"similar_day_window" mapstructure:"similar_day_window"`
	AnchorMaxDays      int     `yaml:"anchor_max_days" mapstructure:"anchor_max_days"`
}

// VerifyConfig tunes outcome classification tolerances.
type VerifyConfig struct {
	TimingToleranceDays      int     `yaml:"timing_tolerance_days" mapstructure:"timing_tolerance_days"`
	DiscountTolerancePercent float64 `yaml:"discount_tolerance_percent" mapstructure:"discount_tolerance_percent"`
}

// AccuracyConfig tunes stats recomputation and drift detection.
type AccuracyConfig struct {
	MinOutcomes           int     `yaml:"min_outcomes" mapstructure:"min_outcomes"`
	DropThreshold         float64 `yaml:"drop_threshold" mapstructure:"drop_threshold"`
	TimingDriftWindow     int     `yaml:"timing_drift_window" mapstructure:"timing_drift_window"`
	TimingDriftMinSamples int     `yaml:"timing_drift_min_samples" mapstructure:"timing_drift_min_samples"`
	TimingDriftDays       float64 `yaml:"timing_drift_days" mapstructure:"timing_drift_days"`
}

// PipelineConfig configures batch orchestration.
type PipelineConfig struct {
	MaxConcurrentBrands int `yaml:"max_concurrent_brands" mapstructure:"max_concurrent_brands"`
}

// ServerConfig configures the API server.
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
	v.SetEnvPrefix("SALEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.max_concurrent_brands", 5)
	v.SetDefault("dedup.proximity_days", 3)
	v.SetDefault("dedup.discount_tolerance", 5.0)
	v.SetDefault("predict.base_confidence", 0.5)
	v.SetDefault("predict.holiday_bonus", 0.15)
	v.SetDefault("predict.per_year_bonus", 0.10)
	v.SetDefault("predict.max_history_bonus", 0.25)
	v.SetDefault("predict.discount_match_bonus", 0.10)
	v.SetDefault("predict.min_confidence", 0.6)
	v.SetDefault("predict.similar_day_window", 14)
	v.SetDefault("predict.anchor_max_days", 7)
	v.SetDefault("verify.timing_tolerance_days", 7)
	v.SetDefault("verify.discount_tolerance_percent", 10.0)
	v.SetDefault("accuracy.min_outcomes", 3)
	v.SetDefault("accuracy.drop_threshold", 0.15)
	v.SetDefault("accuracy.timing_drift_window", 10)
	v.SetDefault("accuracy.timing_drift_min_samples", 5)
	v.SetDefault("accuracy.timing_drift_days", 3.0)

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

// Validate checks settings required to open the store.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	if c.Predict.MinConfidence < 0 || c.Predict.MinConfidence > 1 {
		return eris.Errorf("config: predict.min_confidence must be in [0,1] (got %v)", c.Predict.MinConfidence)
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
