// Package config loads waterwatch configuration from config.yaml and the
// WATERWATCH_* environment, and initializes the global zap logger.
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
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Signals SignalsConfig `yaml:"signals" mapstructure:"signals"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	ShutdownTimeout int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the cache snapshot backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig configures the upstream adapter layer.
type SourcesConfig struct {
	RealtimeTimeoutSecs int     `yaml:"realtime_timeout_secs" mapstructure:"realtime_timeout_secs"`
	BulkTimeoutSecs     int     `yaml:"bulk_timeout_secs" mapstructure:"bulk_timeout_secs"`
	EPARatePerSec       float64 `yaml:"epa_rate_per_sec" mapstructure:"epa_rate_per_sec"`
	MaxConcurrent       int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SearchRadiusKM      float64 `yaml:"search_radius_km" mapstructure:"search_radius_km"`
	SampleWindowDays    int     `yaml:"sample_window_days" mapstructure:"sample_window_days"`
}

// RealtimeTimeout returns the per-call timeout for sensor feeds.
func (s SourcesConfig) RealtimeTimeout() time.Duration {
	return time.Duration(s.RealtimeTimeoutSecs) * time.Second
}

// BulkTimeout returns the per-call timeout for slow bulk endpoints.
func (s SourcesConfig) BulkTimeout() time.Duration {
	return time.Duration(s.BulkTimeoutSecs) * time.Second
}

// CacheConfig configures background cache builds.
type CacheConfig struct {
	BuildConcurrency int `yaml:"build_concurrency" mapstructure:"build_concurrency"`
	AttainsTTLDays   int `yaml:"attains_ttl_days" mapstructure:"attains_ttl_days"`
	SDWISTTLDays     int `yaml:"sdwis_ttl_days" mapstructure:"sdwis_ttl_days"`
	WWTPTTLDays      int `yaml:"wwtp_ttl_days" mapstructure:"wwtp_ttl_days"`
}

// ScoringConfig configures the composite scorer.
type ScoringConfig struct {
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
}

// SignalsConfig configures anomaly detection thresholds.
type SignalsConfig struct {
	OxygenFloorMgL      float64 `yaml:"oxygen_floor_mgl" mapstructure:"oxygen_floor_mgl"`
	OxygenDropPct       float64 `yaml:"oxygen_drop_pct" mapstructure:"oxygen_drop_pct"`
	ConductivityRisePct float64 `yaml:"conductivity_rise_pct" mapstructure:"conductivity_rise_pct"`
	TurbidityFloorNTU   float64 `yaml:"turbidity_floor_ntu" mapstructure:"turbidity_floor_ntu"`
	TurbiditySurgePct   float64 `yaml:"turbidity_surge_pct" mapstructure:"turbidity_surge_pct"`
	OxygenStressMgL     float64 `yaml:"oxygen_stress_mgl" mapstructure:"oxygen_stress_mgl"`
	ThermalStressC      float64 `yaml:"thermal_stress_c" mapstructure:"thermal_stress_c"`
	TurbidityStandalone float64 `yaml:"turbidity_standalone_ntu" mapstructure:"turbidity_standalone_ntu"`
	DefaultLimit        int     `yaml:"default_limit" mapstructure:"default_limit"`
}

// GeocodeConfig configures the Census geocoder collaborator.
type GeocodeConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WATERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "waterwatch-cache.db")
	v.SetDefault("sources.realtime_timeout_secs", 15)
	v.SetDefault("sources.bulk_timeout_secs", 120)
	v.SetDefault("sources.epa_rate_per_sec", 1.0)
	v.SetDefault("sources.max_concurrent", 16)
	v.SetDefault("sources.search_radius_km", 10.0)
	v.SetDefault("sources.sample_window_days", 90)
	v.SetDefault("cache.build_concurrency", 4)
	v.SetDefault("cache.attains_ttl_days", 30)
	v.SetDefault("cache.sdwis_ttl_days", 7)
	v.SetDefault("cache.wwtp_ttl_days", 30)
	v.SetDefault("scoring.low_confidence_threshold", 50.0)
	v.SetDefault("signals.oxygen_floor_mgl", 4.0)
	v.SetDefault("signals.oxygen_drop_pct", 30.0)
	v.SetDefault("signals.conductivity_rise_pct", 30.0)
	v.SetDefault("signals.turbidity_floor_ntu", 50.0)
	v.SetDefault("signals.turbidity_surge_pct", 100.0)
	v.SetDefault("signals.oxygen_stress_mgl", 5.0)
	v.SetDefault("signals.thermal_stress_c", 30.0)
	v.SetDefault("signals.turbidity_standalone_ntu", 100.0)
	v.SetDefault("signals.default_limit", 25)
	v.SetDefault("geocode.rate_per_sec", 10.0)

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
