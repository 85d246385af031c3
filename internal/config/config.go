// Package config loads and validates analyzer configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int     `mapstructure:"port"`
	MaxBodyBytes    int64   `mapstructure:"max_body_bytes"`
	RequestTimeoutS int     `mapstructure:"request_timeout_seconds"`
	RateLimitRPS    float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AnalysisConfig governs the scan pipeline and its heuristics.
type AnalysisConfig struct {
	Workers        int      `mapstructure:"workers"`
	QueueDepth     int      `mapstructure:"queue_depth"`
	BotSampleCap   int      `mapstructure:"bot_sample_cap"`
	URLSampleCap   int      `mapstructure:"url_sample_cap"`
	ErrorSampleCap int      `mapstructure:"error_sample_cap"`
	SampleChars    int      `mapstructure:"sample_chars"`
	ProgressEvery  int      `mapstructure:"progress_every"`
	MaxUABytes     int      `mapstructure:"max_ua_bytes"`
	RTMinMs        float64  `mapstructure:"rt_min_ms"`
	RTMaxMs        float64  `mapstructure:"rt_max_ms"`
	VerifyPrefixes []string `mapstructure:"verify_ip_prefixes"`
	VerifySuffixes []string `mapstructure:"verify_rdns_suffixes"`
}

// DBConfig selects and configures the run store backend.
type DBConfig struct {
	Backend      string `mapstructure:"backend"`
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinOpenConns int    `mapstructure:"min_open_conns"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig selects the report archive backend.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features and the level floor.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 64<<20)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("analysis.workers", 2)
	v.SetDefault("analysis.queue_depth", 64)
	v.SetDefault("analysis.bot_sample_cap", 3)
	v.SetDefault("analysis.url_sample_cap", 2)
	v.SetDefault("analysis.error_sample_cap", 3)
	v.SetDefault("analysis.sample_chars", 200)
	v.SetDefault("analysis.progress_every", 100)
	v.SetDefault("analysis.max_ua_bytes", 100)
	v.SetDefault("analysis.rt_min_ms", 0)
	v.SetDefault("analysis.rt_max_ms", 100000)
	v.SetDefault("db.backend", "memory")
	v.SetDefault("db.table", "analysis_runs")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be > 0")
	}
	if c.Analysis.QueueDepth <= 0 {
		return fmt.Errorf("analysis.queue_depth must be > 0")
	}
	if c.Analysis.RTMaxMs <= c.Analysis.RTMinMs {
		return fmt.Errorf("analysis.rt_max_ms must be greater than analysis.rt_min_ms")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("db.backend must be memory or postgres")
	}
	switch c.Archive.Backend {
	case "none", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be none, memory, or gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}
