// Package config loads application configuration from file, environment,
// and defaults, and initializes the global logger.
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
	Frame  FrameConfig  `yaml:"frame" mapstructure:"frame"`
	Sample SampleConfig `yaml:"sample" mapstructure:"sample"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FrameConfig configures the frame builder.
type FrameConfig struct {
	Input            string `yaml:"input" mapstructure:"input"`
	Output           string `yaml:"output" mapstructure:"output"`
	DuplicatesOutput string `yaml:"duplicates_output" mapstructure:"duplicates_output"`
	Period           string `yaml:"period" mapstructure:"period"`
	MinOutlets       int    `yaml:"min_outlets" mapstructure:"min_outlets"`
	SheetName        string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// SampleConfig configures the sampler.
type SampleConfig struct {
	Size     int            `yaml:"size" mapstructure:"size"`
	Seed     int64          `yaml:"seed" mapstructure:"seed"`
	Output   string         `yaml:"output" mapstructure:"output"`
	Manifest string         `yaml:"manifest" mapstructure:"manifest"`
	Rotation RotationConfig `yaml:"rotation" mapstructure:"rotation"`
}

// RotationConfig controls overlap with the previous period's sample.
type RotationConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MaxPeriods int  `yaml:"max_periods" mapstructure:"max_periods"`
}

// FetchConfig configures input file retrieval.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	FTPUser     string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
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
	v.SetEnvPrefix("SAMPLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("frame.input", "SampleFrame.xlsx")
	v.SetDefault("frame.output", "sampling_frame.xlsx")
	v.SetDefault("frame.duplicates_output", "duplicate_links.xlsx")
	v.SetDefault("frame.min_outlets", 250)
	v.SetDefault("sample.size", 5)
	v.SetDefault("sample.output", "replacement_locations.xlsx")
	v.SetDefault("sample.manifest", "draw_manifest.yaml")
	v.SetDefault("sample.rotation.enabled", true)
	v.SetDefault("sample.rotation.max_periods", 3)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.burst", 5)
	v.SetDefault("fetch.user_agent", "sampling-cli/1.0")
	v.SetDefault("fetch.ftp_user", "anonymous")
	v.SetDefault("fetch.ftp_password", "anonymous@")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "sampling.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
