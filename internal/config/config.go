package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/naqeebali-shamsi/intellifill/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Mapper    MapperConfig    `yaml:"mapper" mapstructure:"mapper"`
	Templates TemplatesConfig `yaml:"templates" mapstructure:"templates"`
	Profile   ProfileConfig   `yaml:"profile" mapstructure:"profile"`
	Reprocess ReprocessConfig `yaml:"reprocess" mapstructure:"reprocess"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ExtractConfig configures the field extractor.
type ExtractConfig struct {
	// NeutralConfidence is assigned when neither token scores nor a
	// per-pattern default are available.
	NeutralConfidence float64 `yaml:"neutral_confidence" mapstructure:"neutral_confidence"`
	// PatternsPath optionally points to a YAML pattern library that
	// replaces the built-in one.
	PatternsPath string `yaml:"patterns_path" mapstructure:"patterns_path"`
}

// MapperConfig configures the field mapper.
type MapperConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MinConfidence  float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	SynonymsPath   string  `yaml:"synonyms_path" mapstructure:"synonyms_path"`
}

// TemplatesConfig configures template matching and form-type detection.
type TemplatesConfig struct {
	MinSimilarity  float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	FormTypesPath  string  `yaml:"form_types_path" mapstructure:"form_types_path"`
}

// ProfileConfig configures the profile cache.
type ProfileConfig struct {
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// ReprocessConfig configures the reprocessing policy and dispatch.
type ReprocessConfig struct {
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxBatchSize  int     `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	DispatchRate  float64 `yaml:"dispatch_rate" mapstructure:"dispatch_rate"`
	DispatchBurst int     `yaml:"dispatch_burst" mapstructure:"dispatch_burst"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("INTELLIFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intellifill.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("extract.neutral_confidence", 0.75)
	v.SetDefault("mapper.fuzzy_threshold", 0.8)
	v.SetDefault("mapper.min_confidence", 0.5)
	v.SetDefault("templates.min_similarity", 0.1)
	v.SetDefault("templates.fuzzy_threshold", 0.8)
	v.SetDefault("profile.cache_ttl_minutes", 60)
	v.SetDefault("reprocess.max_attempts", 3)
	v.SetDefault("reprocess.max_batch_size", 50)
	v.SetDefault("reprocess.dispatch_rate", 10)
	v.SetDefault("reprocess.dispatch_burst", 5)
	v.SetDefault("reprocess.concurrency", 8)

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
