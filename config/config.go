package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Cleaning CleaningConfig
	Features FeaturesConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Log      LogConfig
	Schedule ScheduleConfig
	Pipeline PipelineConfig
}

// ServerConfig holds read API configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds Open Food Facts search configuration
type CatalogConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	SearchTerm   string        `mapstructure:"search_term"`
	PageSize     int           `mapstructure:"page_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	TargetCount  int           `mapstructure:"target_count"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// CleaningConfig holds completeness and outlier thresholds
type CleaningConfig struct {
	MinCompleteness  float64  `mapstructure:"min_completeness"`
	IQRMultiplier    float64  `mapstructure:"iqr_multiplier"`
	OutlierColumns   []string `mapstructure:"outlier_columns"`
	DropUnidentified bool     `mapstructure:"drop_unidentified"`
}

// FeaturesConfig holds category cut points
type FeaturesConfig struct {
	CalorieLow      float64 `mapstructure:"calorie_low"`
	CalorieHigh     float64 `mapstructure:"calorie_high"`
	SugarLow        float64 `mapstructure:"sugar_low"`
	SugarHigh       float64 `mapstructure:"sugar_high"`
	BrandMajorOver  int     `mapstructure:"brand_major_over"`
	BrandMediumOver int     `mapstructure:"brand_medium_over"`
	BrandNormalize  bool    `mapstructure:"brand_normalize"`
}

// StorageConfig holds snapshot and relational store locations
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
	Driver  string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN     string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// ScheduleConfig holds the optional cron schedule for pipeline runs
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// PipelineConfig holds pipeline runner behaviour
type PipelineConfig struct {
	SkipExisting bool `mapstructure:"skip_existing"`
}

// Load loads configuration from .env, environment variables and config files.
// An explicit path overrides the config file search.
func Load(path ...string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if len(path) > 0 && path[0] != "" {
		v.SetConfigFile(path[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/chococrunch/")
	}

	v.SetEnvPrefix("CHOCOCRUNCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present.
// Variables already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501"})

	v.SetDefault("catalog.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("catalog.search_term", "chocolate")
	v.SetDefault("catalog.page_size", 100)
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.request_delay", "1s")
	v.SetDefault("catalog.target_count", 12000)
	v.SetDefault("catalog.user_agent", "ChocoCrunch/1.0")

	v.SetDefault("cleaning.min_completeness", 0.70)
	v.SetDefault("cleaning.iqr_multiplier", 1.5)
	v.SetDefault("cleaning.outlier_columns", []string{"energy_kcal_value", "sugars_value", "fat_value"})
	v.SetDefault("cleaning.drop_unidentified", true)

	v.SetDefault("features.calorie_low", 250.0)
	v.SetDefault("features.calorie_high", 500.0)
	v.SetDefault("features.sugar_low", 10.0)
	v.SetDefault("features.sugar_high", 25.0)
	v.SetDefault("features.brand_major_over", 50)
	v.SetDefault("features.brand_medium_over", 10)
	v.SetDefault("features.brand_normalize", false)

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("schedule.cron", "")

	v.SetDefault("pipeline.skip_existing", false)
}

func validate(config *Config) error {
	if config.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required (set CHOCOCRUNCH_CATALOG_BASE_URL)")
	}

	if config.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog page size must be positive, got: %d", config.Catalog.PageSize)
	}

	if config.Catalog.TargetCount <= 0 {
		return fmt.Errorf("catalog target count must be positive, got: %d", config.Catalog.TargetCount)
	}

	if config.Cleaning.MinCompleteness <= 0 || config.Cleaning.MinCompleteness > 1 {
		return fmt.Errorf("cleaning min completeness must be in (0, 1], got: %v", config.Cleaning.MinCompleteness)
	}

	if config.Features.CalorieLow > config.Features.CalorieHigh {
		return fmt.Errorf("calorie thresholds out of order: %v > %v", config.Features.CalorieLow, config.Features.CalorieHigh)
	}

	if config.Features.SugarLow > config.Features.SugarHigh {
		return fmt.Errorf("sugar thresholds out of order: %v > %v", config.Features.SugarLow, config.Features.SugarHigh)
	}

	if config.Features.BrandMediumOver > config.Features.BrandMajorOver {
		return fmt.Errorf("brand size thresholds out of order: %d > %d", config.Features.BrandMediumOver, config.Features.BrandMajorOver)
	}

	if config.Storage.Driver != "sqlite" && config.Storage.Driver != "postgres" {
		return fmt.Errorf("storage driver must be 'sqlite' or 'postgres', got: %s", config.Storage.Driver)
	}

	if config.Storage.Driver == "postgres" && config.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required when driver is 'postgres'")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	return nil
}
