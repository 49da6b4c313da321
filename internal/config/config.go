package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Collection CollectionConfig `mapstructure:"collection"`
	Quality    QualityConfig    `mapstructure:"quality"`
	Imaging    ImagingConfig    `mapstructure:"imaging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SourcesConfig struct {
	Unsplash SourceConfig  `mapstructure:"unsplash"`
	Pexels   SourceConfig  `mapstructure:"pexels"`
	Pixabay  SourceConfig  `mapstructure:"pixabay"`
	Retry    RetryConfig   `mapstructure:"retry"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

type SourceConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	HourlyQuota int           `mapstructure:"hourly_quota"`
	Priority    int           `mapstructure:"priority"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
}

type RateLimitConfig struct {
	Backend           string        `mapstructure:"backend"` // memory, redis
	EvenDistribution  bool          `mapstructure:"even_distribution"`
	DistributionSlice time.Duration `mapstructure:"distribution_slice"`
	Block             bool          `mapstructure:"block"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
	Window            time.Duration `mapstructure:"window"`
}

type CollectionConfig struct {
	MinQualityThreshold   float64       `mapstructure:"min_quality_threshold"`
	AutoApprovalThreshold float64       `mapstructure:"auto_approval_threshold"`
	TargetImagesPerItem   int           `mapstructure:"target_images_per_item"`
	MaxSearchAttempts     int           `mapstructure:"max_search_attempts"`
	RetryIntervalHours    float64       `mapstructure:"retry_interval_hours"`
	MaxResultsPerSource   int           `mapstructure:"max_results_per_source"`
	MaxTotalResults       int           `mapstructure:"max_total_results"`
	SearchTimeout         time.Duration `mapstructure:"search_timeout"`
	SchedulerSpec         string        `mapstructure:"scheduler_spec"`
	SchedulerBatchSize    int           `mapstructure:"scheduler_batch_size"`
}

type QualityConfig struct {
	MinWidth            int     `mapstructure:"min_width"`
	MinHeight           int     `mapstructure:"min_height"`
	HighResWidth        int     `mapstructure:"high_res_width"`
	MinFileBytes        int64   `mapstructure:"min_file_bytes"`
	MaxFileBytes        int64   `mapstructure:"max_file_bytes"`
	AspectTolerance     float64 `mapstructure:"aspect_tolerance"`
	MinBrightness       float64 `mapstructure:"min_brightness"`
	MaxBrightness       float64 `mapstructure:"max_brightness"`
	MinContrast         float64 `mapstructure:"min_contrast"`
	MinColorfulness     float64 `mapstructure:"min_colorfulness"`
	MaxSaturation       float64 `mapstructure:"max_saturation"`
	RequiredSaturation  float64 `mapstructure:"required_saturation"`
	RequiredClarity     float64 `mapstructure:"required_clarity"`
	MaxBackgroundDetail float64 `mapstructure:"max_background_detail"`
	MinDisplayDimension int     `mapstructure:"min_display_dimension"`
}

type ImagingConfig struct {
	MinWidth      int             `mapstructure:"min_width"`
	MinHeight     int             `mapstructure:"min_height"`
	MaxBytes      int64           `mapstructure:"max_bytes"`
	MaxPixels     int64           `mapstructure:"max_pixels"`
	OutputFormat  string          `mapstructure:"output_format"` // jpeg, png
	OutputQuality int             `mapstructure:"output_quality"`
	Variants      []VariantConfig `mapstructure:"variants"`
}

type VariantConfig struct {
	Name    string `mapstructure:"name"`
	MaxSide int    `mapstructure:"max_side"`
}

type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // filesystem, s3
	RootDir         string `mapstructure:"root_dir"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	Migrate         bool   `mapstructure:"migrate"`
}

type StrategiesConfig struct {
	Dir string `mapstructure:"dir"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")
	viper.SetDefault("redis.progress_ttl", "1h")

	viper.SetDefault("kafka.topic", "image-collection-events")

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.issuer", "vocabimg")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Source defaults (documented provider quotas and page-size caps)
	viper.SetDefault("sources.unsplash.enabled", true)
	viper.SetDefault("sources.unsplash.api_key", "")
	viper.SetDefault("sources.unsplash.base_url", "https://api.unsplash.com")
	viper.SetDefault("sources.unsplash.hourly_quota", 50)
	viper.SetDefault("sources.unsplash.priority", 1)
	viper.SetDefault("sources.unsplash.timeout", "15s")
	viper.SetDefault("sources.pexels.enabled", true)
	viper.SetDefault("sources.pexels.api_key", "")
	viper.SetDefault("sources.pexels.base_url", "https://api.pexels.com/v1")
	viper.SetDefault("sources.pexels.hourly_quota", 200)
	viper.SetDefault("sources.pexels.priority", 2)
	viper.SetDefault("sources.pexels.timeout", "15s")
	viper.SetDefault("sources.pixabay.enabled", true)
	viper.SetDefault("sources.pixabay.api_key", "")
	viper.SetDefault("sources.pixabay.base_url", "https://pixabay.com/api")
	viper.SetDefault("sources.pixabay.hourly_quota", 5000)
	viper.SetDefault("sources.pixabay.priority", 3)
	viper.SetDefault("sources.pixabay.timeout", "15s")
	viper.SetDefault("sources.retry.max_attempts", 3)
	viper.SetDefault("sources.retry.initial_interval", "500ms")
	viper.SetDefault("sources.retry.max_interval", "5s")
	viper.SetDefault("sources.breaker.consecutive_failures", 5)
	viper.SetDefault("sources.breaker.open_timeout", "2m")

	// Rate limit defaults
	viper.SetDefault("rate_limit.backend", "memory")
	viper.SetDefault("rate_limit.even_distribution", true)
	viper.SetDefault("rate_limit.distribution_slice", "5m")
	viper.SetDefault("rate_limit.block", true)
	viper.SetDefault("rate_limit.max_wait", "10s")
	viper.SetDefault("rate_limit.window", "1h")

	// Collection defaults
	viper.SetDefault("collection.min_quality_threshold", 6.0)
	viper.SetDefault("collection.auto_approval_threshold", 8.5)
	viper.SetDefault("collection.target_images_per_item", 3)
	viper.SetDefault("collection.max_search_attempts", 3)
	viper.SetDefault("collection.retry_interval_hours", 24)
	viper.SetDefault("collection.max_results_per_source", 10)
	viper.SetDefault("collection.max_total_results", 30)
	viper.SetDefault("collection.search_timeout", "20s")
	viper.SetDefault("collection.scheduler_spec", "@every 30m")
	viper.SetDefault("collection.scheduler_batch_size", 25)

	// Quality defaults
	viper.SetDefault("quality.min_width", 400)
	viper.SetDefault("quality.min_height", 400)
	viper.SetDefault("quality.high_res_width", 1920)
	viper.SetDefault("quality.min_file_bytes", 10*1024)
	viper.SetDefault("quality.max_file_bytes", 5*1024*1024)
	viper.SetDefault("quality.aspect_tolerance", 0.5)
	viper.SetDefault("quality.min_brightness", 0.2)
	viper.SetDefault("quality.max_brightness", 0.85)
	viper.SetDefault("quality.min_contrast", 0.15)
	viper.SetDefault("quality.min_colorfulness", 0.2)
	viper.SetDefault("quality.max_saturation", 0.9)
	viper.SetDefault("quality.required_saturation", 0.4)
	viper.SetDefault("quality.required_clarity", 0.5)
	viper.SetDefault("quality.max_background_detail", 0.35)
	viper.SetDefault("quality.min_display_dimension", 800)

	// Imaging defaults
	viper.SetDefault("imaging.min_width", 100)
	viper.SetDefault("imaging.min_height", 100)
	viper.SetDefault("imaging.max_bytes", 10*1024*1024)
	viper.SetDefault("imaging.max_pixels", 40_000_000)
	viper.SetDefault("imaging.output_format", "jpeg")
	viper.SetDefault("imaging.output_quality", 85)

	// Storage defaults
	viper.SetDefault("storage.backend", "filesystem")
	viper.SetDefault("storage.root_dir", "./data/images")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.migrate", true)

	viper.SetDefault("strategies.dir", "./config/strategies")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}

// DefaultVariants is used when imaging.variants is not configured.
func DefaultVariants() []VariantConfig {
	return []VariantConfig{
		{Name: "thumbnail", MaxSide: 150},
		{Name: "small", MaxSide: 400},
		{Name: "medium", MaxSide: 800},
		{Name: "large", MaxSide: 1600},
	}
}
