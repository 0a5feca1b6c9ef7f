package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the queue broker connection configuration
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// WorkerConfig holds queue worker configuration
type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	MaxRetries      int           `mapstructure:"max_retries"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	PromoteInterval time.Duration `mapstructure:"promote_interval"`
}

// IngestionConfig holds pipeline configuration
type IngestionConfig struct {
	// Chains limits ingestion to these chain slugs; empty means all.
	Chains []string `mapstructure:"chains"`
	// ChunkSize is the row count above which a parsed entry is chunked.
	ChunkSize int `mapstructure:"chunk_size"`
	// SampleDataDir, when set, makes adapters read file:// fixtures instead
	// of hitting chain portals.
	SampleDataDir string `mapstructure:"sample_data_dir"`
}

// RateLimitConfig holds per-chain HTTP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	MaxRetries        int `mapstructure:"max_retries"`
	InitialBackoffMs  int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `mapstructure:"max_backoff_ms"`
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"` // 'local' or 's3'
	BasePath string `mapstructure:"base_path"`

	// S3 settings, used when Type is 's3'.
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	loadEnvFile()

	v.AutomaticEnv()
	v.SetEnvPrefix("KOSARICA")
	bindEnvVars(v)

	// Config file is optional; env vars and defaults carry a bare deployment.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if chains := v.GetString("ingestion.chains_csv"); chains != "" {
		cfg.Ingestion.Chains = splitChains(chains)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadEnvFile loads the first .env file found near the working directory.
func loadEnvFile() {
	for _, path := range []string{".env", "config/.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg(".env file not loaded")
			}
			return
		}
	}
}

func splitChains(csv string) []string {
	parts := strings.Split(csv, ",")
	chains := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chains = append(chains, strings.ToLower(p))
		}
	}
	return chains
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")

	v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	v.BindEnv("worker.max_retries", "MAX_RETRIES")

	v.BindEnv("ingestion.chains_csv", "INGESTION_CHAINS")
	v.BindEnv("ingestion.chunk_size", "INGESTION_CHUNK_SIZE")
	v.BindEnv("ingestion.sample_data_dir", "SAMPLE_DATA_DIR")

	v.BindEnv("logging.level", "LOG_LEVEL")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.base_path", "STORAGE_PATH")
	v.BindEnv("storage.s3_endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3_region", "S3_REGION")
	v.BindEnv("storage.s3_bucket", "S3_BUCKET")
	v.BindEnv("storage.s3_access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.s3_secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.s3_use_ssl", "S3_USE_SSL")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.poll_timeout", 5*time.Second)
	v.SetDefault("worker.promote_interval", 15*time.Second)

	v.SetDefault("ingestion.chunk_size", 5000)

	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.max_retries", 3)
	v.SetDefault("rate_limit.initial_backoff_ms", 100)
	v.SetDefault("rate_limit.max_backoff_ms", 30000)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/archives")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

// GetRedisURL returns the queue broker URL from config or environment
func GetRedisURL() string {
	if cfg := Get(); cfg != nil && cfg.Redis.URL != "" {
		return cfg.Redis.URL
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379/0"
}
