// ============================================================================
// backend/internal/shared/config.go
// Service configuration, .env loading and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds configuration for the grading binaries
type ServiceConfig struct {
	ServiceName string `yaml:"service_name"`
	HTTPPort    string `yaml:"http_port"`
	GRPCPort    string `yaml:"grpc_port"` // health + reflection only
	Environment string `yaml:"environment"` // development, staging, production
	LogLevel    string `yaml:"log_level"`   // debug, info, warn, error
	LogFormat   string `yaml:"log_format"`  // json, console

	MongoDB   MongoConfig     `yaml:"mongodb"`
	Redis     RedisConfig     `yaml:"redis"`
	Security  SecurityConfig  `yaml:"security"`
	CORS      CORSConfig      `yaml:"cors"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Worker    WorkerConfig    `yaml:"worker"`
}

// RedisConfig holds the ranking job queue connection
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	RankQueue string `yaml:"rank_queue"`
	DLQSuffix string `yaml:"dlq_suffix"`
}

// SecurityConfig holds the identity token secret
type SecurityConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"` // in seconds
}

// SchedulerConfig holds cron specs for periodic catalog maintenance
type SchedulerConfig struct {
	StatusRefreshSpec string `yaml:"status_refresh_spec"`
}

// RankingConfig bounds the fan-out of ranking persistence
type RankingConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// WorkerConfig sizes the rank-worker pool
type WorkerConfig struct {
	Count int `yaml:"count"`
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Str("file", envFile).Msg("env file not found, using system environment variables")
		return err
	}

	log.Info().Str("file", envFile).Msg("loaded environment")
	return nil
}

// LoadServiceConfig builds configuration from defaults, the optional YAML file
// named by CONFIG_PATH, and finally the environment.
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	config := &ServiceConfig{
		ServiceName: serviceName,
		HTTPPort:    DefaultHTTPPort,
		GRPCPort:    DefaultGRPCPort,
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
		MongoDB:     *DefaultMongoConfig("", "school_grading"),
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			RankQueue: "grading:rank_jobs",
			DLQSuffix: ":dlq",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		},
		Scheduler: SchedulerConfig{StatusRefreshSpec: "@every 1h"},
		Ranking:   RankingConfig{Concurrency: 8},
		Worker:    WorkerConfig{Count: 4},
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := LoadConfigFile(path, config); err != nil {
			return nil, err
		}
	}

	config.HTTPPort = GetEnv("HTTP_PORT", config.HTTPPort)
	config.GRPCPort = GetEnv("GRPC_PORT", config.GRPCPort)
	config.Environment = GetEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = GetEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = GetEnv("LOG_FORMAT", config.LogFormat)

	config.MongoDB.URI = GetEnv("MONGO_URI", config.MongoDB.URI)
	config.MongoDB.Database = GetEnv("MONGO_DB_NAME", config.MongoDB.Database)
	config.MongoDB.ConnectTimeout = GetDurationEnv("MONGO_CONNECT_TIMEOUT", config.MongoDB.ConnectTimeout)
	config.MongoDB.MaxPoolSize = uint64(GetIntEnv("MONGO_MAX_POOL_SIZE", int(config.MongoDB.MaxPoolSize)))
	config.MongoDB.MinPoolSize = uint64(GetIntEnv("MONGO_MIN_POOL_SIZE", int(config.MongoDB.MinPoolSize)))
	config.MongoDB.MaxIdleTime = GetDurationEnv("MONGO_MAX_IDLE_TIME", config.MongoDB.MaxIdleTime)

	config.Redis.Addr = GetEnv("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Password = GetEnv("REDIS_PASSWORD", config.Redis.Password)
	config.Redis.DB = GetIntEnv("REDIS_DB", config.Redis.DB)
	config.Redis.RankQueue = GetEnv("REDIS_RANK_QUEUE", config.Redis.RankQueue)

	config.Security.JWTSecret = GetEnv("JWT_SECRET", config.Security.JWTSecret)

	config.CORS.AllowedOrigins = GetStringSliceEnv("CORS_ALLOWED_ORIGINS", config.CORS.AllowedOrigins)
	config.CORS.AllowCredentials = GetBoolEnv("CORS_ALLOW_CREDENTIALS", config.CORS.AllowCredentials)

	config.Scheduler.StatusRefreshSpec = GetEnv("STATUS_REFRESH_SPEC", config.Scheduler.StatusRefreshSpec)
	config.Ranking.Concurrency = GetIntEnv("RANKING_CONCURRENCY", config.Ranking.Concurrency)
	config.Worker.Count = GetIntEnv("RANK_WORKER_COUNT", config.Worker.Count)

	if config.MongoDB.URI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	return config, nil
}

// LoadConfigFile overlays a YAML file onto config
func LoadConfigFile(path string, config *ServiceConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Int("default", defaultValue).Msg("invalid integer env value")
		return defaultValue
	}
	return value
}

// GetBoolEnv retrieves a boolean environment variable or returns a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Bool("default", defaultValue).Msg("invalid boolean env value")
		return defaultValue
	}
	return value
}

// GetDurationEnv retrieves a duration environment variable ("30s", "5m", "1h")
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Dur("default", defaultValue).Msg("invalid duration env value")
		return defaultValue
	}
	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, item := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if config.MongoDB.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}

	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database name is required")
	}

	if config.Ranking.Concurrency < 1 {
		return fmt.Errorf("ranking concurrency must be positive")
	}

	return nil
}

// IsProduction checks if running in production environment
func IsProduction(config *ServiceConfig) bool {
	return config.Environment == "production"
}

// LogConfig prints configuration (sanitized) for debugging
func LogConfig(config *ServiceConfig) {
	log.Info().
		Str("service", config.ServiceName).
		Str("environment", config.Environment).
		Str("http_port", config.HTTPPort).
		Str("grpc_port", config.GRPCPort).
		Str("database", config.MongoDB.Database).
		Uint64("mongo_max_pool", config.MongoDB.MaxPoolSize).
		Str("redis_addr", config.Redis.Addr).
		Str("rank_queue", config.Redis.RankQueue).
		Int("ranking_concurrency", config.Ranking.Concurrency).
		Bool("jwt_secret_set", config.Security.JWTSecret != "").
		Msg("service configuration")
}

// ============================================================================
// Default Port Mapping
// ============================================================================

const (
	DefaultHTTPPort = "8080"
	DefaultGRPCPort = "50054"
)
