package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"coinbet/database"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Event bus backends
const (
	EventBusNATS  = "nats"
	EventBusKafka = "kafka"
	EventBusNone  = "none"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL         string `validate:"required"`
	DatabaseName        string
	DatabaseMaxConns    int32         `validate:"gte=0"`
	DatabaseLockTimeout time.Duration `validate:"gte=0"`

	// Ledger configuration
	StartingBalance int64 `validate:"gte=0"`

	// Betting configuration
	MinimumStake       int64   `validate:"gte=1"`
	HouseEdgePercent   float64 `validate:"gte=0,lt=100"`
	OddsMinActivity    int64   `validate:"gte=0"`
	OddsCacheTTL       time.Duration
	BetsDefaultPageLen int `validate:"gte=1,lte=100"`

	// Registration guard
	IPRegistrationLimit  int64         `validate:"gte=1"`
	IPTrackingDuration   time.Duration `validate:"gt=0"`
	CounterStoreCapacity int           `validate:"gte=1"`

	// Redis configuration (empty disables the odds cache and the shared counter store)
	RedisAddr string

	// Event bus configuration
	EventBus     string `validate:"oneof=nats kafka none"`
	NATSServers  string // NATS server addresses (comma-separated)
	KafkaBrokers string
	KafkaTopic   string

	// Operator API
	OperatorPort int `validate:"gte=0,lte=65535"`

	// Reconciliation worker interval
	ReconcileInterval time.Duration `validate:"gt=0"`

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine, the environment may already be populated
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		DatabaseMaxConns:    int32(getInt64WithDefault("DATABASE_MAX_CONNS", 20)),
		DatabaseLockTimeout: getDurationWithDefault("DATABASE_LOCK_TIMEOUT", 5*time.Second),

		StartingBalance: getInt64WithDefault("STARTING_BALANCE", 1000),

		MinimumStake:       getInt64WithDefault("MINIMUM_STAKE", 10),
		HouseEdgePercent:   getFloatWithDefault("HOUSE_EDGE_PERCENT", 5),
		OddsMinActivity:    getInt64WithDefault("ODDS_MIN_ACTIVITY", 100),
		OddsCacheTTL:       getDurationWithDefault("ODDS_CACHE_TTL", 10*time.Minute),
		BetsDefaultPageLen: int(getInt64WithDefault("BETS_PAGE_SIZE", 20)),

		IPRegistrationLimit:  getInt64WithDefault("IP_REGISTRATION_LIMIT", 2),
		IPTrackingDuration:   getDurationWithDefault("IP_TRACKING_DURATION", 30*24*time.Hour),
		CounterStoreCapacity: int(getInt64WithDefault("COUNTER_STORE_CAPACITY", 10000)),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		EventBus:     strings.ToLower(getEnvWithDefault("EVENT_BUS", EventBusNATS)),
		NATSServers:  getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		KafkaBrokers: getEnvWithDefault("KAFKA_BROKERS", "kafka:9092"),
		KafkaTopic:   getEnvWithDefault("KAFKA_TOPIC", "coinbet.domain-events"),

		OperatorPort: int(getInt64WithDefault("OPERATOR_PORT", 8081)),

		ReconcileInterval: getDurationWithDefault("RECONCILE_INTERVAL", time.Minute),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if err := validator.New().Struct(config); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		StartingBalance:      1000,
		MinimumStake:         10,
		HouseEdgePercent:     5,
		OddsMinActivity:      100,
		OddsCacheTTL:         time.Minute,
		BetsDefaultPageLen:   20,
		IPRegistrationLimit:  2,
		IPTrackingDuration:   30 * 24 * time.Hour,
		CounterStoreCapacity: 1000,
		EventBus:             EventBusNone,
		ReconcileInterval:    time.Minute,
		LogLevel:             "debug",
	}
}
