// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Postgres DSN. Empty selects the in-memory store.
	DatabaseURL string

	// Upstream game API
	APIURL         string
	RequestTimeout time.Duration
	APIRateRPS     float64
	APIRateBurst   int
	APIRetryMax    int

	// Market-data budget and failure cutoff
	MarketDataMaxCalls    int
	MarketDataWindow      time.Duration
	MarketDataMaxFailures int
	MarketDataMaxWait     time.Duration

	// Session behaviour
	SyncMaxRetries   int
	SyncRetryDelay   time.Duration
	SyncPlayerCap    int
	OpponentTimeout  time.Duration
	FormationTimeout time.Duration
	OpponentPause    time.Duration
	LockTTL          time.Duration

	// Rating and valuation
	SecondaryPenaltyStep int
	ValuationJitter      bool
	ValuationSeed        int64

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Logging
	LogFormat string
	LogLevel  string
	LogFile   string

	// Progress webhook
	WebhookURL       string
	WebhookAPIKey    string
	WebhookBatchSize int
	WebhookInterval  time.Duration

	// Limits on POST /sync
	TriggerRateRPS   float64
	TriggerRateBurst int
}

// Load creates a new Config from environment variables. A .env file in the
// working directory is read first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                  GetEnvOrDefault("PORT", "8080"),
		DatabaseURL:           GetEnvOrDefault("DATABASE_URL", ""),
		APIURL:                strings.TrimRight(GetEnvOrDefault("MFL_API_URL", "https://z519wdyajg.execute-api.us-east-1.amazonaws.com/prod"), "/"),
		RequestTimeout:        GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		APIRateRPS:            GetEnvAsFloat("API_RATE_RPS", 2000.0/300.0), // 2000 requests per 5 minutes
		APIRateBurst:          GetEnvAsInt("API_RATE_BURST", 10),
		APIRetryMax:           GetEnvAsInt("API_RETRY_MAX", 3),
		MarketDataMaxCalls:    GetEnvAsInt("MARKET_DATA_MAX_CALLS", 10),
		MarketDataWindow:      GetEnvAsDuration("MARKET_DATA_WINDOW", 60*time.Second),
		MarketDataMaxFailures: GetEnvAsInt("MARKET_DATA_MAX_FAILURES", 3),
		MarketDataMaxWait:     GetEnvAsDuration("MARKET_DATA_MAX_WAIT", 60*time.Second),
		SyncMaxRetries:        GetEnvAsInt("SYNC_MAX_RETRIES", 3),
		SyncRetryDelay:        GetEnvAsDuration("SYNC_RETRY_DELAY", time.Second),
		SyncPlayerCap:         GetEnvAsInt("SYNC_PLAYER_CAP", 0),
		OpponentTimeout:       GetEnvAsDuration("OPPONENT_TIMEOUT", 10*time.Second),
		FormationTimeout:      GetEnvAsDuration("FORMATION_TIMEOUT", 5*time.Second),
		OpponentPause:         GetEnvAsDuration("OPPONENT_PAUSE", 500*time.Millisecond),
		LockTTL:               GetEnvAsDuration("LOCK_TTL", 30*time.Second),
		SecondaryPenaltyStep:  GetEnvAsInt("SECONDARY_PENALTY_STEP", 0),
		ValuationJitter:       GetEnvAsBool("VALUATION_JITTER", true),
		ValuationSeed:         int64(GetEnvAsInt("VALUATION_SEED", 0)),
		OtelEndpoint:          GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogFormat:             strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "json")),
		LogLevel:              GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:               GetEnvOrDefault("LOG_FILE", ""),
		WebhookURL:            GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey:         GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		WebhookBatchSize:      GetEnvAsInt("WEBHOOK_BATCH_SIZE", 20),
		WebhookInterval:       GetEnvAsDuration("WEBHOOK_INTERVAL", 30*time.Second),
		TriggerRateRPS:        GetEnvAsFloat("TRIGGER_RATE_RPS", 1),
		TriggerRateBurst:      GetEnvAsInt("TRIGGER_RATE_BURST", 5),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

func invalid(key, value string, err error) {
	logrus.WithFields(logrus.Fields{"key": key, "value": value}).WithError(err).Warn("Invalid config value, using default")
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
		invalid(key, value, err)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return floatValue
		}
		invalid(key, value, err)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
		invalid(key, value, err)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		invalid(key, value, err)
	}
	return defaultValue
}
