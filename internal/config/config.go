// Package config loads process-level settings from the environment (and an
// optional local .env file). Business policy documents that change more
// often than deployment wiring — funding-gate policy, the liability
// classification table — live in internal/policy instead.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	CloudMetricsPushgatewayURL string

	PolicyConfigPath            string
	ProviderCredentialMasterKey string
	DefaultRail                 string
	DefaultFundingModel         string
	ReservationTTLHours         int
	CommitGateStrictDefault     bool

	ProviderRateLimitPerSecond float64
	ProviderRateLimitBurst     int

	ProviderSubmitTimeoutSeconds int
}

// Load loads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "pspcore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "pspcore"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME_MIN", 30),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		CloudMetricsPushgatewayURL: getenv("CLOUD_METRICS_PUSHGATEWAY_URL", ""),

		PolicyConfigPath:            getenv("PSP_POLICY_CONFIG", "policy.yaml"),
		ProviderCredentialMasterKey: strings.TrimSpace(getenv("PROVIDER_CREDENTIAL_MASTER_KEY", "")),
		DefaultRail:                 getenv("DEFAULT_RAIL", "ach"),
		DefaultFundingModel:         getenv("DEFAULT_FUNDING_MODEL", "prefund_all"),
		ReservationTTLHours:         getenvInt("RESERVATION_TTL_HOURS", 24),
		CommitGateStrictDefault:     getenvBool("COMMIT_GATE_STRICT", false),

		ProviderRateLimitPerSecond: getenvFloat("PROVIDER_RATE_LIMIT_PER_SECOND", 5),
		ProviderRateLimitBurst:     getenvInt("PROVIDER_RATE_LIMIT_BURST", 10),

		ProviderSubmitTimeoutSeconds: getenvInt("PROVIDER_SUBMIT_TIMEOUT_SECONDS", 20),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
