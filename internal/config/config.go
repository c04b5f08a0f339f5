package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "EMoneyLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultEventsChannel   = "ledger:events"
	defaultAuthFailures    = 5
	defaultDBMaxConns      = 10
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Compliance modes accepted in COMPLIANCE_MODE.
const (
	ComplianceAllowAll  = "allow_all"
	ComplianceWhitelist = "whitelist"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	DBMaxConns     int32
	RedisURL       string
	RedisPoolSize  int
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	ComplianceMode       string
	ComplianceWhitelist  []string
	Principals           string
	DirectHoldFundsCheck bool
	EventsChannel        string
	AuthMaxFailures      int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:              getEnv("APP_NAME", defaultAppName),
		AppEnv:               getEnv("APP_ENV", defaultAppEnv),
		Port:                 getEnv("PORT", defaultPort),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		ComplianceMode:       strings.ToLower(getEnv("COMPLIANCE_MODE", ComplianceAllowAll)),
		ComplianceWhitelist:  splitList(os.Getenv("COMPLIANCE_WHITELIST")),
		Principals:           os.Getenv("PRINCIPALS"),
		DirectHoldFundsCheck: true,
		EventsChannel:        getEnv("EVENTS_CHANNEL", defaultEventsChannel),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	maxConns, err := intEnv("DB_MAX_CONNS", defaultDBMaxConns, 1)
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)
	if cfg.RedisPoolSize, err = intEnv("REDIS_POOL_SIZE", 0, 0); err != nil {
		return Config{}, err
	}
	if cfg.AuthMaxFailures, err = intEnv("AUTH_MAX_FAILURES_PER_MINUTE", defaultAuthFailures, 0); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DIRECT_HOLD_FUNDS_CHECK"); v != "" {
		if cfg.DirectHoldFundsCheck, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid DIRECT_HOLD_FUNDS_CHECK: %w", err)
		}
	}

	switch cfg.ComplianceMode {
	case ComplianceAllowAll, ComplianceWhitelist:
	default:
		return Config{}, fmt.Errorf("invalid COMPLIANCE_MODE %q", cfg.ComplianceMode)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads a duration given either as whole seconds in secondsKey
// or as a Go duration string in durationKey. secondsKey wins.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 || int64(seconds) > math.MaxInt64/int64(time.Second) {
			return 0, fmt.Errorf("invalid %s: %q", secondsKey, v)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback, floor int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
