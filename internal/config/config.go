// Package config loads application configuration from environment
// variables.  Required values halt startup when missing; tuning knobs
// fall back to sensible defaults.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTSecret        string // secret used to verify access tokens
	HoldTTLSec       int    // seat hold lifetime in seconds
	PaymentWindowMin int    // minutes a pending booking may await payment
	SweepIntervalSec int    // background expiry sweep interval in seconds
	AvailabilityTTL  int    // availability cache TTL in seconds
}

// Load reads configuration from the environment.  Required variables
// are enforced by must() and missing values cause the program to exit
// with a fatal log message.
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		HoldTTLSec:       optInt("HOLD_TTL_SEC", 300),
		PaymentWindowMin: optInt("PAYMENT_WINDOW_MIN", 10),
		SweepIntervalSec: optInt("SWEEP_INTERVAL_SEC", 60),
		AvailabilityTTL:  optInt("AVAILABILITY_CACHE_TTL_SEC", 10),
	}
}

// must retrieves a required environment variable.  If the variable is
// unset or empty the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// optInt retrieves an optional integer environment variable, falling
// back to def when unset.  A set-but-invalid value is fatal so broken
// deployments fail loudly instead of running with surprise defaults.
func optInt(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
