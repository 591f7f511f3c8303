// Package config loads application configuration from environment
// variables.  Required variables are enforced at startup: a missing
// value is a deployment error and the process exits rather than
// limping along half-configured.
package config

import (
    "log"
    "os"
    "strconv"
)

// Config holds all runtime configuration values.  Each field maps to
// one environment variable.
type Config struct {
    Env              string // application environment (e.g. "dev", "prod")
    Port             string // HTTP port to listen on
    DBUser           string // database username
    DBPass           string // database password (optional)
    DBHost           string // database host address
    DBPort           string // database port number
    DBName           string // database name
    JWTSecret        string // secret used to verify access tokens
    SweepIntervalSec int    // trip lifecycle sweep period in seconds
}

// Load reads configuration from the environment.  Missing required
// variables abort the process with a fatal log message.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),
        Port:             must("APP_PORT"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"), // empty allowed
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTSecret:        must("JWT_SECRET"),
        SweepIntervalSec: envInt("TRIP_SWEEP_INTERVAL_SEC", 60),
    }
}

// must retrieves a required environment variable or exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but parses the value as an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
