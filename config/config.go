/*
Package config loads process settings from the environment.

PURPOSE:
  One place that knows every environment variable the server and the
  admin tool read. A .env file in the working directory is loaded first
  (github.com/joho/godotenv) and never overrides variables already set.

VARIABLES:
  PORT                      HTTP port (default 8080)
  DB_DRIVER                 memory | sqlite | postgres (default sqlite)
  DB_PATH                   SQLite file (default textile.db)
  DATABASE_URL              PostgreSQL DSN, required for postgres
  REDIS_ADDR                Enables the Redis tenant lock when set
  REDIS_PASSWORD
  AUTH_SECRET               HS256 key for session tokens; no default
  ACCESS_TOKEN_TTL_MINUTES  Session lifetime (default 480)
  ALLOWED_ORIGINS           Comma-separated CORS origins
  LOG_LEVEL                 logrus level (default info)
  SEED_DEMO                 "true" loads the demo shop on an empty store

SEE ALSO:
  - config/logger.go: Logger construction
  - cmd/server/main.go: Flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port                  string
	DBDriver              string
	DBPath                string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	AllowedOrigins        []string
	LogLevel              string
	SeedDemo              bool
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	seed, _ := strconv.ParseBool(getEnv("SEED_DEMO", "false"))

	return Config{
		Port:                  getEnv("PORT", "8080"),
		DBDriver:              strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:                getEnv("DB_PATH", "textile.db"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		SeedDemo:              seed,
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if len(c.AuthSecret) < 16 {
		return fmt.Errorf("AUTH_SECRET must be at least 16 characters")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
