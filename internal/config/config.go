// internal/config/config.go
//
// Process configuration from environment variables.
// A .env file in the working directory is loaded first (godotenv); values
// already set in the environment win over the file.
//
//	PORT                listen port                         (5175)
//	LOG_LEVEL           zerolog level                       (info)
//	APP_ENV             "production" enables secure cookies (development)
//	CLIENT_ORIGIN       CORS origin with credentials        (http://localhost:5173)
//	SCORE_STORE         "sqlite" | "memory"                 (sqlite)
//	DB_PATH             SQLite file                         (data/shapematch.db)
//	JWT_SECRET          HS256 signing secret                (dev_secret_change_me)
//	JWT_EXPIRES_DAYS    token lifetime in days              (14)
//	COOKIE_NAME         auth cookie name                    (shapematch_token)
//	LAYOUT_SEED         fixed deal seed, 0 = random         (0)
//	TABLE_IDLE_TIMEOUT  idle table eviction, Go duration    (30m)

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the typed view of the environment.
type Config struct {
	Port             string
	LogLevel         zerolog.Level
	Production       bool
	ClientOrigin     string
	ScoreStore       string
	DBPath           string
	JWTSecret        string
	JWTExpires       time.Duration
	CookieName       string
	LayoutSeed       uint64
	TableIdleTimeout time.Duration
}

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	c := Config{
		Port:         getEnv("PORT", "5175"),
		Production:   getEnv("APP_ENV", "development") == "production",
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		ScoreStore:   getEnv("SCORE_STORE", StoreSQLite),
		DBPath:       getEnv("DB_PATH", "data/shapematch.db"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		CookieName:   getEnv("COOKIE_NAME", "shapematch_token"),
	}

	var errs []error
	lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	c.LogLevel = lvl

	days, err := strconv.Atoi(getEnv("JWT_EXPIRES_DAYS", "14"))
	if err != nil || days <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_DAYS: want a positive integer, got %q", os.Getenv("JWT_EXPIRES_DAYS")))
		days = 14
	}
	c.JWTExpires = time.Duration(days) * 24 * time.Hour

	if c.LayoutSeed, err = strconv.ParseUint(getEnv("LAYOUT_SEED", "0"), 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("LAYOUT_SEED: %w", err))
	}

	if c.TableIdleTimeout, err = time.ParseDuration(getEnv("TABLE_IDLE_TIMEOUT", "30m")); err != nil {
		errs = append(errs, fmt.Errorf("TABLE_IDLE_TIMEOUT: %w", err))
	}

	switch c.ScoreStore {
	case StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("SCORE_STORE: unknown store %q", c.ScoreStore))
	}

	if c.Production && c.JWTSecret == "dev_secret_change_me" {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return c, errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
