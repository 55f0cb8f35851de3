// Package config loads service configuration from the environment and
// fails fast on missing required values.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config is everything the binaries need at startup.
type Config struct {
	DatabaseURL   string
	Port          string
	MigrationsDir string

	// SweepInterval is how often the in-process auto-pay sweeper
	// runs; 0 disables it (cmd/sweeper can run it externally).
	SweepInterval time.Duration

	// SMTP relay for best-effort notifications; empty host means
	// notifications are logged instead of delivered.
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
}

// MustLoad reads the environment and exits on invalid required values.
func MustLoad() Config {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cfg := Config{
		DatabaseURL:   dsn,
		Port:          envOr("PORT", "8080"),
		MigrationsDir: envOr("MIGRATIONS_DIR", "./migrations"),
		SweepInterval: time.Minute,
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      25,
		SMTPFrom:      envOr("SMTP_FROM", "no-reply@finexbank.example"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("SWEEP_INTERVAL: %v", err)
		}
		cfg.SweepInterval = d
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("SMTP_PORT: %v", err)
		}
		cfg.SMTPPort = p
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
