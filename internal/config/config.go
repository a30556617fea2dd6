// Package config loads server settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tunable server settings.
type Config struct {
	ListenAddr  string // HTTP listen address, e.g. ":8080"
	DatabaseURL string // Postgres DSN
	RedisAddr   string // Redis host:port
	NATSURL     string // NATS URL; empty disables cross-instance relay
	JWTSecret   string // HS256 signing secret
	JWTTTL      time.Duration

	MaxMessageChars int // max characters per message body

	WorkerPoolSize int
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:      getString("LISTEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getString("REDIS_ADDR", "localhost:6379"),
		NATSURL:         os.Getenv("NATS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTTTL:          getDuration("JWT_TTL", 24*time.Hour),
		MaxMessageChars: getInt("MAX_MESSAGE_CHARS", 2000),
		WorkerPoolSize:  getInt("WORKER_POOL_SIZE", 256),
		MaxConnections:  getInt("MAX_CONNECTIONS", 100000),
		ReadTimeout:     getDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
