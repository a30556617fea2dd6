package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.RedisAddr)
	}
	if cfg.MaxMessageChars != 2000 {
		t.Errorf("expected default max message chars 2000, got %d", cfg.MaxMessageChars)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("expected default read timeout 10s, got %s", cfg.ReadTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("MAX_MESSAGE_CHARS", "500")
	t.Setenv("READ_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.MaxMessageChars != 500 {
		t.Errorf("expected 500, got %d", cfg.MaxMessageChars)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.ReadTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when JWT_SECRET is missing")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MAX_MESSAGE_CHARS", "not-a-number")
	t.Setenv("WORKER_POOL_SIZE", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MaxMessageChars != 2000 {
		t.Errorf("invalid value should fall back to 2000, got %d", cfg.MaxMessageChars)
	}
	if cfg.WorkerPoolSize != 256 {
		t.Errorf("negative value should fall back to 256, got %d", cfg.WorkerPoolSize)
	}
}
