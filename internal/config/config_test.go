package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "config-test-secret-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "postgres" || cfg.Database.Port != 5432 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Redis.URL != "redis://redis:6379/0" {
		t.Fatalf("unexpected redis default: %s", cfg.Redis.URL)
	}
	if cfg.Auth.AccessTTL != time.Hour || cfg.Auth.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected token TTLs: %+v", cfg.Auth)
	}
	if cfg.GoogleEnabled() {
		t.Fatal("google should be disabled without credentials")
	}
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for short secret")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "config-test-secret-123")
	t.Setenv("PORT", "9000")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "hunter2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://arena.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:9000" {
		t.Fatalf("addr = %s", cfg.Server.Addr())
	}
	want := "host=db.internal port=5432 user=postgres password=hunter2 dbname=sudoku_arena sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Fatalf("dsn = %s", got)
	}
	if len(cfg.CORS.Origins) != 1 || cfg.CORS.Origins[0] != "https://arena.example.com" {
		t.Fatalf("origins = %v", cfg.CORS.Origins)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	t.Setenv("JWT_SECRET", "config-test-secret-123")

	path := filepath.Join(t.TempDir(), "arena.yaml")
	body := "server:\n  port: 8443\nrecognizer:\n  url: https://vision.example.com/recognize\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Fatalf("file overlay ignored: port %d", cfg.Server.Port)
	}
	if cfg.Recognizer.URL != "https://vision.example.com/recognize" {
		t.Fatalf("recognizer url = %s", cfg.Recognizer.URL)
	}
}
