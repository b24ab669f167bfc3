package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erazemk/closet/internal/db"
)

// isolate points ENV_FILE at a missing file and clears variables Load reads.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, k := range []string{"DB_DRIVER", "DB_DSN", "ADDR", "LOG_FILE", "REDIS_ADDR",
		"CACHE_TTL", "PAYMENT_HANDLE", "ADMIN_SECRET", "ADMIN_SECRET_HASH", "REDIS_DB"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dialect != db.SQLite || cfg.DSN != "closet.sqlite3" || cfg.Addr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("expected 30s cache TTL, got %s", cfg.CacheTTL)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ADDR", ":9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/closet")

	cfg, err := Load([]string{"-a", ":7000", "-payment", "Venmo @me"}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("expected flag to win, got %q", cfg.Addr)
	}
	if cfg.Dialect != db.Postgres || cfg.DSN != "postgres://localhost/closet" {
		t.Errorf("expected env database settings, got %+v", cfg)
	}
	if cfg.PaymentHandle != "Venmo @me" {
		t.Errorf("unexpected payment handle %q", cfg.PaymentHandle)
	}
}

func TestLoadEnvFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PAYMENT_HANDLE=Venmo @file\nCACHE_TTL=2m\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	// godotenv does not override set variables, so unset the cleared ones.
	os.Unsetenv("PAYMENT_HANDLE")
	os.Unsetenv("CACHE_TTL")

	cfg, err := Load(nil, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PaymentHandle != "Venmo @file" || cfg.CacheTTL != 2*time.Minute {
		t.Errorf("expected values from env file, got %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad driver", map[string]string{"DB_DRIVER": "mysql"}, nil},
		{"bad ttl", map[string]string{"CACHE_TTL": "soon"}, nil},
		{"negative ttl", nil, []string{"-cache-ttl", "-1s"}},
		{"bad redis db", map[string]string{"REDIS_DB": "one"}, nil},
		{"extra argument", nil, []string{"serve"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadHelp(t *testing.T) {
	isolate(t)

	_, err := Load([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

func TestLoadEnvFileMissingVersusUnreadable(t *testing.T) {
	dir := t.TempDir()

	if err := LoadEnvFile(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("expected missing env file to be ignored, got %v", err)
	}
	if err := LoadEnvFile(dir); err == nil {
		t.Error("expected an error when the env file is a directory")
	}
}
