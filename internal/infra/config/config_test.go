package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage != StorageMemory || cfg.HTTPAddr != ":8080" || cfg.BlockHorizonDays != 730 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.TxRetryBackoff) != 3 || cfg.TxRetryBackoff[0] != 10*time.Millisecond {
		t.Fatalf("unexpected tx backoff %v", cfg.TxRetryBackoff)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GRID_MAX_DAYS=90\nKAFKA_BROKERS=a:9092, b:9092\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("GRID_MAX_DAYS")
		os.Unsetenv("KAFKA_BROKERS")
	})
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GridMaxDays != 90 || len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	cases := map[string][2]string{
		"bad duration":    {"TX_LOCK_TIMEOUT", "soon"},
		"bad backoff":     {"TX_RETRY_BACKOFF", "10ms,later"},
		"bad bool":        {"S3_USE_SSL", "maybe"},
		"bad storage":     {"STORAGE", "postgres"},
		"mongo needs uri": {"STORAGE", "mongo"},
		"zero horizon":    {"BLOCK_HORIZON", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("MONGO_URI", "")
			t.Setenv(kv[0], kv[1])
			if _, err := Load(missing); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
