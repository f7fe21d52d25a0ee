package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ALLOWED_ORIGIN", "STORE_DRIVER", "RECORD_TTL", "UPSTREAM_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8787" {
		t.Errorf("expected default port 8787, got %q", cfg.Port)
	}
	if cfg.RecordTTL != 30*24*time.Hour {
		t.Errorf("expected 30 day TTL, got %v", cfg.RecordTTL)
	}
	if cfg.UpstreamTimeout != 0 {
		t.Errorf("expected no upstream timeout by default, got %v", cfg.UpstreamTimeout)
	}
	if cfg.Store.Driver != StoreSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Store.Driver)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://newyears25.pages.dev" {
		t.Errorf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store driver")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("ALLOWED_ORIGIN", "http://localhost:5173, https://example.com")
	t.Setenv("RECORD_TTL", "1h")
	t.Setenv("GENERATE_RATE_BURST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Driver != StoreRedis {
		t.Errorf("expected redis driver, got %q", cfg.Store.Driver)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
	if cfg.RecordTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.RecordTTL)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("expected fallback burst 5, got %d", cfg.RateLimit.Burst)
	}
}

func TestLoadModelsDefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	models, err := LoadModels("")
	if err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	if models.Dual[0] == models.Dual[1] {
		t.Fatalf("default dual models must differ: %v", models.Dual)
	}
	if models.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", models.Temperature)
	}
}

func TestLoadModelsFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.yaml")
	content := "dual:\n  - m-a\n  - m-b\ntemperature: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write models file: %v", err)
	}

	models, err := LoadModels(path)
	if err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	if models.Dual != [2]string{"m-a", "m-b"} {
		t.Errorf("unexpected dual models: %v", models.Dual)
	}
	if models.Temperature != 0 {
		t.Errorf("expected explicit temperature 0, got %v", models.Temperature)
	}
	if models.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("expected default system prompt to be kept")
	}
}

func TestLoadModelsRejectsWrongCount(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte("dual: [only-one]\n"), 0o600); err != nil {
		t.Fatalf("write models file: %v", err)
	}

	if _, err := LoadModels(path); err == nil {
		t.Fatal("expected error for a single dual model")
	}
}

func TestLoadRejectsZeroSweepForSQLite(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_SWEEP_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero sweep interval")
	}

	t.Setenv("STORE_DRIVER", "redis")
	if _, err := Load(); err != nil {
		t.Fatalf("redis expires natively and needs no sweeper: %v", err)
	}
}

func TestLoadTrustProxy(t *testing.T) {
	t.Setenv("TRUST_PROXY", "")
	os.Unsetenv("TRUST_PROXY")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TrustProxy {
		t.Error("proxy headers must not be trusted by default")
	}

	t.Setenv("TRUST_PROXY", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.TrustProxy {
		t.Error("expected TRUST_PROXY=true to be honored")
	}
}
