package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"signalsai/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Storage.Driver != core.StorageSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "listen_addr: \":9090\"\ngateway_base_url: https://file.example\nstorage:\n  driver: memory\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SIGNALSAI_GATEWAY_BASE_URL", "https://env.example")
	t.Setenv("SIGNALSAI_GATEWAY_TIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("file value lost: %q", cfg.ListenAddr)
	}
	if cfg.Storage.Driver != core.StorageMemory {
		t.Fatalf("storage driver = %q", cfg.Storage.Driver)
	}
	// Environment wins over the file.
	if cfg.GatewayBaseURL != "https://env.example" {
		t.Fatalf("gateway url = %q", cfg.GatewayBaseURL)
	}
	if cfg.GatewayTimeout != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.GatewayTimeout)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
