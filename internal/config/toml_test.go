package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg.Server.URL != nil || cfg.Server.TimeoutSeconds != nil || cfg.Snapshot.MaxAgeHours != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[server]\nurl = \"http://backend:9000\"\n\n[snapshot]\nmax-age-hours = 48\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.URL == nil || *cfg.Server.URL != "http://backend:9000" {
		t.Fatalf("server url not decoded: %+v", cfg.Server)
	}
	if cfg.Server.TimeoutSeconds != nil {
		t.Fatalf("unset timeout must stay nil")
	}
	if cfg.Snapshot.MaxAgeHours == nil || *cfg.Snapshot.MaxAgeHours != 48 {
		t.Fatalf("max-age-hours not decoded: %+v", cfg.Snapshot)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("empty path must error")
	}
}
