package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYaml = `
http:
  port: 8085
db:
  host: dbhost
  port: 5432
  database: nasmon
  user: nasmon
  password: file-secret
kafka:
  broker: broker:9092
  topic: alert.list
ha:
  licensed: true
  node: B
  peer_url: http://peer:8085
support:
  serial: SN-42
checks:
  mountpoints:
    - /vol1
    - /vol2
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prod.yaml")
	if err := os.WriteFile(path, []byte(testYaml), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	os.Setenv("CONFIG_PATH", writeTestConfig(t))
	defer os.Unsetenv("CONFIG_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Http.Port != 8085 {
		t.Errorf("Expected port 8085, got %d", cfg.Http.Port)
	}
	if cfg.Db.Host != "dbhost" {
		t.Errorf("Expected db host dbhost, got %s", cfg.Db.Host)
	}
	if !cfg.HA.Licensed || cfg.HA.Node != "B" {
		t.Errorf("Unexpected HA config: %+v", cfg.HA)
	}
	if cfg.Support.Serial != "SN-42" {
		t.Errorf("Expected serial SN-42, got %s", cfg.Support.Serial)
	}
	if len(cfg.Checks.Mountpoints) != 2 {
		t.Errorf("Expected 2 mountpoints, got %d", len(cfg.Checks.Mountpoints))
	}

	// Omitted fields fall back to defaults.
	if cfg.Product != "CORE" {
		t.Errorf("Expected default product CORE, got %s", cfg.Product)
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	os.Setenv("CONFIG_PATH", writeTestConfig(t))
	os.Setenv("NASMON_DB_PASSWORD", "env-secret")
	defer os.Unsetenv("CONFIG_PATH")
	defer os.Unsetenv("NASMON_DB_PASSWORD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Db.Password != "env-secret" {
		t.Errorf("Expected env password to win, got %s", cfg.Db.Password)
	}
}

func TestLoadMissingFile(t *testing.T) {
	os.Setenv("CONFIG_PATH", "/does/not/exist.yaml")
	defer os.Unsetenv("CONFIG_PATH")

	if _, err := Load(); err == nil {
		t.Error("Expected error for missing config file")
	}
}
