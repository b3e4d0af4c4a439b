package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
vaults:
  - kind: local
    path: keys.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadWorkers != 8 {
		t.Errorf("expected default DownloadWorkers=8, got %d", cfg.DownloadWorkers)
	}
	if !cfg.MuxEnabled {
		t.Errorf("expected default MuxEnabled=true")
	}
	if cfg.WorkDir.TempDir != "temp" || cfg.WorkDir.OutputDir != "downloads" {
		t.Errorf("expected default work dir layout, got %+v", cfg.WorkDir)
	}
}

func TestLoadAllowsEmptyVaults(t *testing.T) {
	path := writeTemp(t, `
download_workers: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Vaults) != 0 {
		t.Fatalf("expected no vaults, got %d", len(cfg.Vaults))
	}
}

func TestLoadRejectsVaultMissingKind(t *testing.T) {
	path := writeTemp(t, `
vaults:
  - base_url: https://vault.example.com
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a vault entry missing kind, got nil")
	}
}

func TestLoadClampsDownloadWorkers(t *testing.T) {
	path := writeTemp(t, `
download_workers: 4096
vaults:
  - kind: remote
    base_url: https://vault.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadWorkers != 128 {
		t.Errorf("expected DownloadWorkers clamped to 128, got %d", cfg.DownloadWorkers)
	}
}

func TestLoadRejectsUnknownVaultKind(t *testing.T) {
	path := writeTemp(t, `
vaults:
  - kind: carrier-pigeon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown vault kind, got nil")
	}
}

func TestLoadRejectsInvalidProxyURL(t *testing.T) {
	path := writeTemp(t, `
vaults:
  - kind: local
    path: keys.db
proxies:
  - name: broken
    url: "://not-a-url"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid proxy url, got nil")
	}
}
