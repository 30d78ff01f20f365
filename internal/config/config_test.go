package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.SecretFiles) != 1 || cfg.SecretFiles[0] != "ops/secrets.env" {
		t.Errorf("unexpected default secret files: %v", cfg.SecretFiles)
	}
	if cfg.Lockout.MaxFailures != 5 {
		t.Errorf("unexpected default lockout: %+v", cfg.Lockout)
	}
	if cfg.PinPath() != filepath.Join(dir, "pin.json") {
		t.Errorf("unexpected pin path: %s", cfg.PinPath())
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
secret_files:
  - ops/secrets.env
  - ops/secrets_backtest.env
snapshot_dir: /tmp/snaps
lockout:
  max_failures: 3
  window: 5m
  backoff: 30m
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.SecretFiles) != 2 {
		t.Errorf("expected 2 secret files, got %v", cfg.SecretFiles)
	}
	if cfg.SnapshotDir != "/tmp/snaps" {
		t.Errorf("expected snapshot_dir override, got %s", cfg.SnapshotDir)
	}
	if cfg.Lockout.MaxFailures != 3 || cfg.Lockout.Backoff.Std() != 30*time.Minute {
		t.Errorf("lockout not applied: %+v", cfg.Lockout)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("secret_files: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected parse error, got defaults")
	}
}

func TestLive(t *testing.T) {
	t.Setenv(LiveEnv, "")
	if Live() {
		t.Error("unset gate must select the safe path")
	}
	t.Setenv(LiveEnv, "true")
	if Live() {
		t.Error("only the exact value 1 enables real execution")
	}
	t.Setenv(LiveEnv, "1")
	if !Live() {
		t.Error("expected gate to open with 1")
	}
}
