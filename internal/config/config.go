// Package config loads the secretgate configuration: which files are
// treated as secrets, where the ledger and stores live, and the
// lockout policy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LiveEnv is the environment gate. Real (state-changing) execution
// paths run only when this variable is exactly "1"; anything else
// selects the safe path.
const LiveEnv = "SECRETGATE_LIVE"

// Duration wraps time.Duration so YAML values like "15m" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Lockout configures the invalid-PIN failure tracker.
type Lockout struct {
	MaxFailures int      `yaml:"max_failures"`
	Window      Duration `yaml:"window"`
	Backoff     Duration `yaml:"backoff"`
}

// Config holds all configurable parameters.
type Config struct {
	// SecretFiles are the paths guarded by lock/unlock and included
	// in snapshots.
	SecretFiles []string `yaml:"secret_files"`
	// SnapshotDir is where snapshot archives are written.
	SnapshotDir string  `yaml:"snapshot_dir"`
	Lockout     Lockout `yaml:"lockout"`

	stateDir string
}

// Default returns the built-in configuration for a given state dir.
func Default(stateDir string) *Config {
	return &Config{
		SecretFiles: []string{"ops/secrets.env"},
		SnapshotDir: "build",
		Lockout: Lockout{
			MaxFailures: 5,
			Window:      Duration(15 * time.Minute),
			Backoff:     Duration(15 * time.Minute),
		},
		stateDir: stateDir,
	}
}

// DefaultStateDir returns ~/.secretgate, falling back to a temp
// directory when the home directory cannot be resolved.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "secretgate")
	}
	return filepath.Join(home, ".secretgate")
}

// Load reads <stateDir>/config.yaml, merged over defaults. A missing
// file means defaults; an unparseable one is an error — it is never
// silently replaced by defaults.
func Load(stateDir string) (*Config, error) {
	cfg := Default(stateDir)

	path := filepath.Join(stateDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.stateDir = stateDir
	return cfg, nil
}

// StateDir returns the state directory this config was loaded from.
func (c *Config) StateDir() string { return c.stateDir }

// PinPath returns the PIN record file path.
func (c *Config) PinPath() string { return filepath.Join(c.stateDir, "pin.json") }

// LedgerPath returns the approval ledger file path.
func (c *Config) LedgerPath() string { return filepath.Join(c.stateDir, "approvals.jsonl") }

// AuditPath returns the decision audit database path.
func (c *Config) AuditPath() string { return filepath.Join(c.stateDir, "audit.db") }

// LockoutPath returns the invalid-PIN tracker file path.
func (c *Config) LockoutPath() string { return filepath.Join(c.stateDir, "lockout.json") }

// Live reports whether the environment gate enables real execution.
func Live() bool {
	return os.Getenv(LiveEnv) == "1"
}
