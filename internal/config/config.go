// Package config loads unitctl's optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/unitctl/internal/systemd"
)

const (
	// DefaultPath is where the configuration file is looked up when no
	// --config flag is given.
	DefaultPath = "/etc/unitctl/config.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultUnitDir is the systemd system unit directory.
	DefaultUnitDir = "/etc/systemd/system"

	// DefaultBackend is the default service manager backend.
	DefaultBackend = systemd.BackendSystemctl

	// DefaultSystemctlPath is the systemctl binary, looked up in PATH.
	DefaultSystemctlPath = "systemctl"

	// DefaultStepTimeout leaves service manager calls unbounded: a oneshot
	// start blocks until the job finishes.
	DefaultStepTimeout time.Duration = 0
)

var varNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the unitctl configuration. Every field has a usable default,
// so the file is optional.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// UnitDir is where bare unit names are resolved on unregister/status.
	// Default: /etc/systemd/system
	UnitDir string `yaml:"unit_dir"`

	// Backend selects how the service manager is driven: "systemctl" or "dbus".
	// Default: "systemctl"
	Backend systemd.Backend `yaml:"backend"`

	// SystemctlPath is the systemctl binary used by the systemctl backend.
	// Default: "systemctl"
	SystemctlPath string `yaml:"systemctl_path"`

	// StepTimeout bounds each step. Zero disables the bound.
	// Default: 0
	StepTimeout time.Duration `yaml:"step_timeout"`

	// RequireRoot makes register and unregister refuse to run without root.
	// Default: true
	RequireRoot bool `yaml:"require_root"`

	// Rollback undoes completed register steps when a later one fails.
	// Default: false
	Rollback bool `yaml:"rollback"`

	Unregister UnregisterConfig `yaml:"unregister"`

	// Vars are substituted for {{NAME}} placeholders in unit files on register.
	Vars map[string]string `yaml:"vars"`
}

// UnregisterConfig tunes the unregister sequence.
type UnregisterConfig struct {
	// Disable disables both units after stopping them.
	// Default: true
	Disable bool `yaml:"disable"`
}

// Default returns a Config with every default applied.
func Default() Config {
	cfg := Config{
		StepTimeout: DefaultStepTimeout,
		RequireRoot: true,
		Unregister:  UnregisterConfig{Disable: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults sets default values for zero-valued string fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.UnitDir == "" {
		c.UnitDir = DefaultUnitDir
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.SystemctlPath == "" {
		c.SystemctlPath = DefaultSystemctlPath
	}
	if c.Vars == nil {
		c.Vars = map[string]string{}
	}
}

// Validate checks that values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if !filepath.IsAbs(c.UnitDir) {
		return fmt.Errorf("config: unit_dir %q must be an absolute path", c.UnitDir)
	}
	b := c.Backend
	if err := b.Set(string(c.Backend)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("config: step_timeout must not be negative, got %s", c.StepTimeout)
	}
	for k := range c.Vars {
		if !varNameRe.MatchString(k) {
			return fmt.Errorf("config: invalid variable name %q", k)
		}
	}
	return nil
}

// Load reads the YAML configuration at path over the defaults, then
// validates it. A missing file is an error only when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
