package config

import (
	"os"
	"strconv"
	"time"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/pkg/paths"
	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration loaded from agentdeck.yml.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Sessions configures the session core's resource policy.
	Sessions SessionPolicy `yaml:"sessions"`

	// Token configures attachment token issuing.
	Token TokenConfig `yaml:"token"`

	// SandboxRoots are the filesystem roots session working directories must
	// resolve into. Defaults to the user home directory and the OS temp
	// directory. Enforcement itself is not configurable, only the roots.
	SandboxRoots []string `yaml:"sandbox_roots"`

	// Logging configures the shared logging stack.
	Logging logging.Config `yaml:"logging"`
}

// SessionPolicy holds the session core's capacity and cleanup knobs.
type SessionPolicy struct {
	// MaxGlobal is the total live session ceiling across all projects.
	MaxGlobal int `yaml:"max_global"`

	// MaxPerProject is the live session ceiling per project.
	MaxPerProject int `yaml:"max_per_project"`

	// IdleThreshold is how long a running session with no attached
	// connections may sit before the reaper closes it.
	IdleThreshold time.Duration `yaml:"idle_threshold"`

	// SweepInterval is how often the idle reaper scans.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// BufferLimit is the per-session output buffer ceiling in bytes.
	BufferLimit int `yaml:"buffer_limit"`

	// GraceTimeout bounds how long a close waits for the child to exit
	// before forcing cleanup.
	GraceTimeout time.Duration `yaml:"grace_timeout"`
}

// TokenConfig holds attachment token settings.
type TokenConfig struct {
	// TTL is the attachment token lifetime.
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	roots := []string{os.TempDir()}
	if home != "" {
		roots = append([]string{home}, roots...)
	}

	return &Config{
		Listen: "127.0.0.1:7420",
		Sessions: SessionPolicy{
			MaxGlobal:     50,
			MaxPerProject: 10,
			IdleThreshold: 48 * time.Hour,
			SweepInterval: 5 * time.Minute,
			BufferLimit:   64 * 1024,
			GraceTimeout:  5 * time.Second,
		},
		Token: TokenConfig{
			TTL: time.Hour,
		},
		SandboxRoots: roots,
	}
}

// Load reads configuration from path, layering it over defaults and then
// applying environment overrides. A missing file is not an error; the
// defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read config file").
			WithDetail("path", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to parse config file").
			WithDetail("path", path)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault loads agentdeck.yml from the XDG config directory.
func LoadDefault() (*Config, error) {
	return Load(DefaultPath())
}

// DefaultPath returns the expected location of agentdeck.yml.
func DefaultPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return "agentdeck.yml"
	}
	return dir + string(os.PathSeparator) + "agentdeck.yml"
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTDECK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("AGENTDECK_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sessions.MaxGlobal = n
		}
	}
	if v := os.Getenv("AGENTDECK_MAX_PROJECT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sessions.MaxPerProject = n
		}
	}
	if v := os.Getenv("AGENTDECK_IDLE_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Sessions.IdleThreshold = d
		}
	}
	if v := os.Getenv("AGENTDECK_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Token.TTL = d
		}
	}
}
