// Package config handles configuration for snippet-uiautomator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"gopkg.in/yaml.v3"
)

// DefaultAddress is where a forwarded snippet server usually listens.
const DefaultAddress = "127.0.0.1:9008"

// Config represents the workspace configuration (snippet.yaml).
type Config struct {
	// Device settings
	Device  string `yaml:"device"`  // ADB serial, also shown in messages
	Address string `yaml:"address"` // Snippet server host:port

	// SnippetPackage, when set, is launched over ADB and its forwarded port
	// replaces Address.
	SnippetPackage string `yaml:"snippetPackage"`

	// Timing (milliseconds)
	RPCTimeoutMs   int `yaml:"rpcTimeoutMs"`   // Bound on one RPC round trip
	WaitTimeoutMs  int `yaml:"waitTimeoutMs"`  // Default wait timeout
	PollIntervalMs int `yaml:"pollIntervalMs"` // Delay between wait polls

	MaxScrollAttempts int `yaml:"maxScrollAttempts"` // Scroll-until-found budget

	LogFile string `yaml:"logFile"` // Log destination, empty for <home>/logs
}

// Defaults returns a copy with zero values filled in.
func (c Config) Defaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.RPCTimeoutMs <= 0 {
		c.RPCTimeoutMs = int(uiautomator.DefaultRPCTimeout / time.Millisecond)
	}
	if c.WaitTimeoutMs <= 0 {
		c.WaitTimeoutMs = int(uiautomator.DefaultWaitTimeout / time.Millisecond)
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = int(uiautomator.DefaultPollInterval / time.Millisecond)
	}
	if c.MaxScrollAttempts <= 0 {
		c.MaxScrollAttempts = uiautomator.DefaultMaxScrollAttempts
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(GetLogsDir(), "snippet-ui.log")
	}
	return c
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	if c.WaitTimeoutMs > 0 && c.RPCTimeoutMs > 0 && c.WaitTimeoutMs >= c.RPCTimeoutMs {
		return fmt.Errorf("waitTimeoutMs (%d) must be shorter than rpcTimeoutMs (%d)", c.WaitTimeoutMs, c.RPCTimeoutMs)
	}
	if c.PollIntervalMs < 0 {
		return fmt.Errorf("pollIntervalMs must not be negative")
	}
	return nil
}

// RPCTimeout returns the RPC timeout as a duration.
func (c Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMs) * time.Millisecond
}

// Options converts the configuration into handle options.
func (c Config) Options() uiautomator.Options {
	return uiautomator.Options{
		Device:            c.Device,
		PollInterval:      time.Duration(c.PollIntervalMs) * time.Millisecond,
		WaitTimeout:       time.Duration(c.WaitTimeoutMs) * time.Millisecond,
		RPCTimeout:        c.RPCTimeout(),
		MaxScrollAttempts: c.MaxScrollAttempts,
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for snippet.yaml or snippet.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"snippet.yaml", "snippet.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{}, nil
}
