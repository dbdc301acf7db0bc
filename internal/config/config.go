// Package config loads and validates the daemon configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string such as "5s" or "100ms".
func (d *Duration) UnmarshalText(text []byte) error {
	value := string(text)
	if value == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root of the daemon configuration document.
type Config struct {
	Listen  string        `yaml:"listen"`
	Buffers BufferConfig  `yaml:"buffers"`
	Kill    KillConfig    `yaml:"kill"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Agent   AgentConfig   `yaml:"agent"`
	Sidecar SidecarConfig `yaml:"sidecar"`
	MCP     MCPConfig     `yaml:"mcp"`
}

// BufferConfig bounds per-process output retention.
type BufferConfig struct {
	MaxLines int `yaml:"maxLines"`
	MaxBytes int `yaml:"maxBytes"`
}

// KillConfig tunes the termination protocol.
type KillConfig struct {
	GracePeriod  Duration `yaml:"gracePeriod"`
	WaitTimeout  Duration `yaml:"waitTimeout"`
	PollInterval Duration `yaml:"pollInterval"`
}

// SweepConfig controls the background reaper for exited processes.
type SweepConfig struct {
	Interval Duration `yaml:"interval"`
}

// AgentConfig sets defaults for locally spawned agent processes.
type AgentConfig struct {
	Binary string `yaml:"binary"`
	Model  string `yaml:"model"`
}

// SidecarConfig sets defaults for container-backed agents.
type SidecarConfig struct {
	Image string `yaml:"image"`
}

// MCPConfig names the MCP servers whose tool surface the daemon reports.
type MCPConfig struct {
	Servers []string `yaml:"servers"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a configuration file from the provided path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	var rawDoc map[string]any
	if err := yaml.Unmarshal(raw, &rawDoc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	if rawDoc != nil {
		if err := validateAgainstSchema(rawDoc); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	var doc Config
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// ApplyDefaults fills unset fields with daemon defaults.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7399"
	}
	if c.Buffers.MaxLines == 0 {
		c.Buffers.MaxLines = 1000
	}
	if c.Buffers.MaxBytes == 0 {
		c.Buffers.MaxBytes = 1024 * 1024
	}
	if c.Kill.GracePeriod.Duration == 0 {
		c.Kill.GracePeriod.Duration = 2 * time.Second
	}
	if c.Kill.WaitTimeout.Duration == 0 {
		c.Kill.WaitTimeout.Duration = 5 * time.Second
	}
	if c.Kill.PollInterval.Duration == 0 {
		c.Kill.PollInterval.Duration = 100 * time.Millisecond
	}
	if c.Sweep.Interval.Duration == 0 {
		c.Sweep.Interval.Duration = 30 * time.Second
	}
	if c.Agent.Binary == "" {
		c.Agent.Binary = "claude"
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Buffers.MaxLines < 0 {
		return fmt.Errorf("buffers.maxLines must not be negative, got %d", c.Buffers.MaxLines)
	}
	if c.Buffers.MaxBytes < 0 {
		return fmt.Errorf("buffers.maxBytes must not be negative, got %d", c.Buffers.MaxBytes)
	}
	if c.Kill.GracePeriod.Duration < 0 {
		return fmt.Errorf("kill.gracePeriod must not be negative, got %s", c.Kill.GracePeriod)
	}
	if c.Kill.WaitTimeout.Duration <= 0 {
		return fmt.Errorf("kill.waitTimeout must be positive, got %s", c.Kill.WaitTimeout)
	}
	if c.Kill.PollInterval.Duration <= 0 {
		return fmt.Errorf("kill.pollInterval must be positive, got %s", c.Kill.PollInterval)
	}
	if c.Kill.PollInterval.Duration > c.Kill.WaitTimeout.Duration {
		return fmt.Errorf("kill.pollInterval %s exceeds kill.waitTimeout %s", c.Kill.PollInterval, c.Kill.WaitTimeout)
	}
	if c.Sweep.Interval.Duration <= 0 {
		return fmt.Errorf("sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	return nil
}
