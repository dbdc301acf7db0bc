package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "listen: 0.0.0.0:9000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.Buffers.MaxLines != 1000 || cfg.Buffers.MaxBytes != 1024*1024 {
		t.Fatalf("buffer defaults = %d lines / %d bytes", cfg.Buffers.MaxLines, cfg.Buffers.MaxBytes)
	}
	if cfg.Kill.GracePeriod.Duration != 2*time.Second {
		t.Fatalf("grace default = %s", cfg.Kill.GracePeriod)
	}
	if cfg.Kill.WaitTimeout.Duration != 5*time.Second {
		t.Fatalf("wait default = %s", cfg.Kill.WaitTimeout)
	}
	if cfg.Kill.PollInterval.Duration != 100*time.Millisecond {
		t.Fatalf("poll default = %s", cfg.Kill.PollInterval)
	}
	if cfg.Agent.Binary != "claude" {
		t.Fatalf("agent binary default = %q", cfg.Agent.Binary)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"kill:",
		"  gracePeriod: 500ms",
		"  waitTimeout: 10s",
		"  pollInterval: 50ms",
		"sweep:",
		"  interval: 1m",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kill.GracePeriod.Duration != 500*time.Millisecond {
		t.Fatalf("gracePeriod = %s", cfg.Kill.GracePeriod)
	}
	if cfg.Kill.WaitTimeout.Duration != 10*time.Second {
		t.Fatalf("waitTimeout = %s", cfg.Kill.WaitTimeout)
	}
	if cfg.Sweep.Interval.Duration != time.Minute {
		t.Fatalf("sweep interval = %s", cfg.Sweep.Interval)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "listne: 127.0.0.1:7399\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a misspelled field")
	}
}

func TestLoadRejectsWrongFieldType(t *testing.T) {
	path := writeConfig(t, "buffers:\n  maxLines: lots\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load accepted a non-integer maxLines")
	}
	if !strings.Contains(err.Error(), "maxLines") {
		t.Fatalf("error does not name the offending field: %v", err)
	}
}

func TestLoadRejectsInvalidTimings(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative grace", "kill:\n  gracePeriod: -1s\n"},
		{"poll exceeds wait", "kill:\n  waitTimeout: 1s\n  pollInterval: 2s\n"},
		{"bad duration literal", "kill:\n  waitTimeout: soon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load accepted %q", tc.body)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}
