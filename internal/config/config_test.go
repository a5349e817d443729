package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SampleInterval != time.Second {
		t.Errorf("SampleInterval = %v, want 1s", cfg.SampleInterval)
	}
	if cfg.HistorySize != 60 {
		t.Errorf("HistorySize = %d, want 60", cfg.HistorySize)
	}
	if len(cfg.LatencyHosts) != 3 {
		t.Errorf("LatencyHosts = %v", cfg.LatencyHosts)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "6000")
	t.Setenv("SAMPLE_INTERVAL", "2s")
	t.Setenv("SPEEDTEST_SERVERS", "http://a.local, http://b.local")
	t.Setenv("LATENCY_HOSTS", "9.9.9.9")
	t.Setenv("NATIVE_LATENCY", "false")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Port != "6000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SampleInterval != 2*time.Second {
		t.Errorf("SampleInterval = %v", cfg.SampleInterval)
	}
	if len(cfg.SpeedTestServers) != 2 || cfg.SpeedTestServers[1] != "http://b.local" {
		t.Errorf("SpeedTestServers = %v", cfg.SpeedTestServers)
	}
	if len(cfg.LatencyHosts) != 1 || cfg.LatencyHosts[0] != "9.9.9.9" {
		t.Errorf("LatencyHosts = %v", cfg.LatencyHosts)
	}
	if cfg.NativeLatency {
		t.Error("NativeLatency not disabled")
	}
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "not-a-port"},
		{"SAMPLE_INTERVAL", "fast"},
		{"SAMPLE_INTERVAL", "-1s"},
		{"HISTORY_SIZE", "0"},
		{"LATENCY_PROBE_COUNT", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := DefaultConfig()
			if err := cfg.LoadFromEnv(); err == nil {
				t.Errorf("accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFileMergesAndEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpulse.yaml")
	content := "port: \"7000\"\nsample_interval: 5s\nlatency_hosts:\n  - 8.8.4.4\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "8000")

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want env override 8000", cfg.Port)
	}
	if cfg.SampleInterval != 5*time.Second {
		t.Errorf("SampleInterval = %v, want file value 5s", cfg.SampleInterval)
	}
	if len(cfg.LatencyHosts) != 1 || cfg.LatencyHosts[0] != "8.8.4.4" {
		t.Errorf("LatencyHosts = %v", cfg.LatencyHosts)
	}
}

func TestLoadFileMissingIsFine(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	mutations := []struct {
		name string
		mut  func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"zero interval", func(c *Config) { c.SampleInterval = 0 }},
		{"no latency hosts", func(c *Config) { c.LatencyHosts = nil }},
		{"bad probe port", func(c *Config) { c.LatencyProbePort = 0 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ListenAddress(); got != "0.0.0.0:5555" {
		t.Errorf("ListenAddress = %q", got)
	}
}
