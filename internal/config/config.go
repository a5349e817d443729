package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	BindAddress string

	// Periodic sampling
	SampleInterval time.Duration
	HistorySize    int
	MaxConnections int

	// Active probes
	SpeedTestServers  []string
	LatencyHosts      []string
	LatencyProbeCount int
	LatencyTimeout    time.Duration
	LatencyProbePort  int
	NativeLatency     bool
	SpeedTestDuration time.Duration

	// HTTP server
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	AllowedOrigins    []string

	// Live push
	WebSocketPushInterval time.Duration
	WebSocketPingInterval time.Duration

	// Storage
	DataDir          string
	MaxStoredResults int

	LogLevel string
}

func DefaultConfig() *Config {
	return &Config{
		Port:                  "5555",
		BindAddress:           "0.0.0.0",
		SampleInterval:        1 * time.Second,
		HistorySize:           60,
		MaxConnections:        10,
		SpeedTestServers:      nil,
		LatencyHosts:          []string{"8.8.8.8", "1.1.1.1", "google.com"},
		LatencyProbeCount:     4,
		LatencyTimeout:        2 * time.Second,
		LatencyProbePort:      53,
		NativeLatency:         true,
		SpeedTestDuration:     5 * time.Second,
		ReadHeaderTimeout:     15 * time.Second, // protects against slowloris
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           60 * time.Second,
		AllowedOrigins:        []string{"*"},
		WebSocketPushInterval: 1 * time.Second,
		WebSocketPingInterval: 30 * time.Second,
		DataDir:               "./data",
		MaxStoredResults:      1000,
		LogLevel:              "info",
	}
}

// configFile mirrors the subset of Config that makes sense to set from a
// YAML file. Environment variables override file values.
type configFile struct {
	Port             string   `yaml:"port,omitempty"`
	BindAddress      string   `yaml:"bind_address,omitempty"`
	SampleInterval   string   `yaml:"sample_interval,omitempty"`
	HistorySize      int      `yaml:"history_size,omitempty"`
	SpeedTestServers []string `yaml:"speedtest_servers,omitempty"`
	LatencyHosts     []string `yaml:"latency_hosts,omitempty"`
	LatencyTimeout   string   `yaml:"latency_timeout,omitempty"`
	NativeLatency    *bool    `yaml:"native_latency,omitempty"`
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty"`
	DataDir          string   `yaml:"data_dir,omitempty"`
	MaxStoredResults int      `yaml:"max_stored_results,omitempty"`
	LogLevel         string   `yaml:"log_level,omitempty"`
}

// LoadFile merges settings from a YAML config file. A missing file is not an
// error; the daemon runs fine on defaults plus environment.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Port != "" {
		c.Port = f.Port
	}
	if f.BindAddress != "" {
		c.BindAddress = f.BindAddress
	}
	if f.SampleInterval != "" {
		d, err := time.ParseDuration(f.SampleInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid sample_interval %q in %s", f.SampleInterval, path)
		}
		c.SampleInterval = d
	}
	if f.HistorySize > 0 {
		c.HistorySize = f.HistorySize
	}
	if len(f.SpeedTestServers) > 0 {
		c.SpeedTestServers = f.SpeedTestServers
	}
	if len(f.LatencyHosts) > 0 {
		c.LatencyHosts = f.LatencyHosts
	}
	if f.LatencyTimeout != "" {
		d, err := time.ParseDuration(f.LatencyTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid latency_timeout %q in %s", f.LatencyTimeout, path)
		}
		c.LatencyTimeout = d
	}
	if f.NativeLatency != nil {
		c.NativeLatency = *f.NativeLatency
	}
	if len(f.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.MaxStoredResults > 0 {
		c.MaxStoredResults = f.MaxStoredResults
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	return nil
}

func (c *Config) LoadFromEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q: must be a number", port)
		}
		c.Port = port
	}
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		c.BindAddress = addr
	}

	if interval := os.Getenv("SAMPLE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: must be a positive duration (e.g. 1s)", interval)
		}
		c.SampleInterval = d
	}
	if size := os.Getenv("HISTORY_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid HISTORY_SIZE %q: must be a positive integer", size)
		}
		c.HistorySize = n
	}
	if max := os.Getenv("MAX_CONNECTIONS"); max != "" {
		n, err := strconv.Atoi(max)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_CONNECTIONS %q: must be a positive integer", max)
		}
		c.MaxConnections = n
	}

	if servers := os.Getenv("SPEEDTEST_SERVERS"); servers != "" {
		c.SpeedTestServers = splitList(servers)
	}
	if hosts := os.Getenv("LATENCY_HOSTS"); hosts != "" {
		c.LatencyHosts = splitList(hosts)
	}
	if count := os.Getenv("LATENCY_PROBE_COUNT"); count != "" {
		n, err := strconv.Atoi(count)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid LATENCY_PROBE_COUNT %q: must be a positive integer", count)
		}
		c.LatencyProbeCount = n
	}
	if timeout := os.Getenv("LATENCY_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid LATENCY_TIMEOUT %q: must be a positive duration (e.g. 2s)", timeout)
		}
		c.LatencyTimeout = d
	}
	if native := os.Getenv("NATIVE_LATENCY"); native == "false" || native == "0" {
		c.NativeLatency = false
	}
	if dur := os.Getenv("SPEEDTEST_DURATION"); dur != "" {
		d, err := time.ParseDuration(dur)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid SPEEDTEST_DURATION %q: must be a positive duration (e.g. 5s)", dur)
		}
		c.SpeedTestDuration = d
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}
	if max := os.Getenv("MAX_STORED_RESULTS"); max != "" {
		n, err := strconv.Atoi(max)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_STORED_RESULTS %q: must be a positive integer", max)
		}
		c.MaxStoredResults = n
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port %q: must be 1-65535", c.Port)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be > 0")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be > 0")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be > 0")
	}
	if c.LatencyProbeCount <= 0 {
		return fmt.Errorf("latency probe count must be > 0")
	}
	if c.LatencyTimeout <= 0 {
		return fmt.Errorf("latency timeout must be > 0")
	}
	if c.LatencyProbePort <= 0 || c.LatencyProbePort > 65535 {
		return fmt.Errorf("invalid latency probe port: %d", c.LatencyProbePort)
	}
	if len(c.LatencyHosts) == 0 {
		return fmt.Errorf("latency hosts cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.MaxStoredResults <= 0 {
		return fmt.Errorf("max stored results must be > 0")
	}
	return nil
}

func (c *Config) ListenAddress() string {
	return c.BindAddress + ":" + c.Port
}

func splitList(s string) []string {
	entries := strings.Split(s, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		value := strings.TrimSpace(entry)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
