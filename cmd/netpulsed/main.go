package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/syncstream/netpulse/internal/analyzer"
	"github.com/syncstream/netpulse/internal/api"
	"github.com/syncstream/netpulse/internal/collector"
	"github.com/syncstream/netpulse/internal/config"
	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/internal/platform"
	"github.com/syncstream/netpulse/internal/probe"
	"github.com/syncstream/netpulse/internal/promexp"
	"github.com/syncstream/netpulse/internal/results"
	"github.com/syncstream/netpulse/internal/websocket"
	"github.com/syncstream/netpulse/pkg/types"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))
	logging.Info("netpulsed starting",
		logging.Field{Key: "version", Value: version},
		logging.Field{Key: "address", Value: cfg.ListenAddress()})

	caps := probe.DetectCapabilities(cfg)

	coll := collector.New(cfg.SampleInterval, cfg.MaxConnections)
	coll.Start()

	qual := analyzer.New(coll, cfg.SampleInterval, cfg.HistorySize)
	qual.Start()

	speedtest := probe.NewSpeedTester(cfg.SpeedTestServers, cfg.SpeedTestDuration)
	latency := probe.NewLatencyProber(cfg.LatencyProbeCount, cfg.LatencyTimeout,
		cfg.LatencyProbePort, cfg.NativeLatency)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := results.New(filepath.Join(cfg.DataDir, "netpulse.db"), cfg.MaxStoredResults)
	if err != nil {
		log.Fatalf("Failed to open results store: %v", err)
	}

	sysReader := platform.NewSystemReader()

	wsServer := websocket.NewServer(func() any {
		return livePayload(coll, qual)
	}, cfg.WebSocketPushInterval, cfg.WebSocketPingInterval)
	wsServer.SetAllowedOrigins(cfg.AllowedOrigins)
	wsServer.Start()

	exporter := promexp.New(coll, qual, cfg.SampleInterval)
	exporter.Start()

	apiHandler := api.NewHandler(cfg, caps, coll, qual, speedtest, latency, store, sysReader)
	router := api.NewRouter(apiHandler)
	router.SetAllowedOrigins(cfg.AllowedOrigins)
	router.SetWebSocketHandler(wsServer.Handle)
	router.SetMetricsHandler(exporter.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logging.Info("Server starting",
			logging.Field{Key: "address", Value: cfg.ListenAddress()},
			logging.Field{Key: "speed_test", Value: caps.SpeedTest},
			logging.Field{Key: "native_latency", Value: caps.NativeLatency})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Server failed", logging.Field{Key: "error", Value: err})
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := <-quit
	logging.Info("Shutting down server...", logging.Field{Key: "signal", Value: sig.String()})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown error", logging.Field{Key: "error", Value: err})
	}

	wsServer.Close()
	exporter.Close()
	qual.Stop()
	coll.Stop()
	store.Close()

	logging.Info("Server stopped")
}

// livePayload assembles one WebSocket push frame from the current snapshot
// and derived signals.
func livePayload(coll *collector.Collector, qual *analyzer.Analyzer) any {
	snap := coll.Snapshot()
	return struct {
		Network       types.NetworkSnapshot    `json:"network"`
		System        types.SystemSnapshot     `json:"system"`
		Connections   []types.ConnectionRecord `json:"connections"`
		PacketLossPct float64                  `json:"packet_loss"`
		Stability     float64                  `json:"stability_score"`
		Trend         types.Trend              `json:"trend"`
		Timestamp     time.Time                `json:"timestamp"`
	}{
		Network:       snap.Network,
		System:        snap.System,
		Connections:   snap.Connections,
		PacketLossPct: snap.PacketLossPct,
		Stability:     qual.StabilityScore(),
		Trend:         qual.Trend(),
		Timestamp:     snap.Timestamp,
	}
}
