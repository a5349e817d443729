// Package promexp exports the current telemetry state as Prometheus gauges.
package promexp

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncstream/netpulse/pkg/types"
)

// SnapshotSource yields the current collector snapshot.
type SnapshotSource interface {
	Snapshot() *types.Snapshot
}

// StabilitySource yields the current stability score.
type StabilitySource interface {
	StabilityScore() float64
}

var (
	downloadMbps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_download_mbps",
		Help: "Current download throughput in megabits per second",
	})

	uploadMbps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_upload_mbps",
		Help: "Current upload throughput in megabits per second",
	})

	packetLossPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_packet_loss_percent",
		Help: "Outbound packet loss percentage derived from interface counters",
	})

	cpuPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_cpu_percent",
		Help: "System-wide CPU utilization percentage",
	})

	memPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_memory_percent",
		Help: "System memory utilization percentage",
	})

	stabilityScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_stability_score",
		Help: "Connection stability score (0-100) from download variance",
	})

	establishedConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_established_connections",
		Help: "Tracked established connections (capped)",
	})
)

// Exporter refreshes the gauges from the live telemetry state on a fixed
// interval and serves them over promhttp.
type Exporter struct {
	registry  *prometheus.Registry
	source    SnapshotSource
	stability StabilitySource
	interval  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(source SnapshotSource, stability StabilitySource, interval time.Duration) *Exporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		downloadMbps,
		uploadMbps,
		packetLossPct,
		cpuPct,
		memPct,
		stabilityScore,
		establishedConns,
	)

	return &Exporter{
		registry:  registry,
		source:    source,
		stability: stability,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Handler serves the /metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Start launches the refresh loop.
func (e *Exporter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.update()
			}
		}
	}()
}

func (e *Exporter) Close() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.wg.Wait()
}

func (e *Exporter) update() {
	snap := e.source.Snapshot()
	downloadMbps.Set(snap.Network.DownloadMbps)
	uploadMbps.Set(snap.Network.UploadMbps)
	packetLossPct.Set(snap.PacketLossPct)
	cpuPct.Set(snap.System.CPUPercent)
	memPct.Set(snap.System.MemPercent)
	establishedConns.Set(float64(len(snap.Connections)))
	stabilityScore.Set(e.stability.StabilityScore())
}
