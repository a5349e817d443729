// Package analyzer accumulates a rolling window of throughput samples and
// derives quality signals from it: a stability score and a short-term trend.
package analyzer

import (
	"math"
	"sync"
	"time"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/types"
)

// SnapshotSource yields the current collector snapshot.
type SnapshotSource interface {
	Snapshot() *types.Snapshot
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Sample is one point in the rolling window.
type Sample struct {
	DownloadMbps  float64
	UploadMbps    float64
	PacketLossPct float64
	Timestamp     time.Time
}

const (
	stabilityMinSamples = 10
	stabilityWindow     = 30
	trendMinSamples     = 20
	trendWindow         = 10
	trendUpFactor       = 1.1
	trendDownFactor     = 0.9
)

type Analyzer struct {
	source   SnapshotSource
	clock    Clock
	interval time.Duration
	capacity int

	mu      sync.Mutex
	history []Sample

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	runMu   sync.Mutex
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the wall clock, for tests.
func WithClock(clock Clock) Option {
	return func(a *Analyzer) { a.clock = clock }
}

func New(source SnapshotSource, interval time.Duration, capacity int, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		clock:    realClock{},
		interval: interval,
		capacity: capacity,
		history:  make([]Sample, 0, capacity),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins sampling the source once per interval. Idempotent.
func (a *Analyzer) Start() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.stopCh)
	logging.Info("analyzer started",
		logging.Field{Key: "interval", Value: a.interval},
		logging.Field{Key: "capacity", Value: a.capacity})
}

// Stop halts sampling. Idempotent.
func (a *Analyzer) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	close(a.stopCh)
	a.wg.Wait()
	logging.Info("analyzer stopped")
}

func (a *Analyzer) run(stopCh chan struct{}) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := a.source.Snapshot()
			a.AddSample(Sample{
				DownloadMbps:  snap.Network.DownloadMbps,
				UploadMbps:    snap.Network.UploadMbps,
				PacketLossPct: snap.PacketLossPct,
				Timestamp:     a.clock.Now(),
			})
		case <-stopCh:
			return
		}
	}
}

// AddSample appends one sample, evicting the oldest once the window is full.
func (a *Analyzer) AddSample(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.history) >= a.capacity {
		a.history = a.history[1:]
	}
	a.history = append(a.history, s)
}

// SampleCount returns the current window size.
func (a *Analyzer) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}

// StabilityScore rates connection steadiness on a 0-100 scale from the
// variance of recent download throughput. Fewer than 10 samples is treated
// as "unknown" and reported as a neutral 50.
func (a *Analyzer) StabilityScore() float64 {
	recent := a.recentDownload(stabilityWindow)
	if len(recent) < stabilityMinSamples {
		return 50
	}

	variance := populationVariance(recent)
	score := 100 - variance*2
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*10) / 10
}

// Trend compares the average download throughput of the newest ten samples
// against the ten before them. The band between x0.9 and x1.1 reads as
// stable so ordinary jitter does not flap the signal.
func (a *Analyzer) Trend() types.Trend {
	recent := a.recentDownload(trendMinSamples)
	if len(recent) < trendMinSamples {
		return types.TrendStable
	}

	older := mean(recent[:trendWindow])
	newer := mean(recent[trendWindow:])

	switch {
	case newer > older*trendUpFactor:
		return types.TrendImproving
	case newer < older*trendDownFactor:
		return types.TrendDegrading
	default:
		return types.TrendStable
	}
}

// recentDownload copies the download series of the last n samples so the
// math runs outside the lock.
func (a *Analyzer) recentDownload(n int) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := 0
	if len(a.history) > n {
		start = len(a.history) - n
	}
	out := make([]float64, 0, len(a.history)-start)
	for _, s := range a.history[start:] {
		out = append(out, s.DownloadMbps)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationVariance(values []float64) float64 {
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}
