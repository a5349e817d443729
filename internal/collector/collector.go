// Package collector runs the periodic sampling loop that keeps the current
// network/system snapshot up to date. The collector is the sole writer of
// the snapshot; it publishes each tick's result by replacing an immutable
// value, so readers never observe a partial update.
package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/internal/platform"
	"github.com/syncstream/netpulse/pkg/types"
)

// CounterSource reads raw cumulative network counters.
type CounterSource interface {
	Read(ctx context.Context) (platform.RawCounters, error)
}

// SystemSource reads instantaneous system resource usage.
type SystemSource interface {
	Read(ctx context.Context) types.SystemSnapshot
}

// ConnectionSource enumerates established connections up to a cap.
type ConnectionSource interface {
	Read(ctx context.Context, max int) ([]types.ConnectionRecord, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Collector struct {
	counters CounterSource
	system   SystemSource
	conns    ConnectionSource
	clock    Clock

	interval time.Duration
	maxConns int

	snapshot atomic.Pointer[types.Snapshot]

	// Differencing state, touched only by the tick.
	prevRaw  platform.RawCounters
	prevTime time.Time
	hasPrev  bool

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex // guards start/stop transitions
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the wall clock, for tests.
func WithClock(clock Clock) Option {
	return func(c *Collector) { c.clock = clock }
}

// WithSources overrides the platform sources, for tests.
func WithSources(counters CounterSource, system SystemSource, conns ConnectionSource) Option {
	return func(c *Collector) {
		c.counters = counters
		c.system = system
		c.conns = conns
	}
}

func New(interval time.Duration, maxConns int, opts ...Option) *Collector {
	c := &Collector{
		counters: platform.NewCounterReader(),
		system:   platform.NewSystemReader(),
		conns:    platform.NewConnectionReader(),
		clock:    realClock{},
		interval: interval,
		maxConns: maxConns,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&types.Snapshot{Timestamp: c.clock.Now()})
	return c
}

// Start begins the periodic sampling loop. Calling Start while the loop is
// already running has no additional effect.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.run(c.stopCh)
	logging.Info("collector started",
		logging.Field{Key: "interval", Value: c.interval})
}

// Stop halts future ticks. An in-flight tick completes before Stop returns.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
	logging.Info("collector stopped")
}

// Running reports whether the sampling loop is active.
func (c *Collector) Running() bool {
	return c.running.Load()
}

// Snapshot returns a consistent copy of the current state. Safe to call
// concurrently with the tick.
func (c *Collector) Snapshot() *types.Snapshot {
	return c.snapshot.Load().Clone()
}

// run executes one tick per interval. The tick runs synchronously inside
// this goroutine, so there is never more than one in flight; if a tick
// overruns the interval, the ticker drops the missed firings and the loop
// simply resumes on the next one.
func (c *Collector) run(stopCh chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Tick(context.Background())
		case <-stopCh:
			return
		}
	}
}

// Tick performs one sampling cycle. Any single read failure retains the
// previous value for that section and never stops the loop.
func (c *Collector) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	prev := c.snapshot.Load()
	next := prev.Clone()
	now := c.clock.Now()
	next.Timestamp = now

	raw, err := c.counters.Read(ctx)
	if err != nil {
		logging.Warn("tick: counter read failed, retaining previous sample",
			logging.Field{Key: "error", Value: err})
	} else {
		if c.hasPrev {
			if elapsed := now.Sub(c.prevTime); elapsed > 0 {
				next.Network = deriveNetwork(c.prevRaw, raw, elapsed)
				next.PacketLossPct = packetLossPct(raw)
			}
		}
		c.prevRaw = raw
		c.prevTime = now
		c.hasPrev = true
	}

	next.System = c.system.Read(ctx)

	if conns, err := c.conns.Read(ctx, c.maxConns); err != nil {
		logging.Warn("tick: connection read failed, retaining previous list",
			logging.Field{Key: "error", Value: err})
	} else {
		next.Connections = conns
	}

	c.snapshot.Store(next)
}
