package collector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/syncstream/netpulse/internal/platform"
	"github.com/syncstream/netpulse/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

type fakeCounters struct {
	readings []platform.RawCounters
	idx      int
	err      error
}

func (f *fakeCounters) Read(ctx context.Context) (platform.RawCounters, error) {
	if f.err != nil {
		return platform.RawCounters{}, f.err
	}
	r := f.readings[f.idx]
	if f.idx < len(f.readings)-1 {
		f.idx++
	}
	return r, nil
}

type fakeSystem struct {
	snap types.SystemSnapshot
}

func (f *fakeSystem) Read(ctx context.Context) types.SystemSnapshot { return f.snap }

type fakeConns struct {
	records []types.ConnectionRecord
	err     error
}

func (f *fakeConns) Read(ctx context.Context, max int) ([]types.ConnectionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > max {
		return f.records[:max], nil
	}
	return f.records, nil
}

func newTestCollector(counters *fakeCounters, clock *fakeClock) *Collector {
	return New(time.Second, 10,
		WithClock(clock),
		WithSources(counters, &fakeSystem{}, &fakeConns{}),
	)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTickComputesRatesFromDeltas(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	counters := &fakeCounters{readings: []platform.RawCounters{
		{BytesSent: 1000, BytesRecv: 2000, PacketsSent: 10, PacketsRecv: 20},
		{BytesSent: 1000 + 2*1024*1024, BytesRecv: 2000 + 4*1024*1024, PacketsSent: 30, PacketsRecv: 60},
	}}
	c := newTestCollector(counters, clock)

	c.Tick(context.Background()) // baseline
	clock.advance(2 * time.Second)
	c.Tick(context.Background())

	snap := c.Snapshot()
	// 4 MiB received over 2s = 2 MB/s = 16 Mbps
	if !almostEqual(snap.Network.DownloadRate, 2) {
		t.Errorf("DownloadRate = %v, want 2", snap.Network.DownloadRate)
	}
	if !almostEqual(snap.Network.DownloadMbps, 16) {
		t.Errorf("DownloadMbps = %v, want 16", snap.Network.DownloadMbps)
	}
	// 2 MiB sent over 2s = 1 MB/s = 8 Mbps
	if !almostEqual(snap.Network.UploadRate, 1) {
		t.Errorf("UploadRate = %v, want 1", snap.Network.UploadRate)
	}
	if !almostEqual(snap.Network.UploadMbps, 8) {
		t.Errorf("UploadMbps = %v, want 8", snap.Network.UploadMbps)
	}
	if snap.Network.PacketsSent != 30 || snap.Network.PacketsRecv != 60 {
		t.Errorf("packet counters = %d/%d, want 30/60",
			snap.Network.PacketsSent, snap.Network.PacketsRecv)
	}
}

func TestTickFirstReadingIsBaselineOnly(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	counters := &fakeCounters{readings: []platform.RawCounters{
		{BytesSent: 5 << 30, BytesRecv: 9 << 30},
	}}
	c := newTestCollector(counters, clock)

	c.Tick(context.Background())

	snap := c.Snapshot()
	if snap.Network.DownloadMbps != 0 || snap.Network.UploadMbps != 0 {
		t.Errorf("rates after baseline tick = %v/%v, want 0/0",
			snap.Network.DownloadMbps, snap.Network.UploadMbps)
	}
}

func TestTickZeroElapsedRetainsPreviousNetwork(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	counters := &fakeCounters{readings: []platform.RawCounters{
		{BytesRecv: 1000},
		{BytesRecv: 1024*1024 + 1000},
		{BytesRecv: 9 * 1024 * 1024},
	}}
	c := newTestCollector(counters, clock)

	c.Tick(context.Background())
	clock.advance(time.Second)
	c.Tick(context.Background())
	before := c.Snapshot().Network

	// Clock does not advance: elapsed == 0, rates must not be recomputed.
	c.Tick(context.Background())
	after := c.Snapshot().Network

	if after != before {
		t.Errorf("network snapshot changed on zero elapsed: %+v != %+v", after, before)
	}
}

func TestTickCounterFailureRetainsPreviousValues(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	counters := &fakeCounters{readings: []platform.RawCounters{
		{BytesRecv: 0},
		{BytesRecv: 1024 * 1024},
	}}
	c := newTestCollector(counters, clock)

	c.Tick(context.Background())
	clock.advance(time.Second)
	c.Tick(context.Background())
	before := c.Snapshot().Network

	counters.err = errors.New("proc unavailable")
	clock.advance(time.Second)
	c.Tick(context.Background())

	after := c.Snapshot().Network
	if after != before {
		t.Errorf("network snapshot changed after failed read: %+v != %+v", after, before)
	}

	// Recovery on the next successful tick.
	counters.err = nil
	clock.advance(time.Second)
	c.Tick(context.Background())
	if got := c.Snapshot().Network; got != before {
		// Counters did not move between the last two successful reads, so
		// rates drop to zero; the point is the loop kept going.
		if got.DownloadMbps != 0 {
			t.Errorf("DownloadMbps after recovery = %v, want 0", got.DownloadMbps)
		}
	}
}

func TestPacketLossPct(t *testing.T) {
	tests := []struct {
		name string
		c    platform.RawCounters
		want float64
	}{
		{"zero sent", platform.RawCounters{PacketsSent: 0, ErrorsOut: 5}, 0},
		{"no loss", platform.RawCounters{PacketsSent: 100}, 0},
		{"errors and drops", platform.RawCounters{PacketsSent: 100, ErrorsOut: 3, DropsOut: 2}, 5},
		{"clamped", platform.RawCounters{PacketsSent: 10, ErrorsOut: 100}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := packetLossPct(tt.c); !almostEqual(got, tt.want) {
				t.Errorf("packetLossPct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTickPublishesPacketLoss(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	counters := &fakeCounters{readings: []platform.RawCounters{
		{PacketsSent: 100},
		{PacketsSent: 200, ErrorsOut: 10, DropsOut: 10},
	}}
	c := newTestCollector(counters, clock)

	c.Tick(context.Background())
	clock.advance(time.Second)
	c.Tick(context.Background())

	if got := c.Snapshot().PacketLossPct; !almostEqual(got, 10) {
		t.Errorf("PacketLossPct = %v, want 10", got)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	conns := &fakeConns{records: []types.ConnectionRecord{
		{LocalAddr: "10.0.0.2:443", RemoteAddr: "1.2.3.4:52000", Status: "ESTABLISHED", PID: 42},
	}}
	c := New(time.Second, 10,
		WithClock(clock),
		WithSources(&fakeCounters{readings: []platform.RawCounters{{}}}, &fakeSystem{}, conns),
	)
	c.Tick(context.Background())

	first := c.Snapshot()
	first.Connections[0].LocalAddr = "mutated"

	second := c.Snapshot()
	if second.Connections[0].LocalAddr != "10.0.0.2:443" {
		t.Error("mutating a returned snapshot leaked into the published state")
	}
}

func TestStartIsIdempotentAndStops(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCollector(&fakeCounters{readings: []platform.RawCounters{{}}}, clock)

	c.Start()
	c.Start() // no-op
	if !c.Running() {
		t.Fatal("collector not running after Start")
	}

	c.Stop()
	c.Stop() // no-op
	if c.Running() {
		t.Fatal("collector still running after Stop")
	}
}
