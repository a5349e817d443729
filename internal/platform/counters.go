// Package platform reads raw OS telemetry through gopsutil: cumulative
// network counters, system resource usage, connection tables, interface
// addresses, routing information and per-process connection counts. It
// returns raw readings only; rate derivation happens in the collector.
package platform

import (
	"context"
	"fmt"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// RawCounters is one reading of the machine-wide cumulative network
// counters. Values only ever grow (modulo counter wrap on reboot), so two
// consecutive readings can be differenced into rates.
type RawCounters struct {
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64
	ErrorsIn    uint64
	ErrorsOut   uint64
	DropsIn     uint64
	DropsOut    uint64
}

// CounterReader reads the current cumulative counters.
type CounterReader struct{}

func NewCounterReader() *CounterReader {
	return &CounterReader{}
}

// Read returns the combined counters across all interfaces.
func (r *CounterReader) Read(ctx context.Context) (RawCounters, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return RawCounters{}, fmt.Errorf("read io counters: %w", err)
	}
	if len(counters) == 0 {
		return RawCounters{}, fmt.Errorf("no io counters reported")
	}
	c := counters[0]
	return RawCounters{
		BytesSent:   c.BytesSent,
		BytesRecv:   c.BytesRecv,
		PacketsSent: c.PacketsSent,
		PacketsRecv: c.PacketsRecv,
		ErrorsIn:    c.Errin,
		ErrorsOut:   c.Errout,
		DropsIn:     c.Dropin,
		DropsOut:    c.Dropout,
	}, nil
}
