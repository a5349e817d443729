package platform

import (
	"context"
	"sort"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/syncstream/netpulse/pkg/types"
)

// BandwidthByProcess ranks processes by how many inet connections they
// hold, descending, capped at max. Connection count is a proxy for
// bandwidth interest; per-process byte counters are not portably available.
// Processes that deny access are skipped.
func BandwidthByProcess(ctx context.Context, max int) ([]types.ProcessUsage, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, p := range procs {
		conns, err := p.ConnectionsWithContext(ctx)
		if err != nil || len(conns) == 0 {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		counts[name] += len(conns)
	}

	ranked := make([]types.ProcessUsage, 0, len(counts))
	for name, n := range counts {
		ranked = append(ranked, types.ProcessUsage{Name: name, Connections: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Connections != ranked[j].Connections {
			return ranked[i].Connections > ranked[j].Connections
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked, nil
}
