package platform

import (
	"context"
	"fmt"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/syncstream/netpulse/pkg/types"
)

// ConnectionReader enumerates active inet connections.
type ConnectionReader struct{}

func NewConnectionReader() *ConnectionReader {
	return &ConnectionReader{}
}

// Read returns the currently established connections, capped at max entries.
// Non-established connections are skipped.
func (r *ConnectionReader) Read(ctx context.Context, max int) ([]types.ConnectionRecord, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	records := make([]types.ConnectionRecord, 0, max)
	for _, conn := range conns {
		if conn.Status != "ESTABLISHED" {
			continue
		}
		records = append(records, types.ConnectionRecord{
			LocalAddr:  formatAddr(conn.Laddr),
			RemoteAddr: formatAddr(conn.Raddr),
			Status:     conn.Status,
			PID:        conn.Pid,
		})
		if len(records) >= max {
			break
		}
	}
	return records, nil
}

func formatAddr(a psnet.Addr) string {
	if a.IP == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}
