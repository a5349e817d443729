package types

import "time"

// NetworkSnapshot holds instantaneous network throughput derived from two
// consecutive raw counter readings. Rates are only defined when the elapsed
// interval between readings was positive; otherwise the previous snapshot
// is retained unchanged.
type NetworkSnapshot struct {
	DownloadRate float64 `json:"download_speed"`      // MB/s
	UploadRate   float64 `json:"upload_speed"`        // MB/s
	DownloadMbps float64 `json:"download_speed_mbps"` // Mbit/s
	UploadMbps   float64 `json:"upload_speed_mbps"`   // Mbit/s
	TotalSentGB  float64 `json:"total_sent"`
	TotalRecvGB  float64 `json:"total_recv"`
	PacketsSent  uint64  `json:"packets_sent"`
	PacketsRecv  uint64  `json:"packets_recv"`
	ErrorsIn     uint64  `json:"errors_in"`
	ErrorsOut    uint64  `json:"errors_out"`
	DropsIn      uint64  `json:"drops_in"`
	DropsOut     uint64  `json:"drops_out"`
}

// SystemSnapshot holds point-in-time system resource readings. No
// differencing is required; each field is read directly.
type SystemSnapshot struct {
	CPUPercent  float64   `json:"cpu_percent"`
	MemPercent  float64   `json:"memory_percent"`
	MemAvailGB  float64   `json:"memory_available"`
	DiskPercent float64   `json:"disk_usage"`
	BootTime    time.Time `json:"boot_time"`
}

// ConnectionRecord describes one active established connection.
type ConnectionRecord struct {
	LocalAddr  string `json:"local_addr"`
	RemoteAddr string `json:"remote_addr"`
	Status     string `json:"status"`
	PID        int32  `json:"pid"`
}

// InterfaceInfo is the IPv4 address information for one interface.
type InterfaceInfo struct {
	IPv4    string `json:"ipv4"`
	Netmask string `json:"netmask"`
}

// Snapshot is the immutable composite state published by the collector once
// per tick. Readers receive a copy; the collector replaces the whole value
// rather than mutating fields in place.
type Snapshot struct {
	Network       NetworkSnapshot    `json:"network"`
	System        SystemSnapshot     `json:"system"`
	Connections   []ConnectionRecord `json:"connections"`
	PacketLossPct float64            `json:"packet_loss"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Clone returns a deep copy so callers can hand snapshots out without
// sharing the connections slice.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Connections != nil {
		out.Connections = make([]ConnectionRecord, len(s.Connections))
		copy(out.Connections, s.Connections)
	}
	return &out
}

// ProcessUsage is one entry of the process bandwidth ranking: a process name
// and how many inet connections it currently holds.
type ProcessUsage struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}
