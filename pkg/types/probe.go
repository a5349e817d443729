package types

import "time"

// SpeedTestResult is a single speed test measurement. A result is immutable
// once produced; a successful run overwrites the previous result, a failed
// run leaves it in place and is reported separately.
type SpeedTestResult struct {
	ID           string    `json:"id"`
	DownloadMbps float64   `json:"download"`
	UploadMbps   float64   `json:"upload"`
	PingMs       float64   `json:"ping"`
	ServerName   string    `json:"server"`
	Timestamp    time.Time `json:"timestamp"`
}

// LatencyResult is the outcome of probing a single host. Exactly one of the
// measurement fields is meaningful depending on how the probe ran:
//
//   - Native probes carry numeric MinMs/MaxMs/AvgMs/LossPct.
//   - The external-ping fallback carries only Status ("reachable" or
//     "unreachable"); it is intentionally weaker and never reports RTT.
//   - A failed probe carries Error.
type LatencyResult struct {
	MinMs   float64 `json:"min,omitempty"`
	MaxMs   float64 `json:"max,omitempty"`
	AvgMs   float64 `json:"avg,omitempty"`
	LossPct float64 `json:"packet_loss"`
	Status  string  `json:"status,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Reachable reports whether the host answered at least one probe.
func (r LatencyResult) Reachable() bool {
	if r.Error != "" {
		return false
	}
	if r.Status != "" {
		return r.Status == "reachable"
	}
	return r.LossPct < 100
}

// Capabilities records which optional subsystems were detected at startup.
// A capability that is false here makes the corresponding operation return a
// structured "unavailable" result instead of failing.
type Capabilities struct {
	SpeedTest     bool `json:"speed_test"`
	NativeLatency bool `json:"native_latency"`
	SystemPing    bool `json:"system_ping"`
}
