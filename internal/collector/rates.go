package collector

import (
	"time"

	"github.com/syncstream/netpulse/internal/platform"
	"github.com/syncstream/netpulse/pkg/types"
)

const (
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
)

// deriveNetwork turns two consecutive raw counter readings into an
// instantaneous NetworkSnapshot. The caller must only invoke it with
// elapsed > 0; rates are undefined otherwise.
func deriveNetwork(prev, curr platform.RawCounters, elapsed time.Duration) types.NetworkSnapshot {
	seconds := elapsed.Seconds()
	sentPerSec := float64(curr.BytesSent-prev.BytesSent) / seconds
	recvPerSec := float64(curr.BytesRecv-prev.BytesRecv) / seconds

	return types.NetworkSnapshot{
		DownloadRate: recvPerSec / mib,
		UploadRate:   sentPerSec / mib,
		DownloadMbps: recvPerSec * 8 / mib,
		UploadMbps:   sentPerSec * 8 / mib,
		TotalSentGB:  float64(curr.BytesSent) / gib,
		TotalRecvGB:  float64(curr.BytesRecv) / gib,
		PacketsSent:  curr.PacketsSent,
		PacketsRecv:  curr.PacketsRecv,
		ErrorsIn:     curr.ErrorsIn,
		ErrorsOut:    curr.ErrorsOut,
		DropsIn:      curr.DropsIn,
		DropsOut:     curr.DropsOut,
	}
}

// packetLossPct computes the outbound loss percentage from error and drop
// counters. Zero sent packets yield zero loss, and the result is clamped to
// [0,100] so pathological counter readings cannot escape the range.
func packetLossPct(c platform.RawCounters) float64 {
	if c.PacketsSent == 0 {
		return 0
	}
	loss := float64(c.ErrorsOut+c.DropsOut) / float64(c.PacketsSent) * 100
	if loss < 0 {
		return 0
	}
	if loss > 100 {
		return 100
	}
	return loss
}
