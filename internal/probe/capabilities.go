package probe

import (
	"os/exec"

	"github.com/syncstream/netpulse/internal/config"
	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/types"
)

// DetectCapabilities inspects the configuration and environment once at
// startup. Operations backed by a missing capability stay callable but
// return structured "unavailable" results.
func DetectCapabilities(cfg *config.Config) types.Capabilities {
	caps := types.Capabilities{
		SpeedTest:     len(cfg.SpeedTestServers) > 0,
		NativeLatency: cfg.NativeLatency,
	}
	if _, err := exec.LookPath("ping"); err == nil {
		caps.SystemPing = true
	}

	if !caps.SpeedTest {
		logging.Warn("no speed test servers configured, speed test unavailable")
	}
	if !caps.NativeLatency && !caps.SystemPing {
		logging.Warn("native latency disabled and no ping binary found, latency probes degraded")
	}
	return caps
}
