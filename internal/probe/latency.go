package probe

import (
	"context"
	"math"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/errors"
	"github.com/syncstream/netpulse/pkg/types"
)

// LatencyProber measures round-trip time to a set of hosts. The native mode
// times a TCP connect to a well-known port, which needs no privileges. When
// native probing is disabled the prober shells out to the system ping and
// reports reachability only, never a numeric RTT.
type LatencyProber struct {
	probeCount int
	timeout    time.Duration
	port       int
	native     bool
	logger     *logging.Logger

	dialer *net.Dialer
}

func NewLatencyProber(probeCount int, timeout time.Duration, port int, native bool) *LatencyProber {
	return &LatencyProber{
		probeCount: probeCount,
		timeout:    timeout,
		port:       port,
		native:     native,
		logger:     logging.NewLogger("latency"),
		dialer:     &net.Dialer{},
	}
}

// TestLatency probes every host concurrently. One host failing, timing out,
// or not resolving never affects the others; its entry carries the error.
func (p *LatencyProber) TestLatency(ctx context.Context, hosts []string) (map[string]types.LatencyResult, error) {
	if len(hosts) == 0 {
		return nil, errors.ErrInvalidInput("no hosts specified")
	}

	results := make([]types.LatencyResult, len(hosts))
	var wg sync.WaitGroup
	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			if p.native {
				results[i] = p.probeNative(ctx, host)
			} else {
				results[i] = p.probeExternal(ctx, host)
			}
		}(i, host)
	}
	wg.Wait()

	out := make(map[string]types.LatencyResult, len(hosts))
	for i, host := range hosts {
		out[host] = results[i]
	}
	return out, nil
}

// probeNative times probeCount TCP connects within a single per-host
// timeout window.
func (p *LatencyProber) probeNative(ctx context.Context, host string) types.LatencyResult {
	hostCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(p.port))
	var rtts []float64
	var lastErr error

	for i := 0; i < p.probeCount; i++ {
		if hostCtx.Err() != nil {
			break
		}
		start := time.Now()
		conn, err := p.dialer.DialContext(hostCtx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		rtts = append(rtts, float64(time.Since(start))/float64(time.Millisecond))
	}

	if len(rtts) == 0 {
		msg := "request timed out"
		if lastErr != nil && !errors.IsContextError(lastErr) {
			msg = lastErr.Error()
		}
		return types.LatencyResult{LossPct: 100, Error: msg}
	}

	min, max, sum := rtts[0], rtts[0], 0.0
	for _, r := range rtts {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
		sum += r
	}
	loss := float64(p.probeCount-len(rtts)) / float64(p.probeCount) * 100

	return types.LatencyResult{
		MinMs:   round2(min),
		MaxMs:   round2(max),
		AvgMs:   round2(sum / float64(len(rtts))),
		LossPct: round2(loss),
	}
}

// probeExternal shells out to the system ping. Output parsing is deliberately
// coarse: exit status plus a scan for timing keywords, because ping output
// formats vary by platform and locale.
func (p *LatencyProber) probeExternal(ctx context.Context, host string) types.LatencyResult {
	hostCtx, cancel := context.WithTimeout(ctx, p.timeout*time.Duration(p.probeCount))
	defer cancel()

	var cmd *exec.Cmd
	count := strconv.Itoa(p.probeCount)
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(hostCtx, "ping", "-n", count, host)
	} else {
		waitSec := strconv.Itoa(int(math.Ceil(p.timeout.Seconds())))
		cmd = exec.CommandContext(hostCtx, "ping", "-c", count, "-W", waitSec, host)
	}

	out, err := cmd.CombinedOutput()
	if err != nil && len(out) == 0 {
		p.logger.Warn("ping command failed",
			logging.Field{Key: "host", Value: host},
			logging.Field{Key: "error", Value: err})
		return types.LatencyResult{LossPct: 100, Error: err.Error()}
	}

	if err == nil && hasPingTiming(string(out)) {
		return types.LatencyResult{Status: "reachable"}
	}
	return types.LatencyResult{Status: "unreachable", LossPct: 100}
}

func hasPingTiming(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "time=") || strings.Contains(lower, "time<") ||
		strings.Contains(lower, "ttl=")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
