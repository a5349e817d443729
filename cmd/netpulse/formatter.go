package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/term"

	"github.com/syncstream/netpulse/pkg/types"
)

// formatter renders command output. JSON mode prints machine-readable
// payloads; otherwise output is a compact human summary. Piped output
// drops the ANSI styling automatically.
type formatter struct {
	jsonMode bool
	colored  bool
}

func newFormatter(jsonMode bool) *formatter {
	return &formatter{
		jsonMode: jsonMode,
		colored:  term.IsTerminal(int(os.Stdout.Fd())),
	}
}

const (
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiReset = "\033[0m"
)

func (f *formatter) bold(s string) string {
	if !f.colored {
		return s
	}
	return ansiBold + s + ansiReset
}

func (f *formatter) dim(s string) string {
	if !f.colored {
		return s
	}
	return ansiDim + s + ansiReset
}

func (f *formatter) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (f *formatter) Stats(stats *statsResponse) error {
	if f.jsonMode {
		return f.printJSON(stats)
	}

	fmt.Println(f.bold("Network"))
	fmt.Printf("  Download     %8.2f Mbps  (%.2f MB/s)\n",
		stats.Network.DownloadMbps, stats.Network.DownloadRate)
	fmt.Printf("  Upload       %8.2f Mbps  (%.2f MB/s)\n",
		stats.Network.UploadMbps, stats.Network.UploadRate)
	fmt.Printf("  Packet loss  %8.2f %%\n", stats.PacketLossPct)
	fmt.Printf("  Total        %.2f GB sent, %.2f GB received\n",
		stats.Network.TotalSentGB, stats.Network.TotalRecvGB)

	fmt.Println(f.bold("System"))
	fmt.Printf("  CPU %.1f%%  Memory %.1f%% (%.1f GB free)  Disk %.1f%%\n",
		stats.System.CPUPercent, stats.System.MemPercent,
		stats.System.MemAvailGB, stats.System.DiskPercent)

	fmt.Println(f.bold("Quality"))
	fmt.Printf("  Stability    %.1f/100  trend: %s\n", stats.Stability, stats.Trend)
	fmt.Printf("  Recommended  %s (%s)\n", stats.Quality.Tier, stats.Quality.BitrateHint)
	if stats.Quality.Reason != "" {
		fmt.Printf("  %s\n", f.dim(stats.Quality.Reason))
	}

	if len(stats.Connections) > 0 {
		fmt.Printf("%s (%d)\n", f.bold("Connections"), len(stats.Connections))
		for _, conn := range stats.Connections {
			fmt.Printf("  %-24s -> %-24s %s\n", conn.LocalAddr, conn.RemoteAddr, f.dim(conn.Status))
		}
	}
	return nil
}

func (f *formatter) SpeedTest(result *types.SpeedTestResult) error {
	if f.jsonMode {
		return f.printJSON(result)
	}

	fmt.Println(f.bold("Speed test"))
	fmt.Printf("  Download  %8.2f Mbps\n", result.DownloadMbps)
	fmt.Printf("  Upload    %8.2f Mbps\n", result.UploadMbps)
	fmt.Printf("  Ping      %8.2f ms\n", result.PingMs)
	fmt.Printf("  Server    %s\n", result.ServerName)
	fmt.Printf("  %s\n", f.dim("id "+result.ID))
	return nil
}

func (f *formatter) Latency(results map[string]types.LatencyResult) error {
	if f.jsonMode {
		return f.printJSON(results)
	}

	hosts := make([]string, 0, len(results))
	for host := range results {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	fmt.Println(f.bold("Latency"))
	for _, host := range hosts {
		r := results[host]
		switch {
		case r.Error != "":
			fmt.Printf("  %-20s %s\n", host, f.dim("error: "+r.Error))
		case r.Status != "":
			fmt.Printf("  %-20s %s\n", host, r.Status)
		default:
			fmt.Printf("  %-20s avg %6.2f ms  min %6.2f  max %6.2f  loss %.0f%%\n",
				host, r.AvgMs, r.MinMs, r.MaxMs, r.LossPct)
		}
	}
	return nil
}

func (f *formatter) History(history *historyResponse) error {
	if f.jsonMode {
		return f.printJSON(history)
	}

	if history.Count == 0 {
		fmt.Println("No stored speed test results.")
		return nil
	}
	fmt.Println(f.bold("Speed test history"))
	for _, r := range history.Results {
		fmt.Printf("  %s  down %8.2f Mbps  up %8.2f Mbps  ping %6.2f ms  %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.DownloadMbps, r.UploadMbps, r.PingMs, f.dim(r.ServerName))
	}
	return nil
}

func (f *formatter) Buffering(p *types.BufferPrediction) error {
	if f.jsonMode {
		return f.printJSON(p)
	}

	fmt.Println(f.bold("Buffer prediction"))
	fmt.Printf("  Status      %s\n", p.Status)
	if p.Status == types.BufferLikely {
		fmt.Printf("  Est. buffer %.1f s\n", p.BufferSeconds)
	}
	fmt.Printf("  Confidence  %.1f%%\n", p.ConfidencePct)
	return nil
}

func (f *formatter) Error(err error) {
	fmt.Fprintf(os.Stderr, "netpulse: error: %v\n", err)
}
