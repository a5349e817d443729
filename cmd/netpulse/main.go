package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

const version = "0.1.0"

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

const defaultServerURL = "http://localhost:5555"

func usage() {
	fmt.Fprintf(os.Stderr, `netpulse %s - network health CLI

Usage:
  netpulse [flags] <command> [args]

Commands:
  status             current snapshot, quality signals, connections
  speedtest          run a speed test against the configured servers
  latency [hosts]    probe latency (comma-separated hosts, default daemon config)
  history            stored speed test results
  buffer <mbps>      buffering prediction for a target bitrate
  health             daemon health and capabilities
  mcp                serve netpulse operations as MCP tools over stdio

Flags:
  -server URL        daemon address (default %s)
  -json              machine-readable output
  -timeout SECONDS   request timeout (default 120)
`, version, defaultServerURL)
}

func main() {
	serverURL := flag.String("server", defaultServerURL, "daemon address")
	jsonMode := flag.Bool("json", false, "machine-readable output")
	timeout := flag.Int("timeout", 120, "request timeout in seconds")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(exitUsage)
	}

	command, rest := args[0], args[1:]

	if command == "mcp" {
		os.Exit(runMCP(*serverURL))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	client := newAPIClient(*serverURL)
	format := newFormatter(*jsonMode)

	if err := dispatch(ctx, client, format, command, rest); err != nil {
		format.Error(err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}

func dispatch(ctx context.Context, client *apiClient, format *formatter, command string, args []string) error {
	switch command {
	case "status":
		stats, err := client.GetStats(ctx)
		if err != nil {
			return err
		}
		return format.Stats(stats)

	case "speedtest":
		result, err := client.RunSpeedTest(ctx)
		if err != nil {
			return err
		}
		return format.SpeedTest(result)

	case "latency":
		var hosts []string
		if len(args) > 0 {
			hosts = splitHosts(args[0])
		}
		results, err := client.TestLatency(ctx, hosts)
		if err != nil {
			return err
		}
		return format.Latency(results)

	case "history":
		history, err := client.GetHistory(ctx, 20)
		if err != nil {
			return err
		}
		return format.History(history)

	case "buffer":
		if len(args) == 0 {
			return fmt.Errorf("buffer requires a target bitrate in Mbps")
		}
		var bitrate float64
		if _, err := fmt.Sscanf(args[0], "%f", &bitrate); err != nil || bitrate <= 0 {
			return fmt.Errorf("invalid bitrate %q", args[0])
		}
		prediction, err := client.PredictBuffering(ctx, bitrate)
		if err != nil {
			return err
		}
		return format.Buffering(prediction)

	case "health":
		health, err := client.GetHealth(ctx)
		if err != nil {
			return err
		}
		return format.printJSON(health)

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func splitHosts(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
