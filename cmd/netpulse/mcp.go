package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// runMCP serves the daemon's operations as MCP tools over stdio. Agents can
// spawn `netpulse mcp` and query network health directly.
func runMCP(serverURL string) int {
	s := server.NewMCPServer(
		"netpulse",
		version,
		server.WithToolCapabilities(true),
	)

	client := newAPIClient(serverURL)

	statsTool := mcp.NewTool("network_stats",
		mcp.WithDescription("Current network snapshot: throughput, packet loss, system load, active connections, stability score, trend, and a streaming quality recommendation. Instant, uses the daemon's rolling samples."),
	)
	s.AddTool(statsTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		statsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		stats, err := client.GetStats(statsCtx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats request failed: %v", err)), nil
		}
		return jsonToolResult(stats)
	})

	speedTool := mcp.NewTool("speed_test",
		mcp.WithDescription("Run a full speed test against the daemon's configured test servers. Returns download/upload Mbps, ping, and the selected server. Takes ~10-15 seconds."),
	)
	s.AddTool(speedTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		testCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		result, err := client.RunSpeedTest(testCtx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("speed test failed: %v", err)), nil
		}
		return jsonToolResult(result)
	})

	latencyTool := mcp.NewTool("latency_test",
		mcp.WithDescription("Probe round-trip latency to a set of hosts (min/avg/max/loss per host). Defaults to the daemon's configured hosts."),
		mcp.WithString("hosts",
			mcp.Description("Comma-separated hostnames or IPs (optional)"),
		),
	)
	s.AddTool(latencyTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var hosts []string
		if raw := req.GetString("hosts", ""); raw != "" {
			hosts = splitHosts(raw)
		}
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		results, err := client.TestLatency(probeCtx, hosts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("latency test failed: %v", err)), nil
		}
		return jsonToolResult(results)
	})

	bufferTool := mcp.NewTool("buffer_prediction",
		mcp.WithDescription("Predict whether streaming at a target bitrate would buffer on the current connection."),
		mcp.WithNumber("bitrate",
			mcp.Description("Target stream bitrate in Mbps"),
			mcp.Required(),
		),
	)
	s.AddTool(bufferTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bitrate := req.GetFloat("bitrate", 0)
		if bitrate <= 0 {
			return mcp.NewToolResultError("bitrate must be > 0"), nil
		}
		predCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		prediction, err := client.PredictBuffering(predCtx, bitrate)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("prediction failed: %v", err)), nil
		}
		return jsonToolResult(prediction)
	})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "netpulse mcp: error: %v\n", err)
		return exitFailure
	}
	return exitSuccess
}

func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
