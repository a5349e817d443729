package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/syncstream/netpulse/pkg/types"
)

// apiClient is a thin HTTP client for the netpulsed daemon API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// statsResponse mirrors the daemon's /network/stats payload.
type statsResponse struct {
	Network       types.NetworkSnapshot       `json:"network"`
	System        types.SystemSnapshot        `json:"system"`
	Connections   []types.ConnectionRecord    `json:"connections"`
	PacketLossPct float64                     `json:"packet_loss"`
	Quality       types.QualityRecommendation `json:"quality"`
	Stability     float64                     `json:"stability_score"`
	Trend         types.Trend                 `json:"trend"`
	Timestamp     time.Time                   `json:"timestamp"`
}

type healthResponse struct {
	Status       string             `json:"status"`
	Collecting   bool               `json:"collecting"`
	Samples      int                `json:"samples"`
	Capabilities types.Capabilities `json:"capabilities"`
}

type historyResponse struct {
	Results []types.SpeedTestResult `json:"results"`
	Count   int                     `json:"count"`
}

func (c *apiClient) GetStats(ctx context.Context) (*statsResponse, error) {
	var out statsResponse
	if err := c.get(ctx, "/api/v1/network/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) GetHealth(ctx context.Context) (*healthResponse, error) {
	var out healthResponse
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) RunSpeedTest(ctx context.Context) (*types.SpeedTestResult, error) {
	var out types.SpeedTestResult
	if err := c.post(ctx, "/api/v1/network/speedtest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) TestLatency(ctx context.Context, hosts []string) (map[string]types.LatencyResult, error) {
	var body any
	if len(hosts) > 0 {
		body = map[string][]string{"hosts": hosts}
	}
	out := make(map[string]types.LatencyResult)
	if err := c.post(ctx, "/api/v1/network/latency", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) GetHistory(ctx context.Context, limit int) (*historyResponse, error) {
	var out historyResponse
	path := fmt.Sprintf("/api/v1/speedtest/history?limit=%d", limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) PredictBuffering(ctx context.Context, bitrateMbps float64) (*types.BufferPrediction, error) {
	var out types.BufferPrediction
	body := map[string]float64{"bitrate": bitrateMbps}
	if err := c.post(ctx, "/api/v1/network/buffer-prediction", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *apiClient) post(ctx context.Context, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dst)
}

func (c *apiClient) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
