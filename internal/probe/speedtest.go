// Package probe runs the on-demand measurements: HTTP speed tests against
// configured test servers and per-host latency probes.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/errors"
	"github.com/syncstream/netpulse/pkg/types"
)

const (
	selectionPingSamples = 3
	uploadChunkBytes     = 1024 * 1024
	readBufBytes         = 64 * 1024
)

// SpeedTester measures throughput against the best of a configured set of
// test servers. Runs are serialized; a second caller gets a BUSY error
// instead of a queued test.
type SpeedTester struct {
	servers    []string
	duration   time.Duration
	httpClient *http.Client
	logger     *logging.Logger

	inFlight atomic.Bool

	mu   sync.Mutex
	last *types.SpeedTestResult
}

func NewSpeedTester(servers []string, duration time.Duration) *SpeedTester {
	trimmed := make([]string, 0, len(servers))
	for _, s := range servers {
		if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	return &SpeedTester{
		servers:    trimmed,
		duration:   duration,
		httpClient: &http.Client{},
		logger:     logging.NewLogger("speedtest"),
	}
}

// Available reports whether any test servers are configured.
func (s *SpeedTester) Available() bool { return len(s.servers) > 0 }

// Last returns the most recent successful result, or nil if none exists.
func (s *SpeedTester) Last() *types.SpeedTestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := *s.last
	return &out
}

// Run executes one full speed test: server selection, a measured download,
// then a measured upload. The stored result is only replaced on success.
func (s *SpeedTester) Run(ctx context.Context) (*types.SpeedTestResult, error) {
	if !s.Available() {
		return nil, errors.ErrUnavailable("no speed test servers configured")
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, errors.ErrBusy("speed test already running")
	}
	defer s.inFlight.Store(false)

	server, pingMs, err := s.selectServer(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("server selected",
		logging.Field{Key: "server", Value: server},
		logging.Field{Key: "ping_ms", Value: pingMs})

	downMbps, err := s.downloadMeasured(ctx, server)
	if err != nil {
		return nil, errors.ErrProbeFailed("download measurement failed", err)
	}
	upMbps, err := s.uploadMeasured(ctx, server)
	if err != nil {
		return nil, errors.ErrProbeFailed("upload measurement failed", err)
	}

	result := &types.SpeedTestResult{
		ID:           uuid.NewString(),
		DownloadMbps: downMbps,
		UploadMbps:   upMbps,
		PingMs:       pingMs,
		ServerName:   server,
		Timestamp:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	out := *result
	return &out, nil
}

// selectServer health-checks every configured server and picks the one with
// the lowest average ping. All servers down is a probe failure.
func (s *SpeedTester) selectServer(ctx context.Context) (server string, pingMs float64, err error) {
	best := ""
	bestPing := 0.0

	for _, candidate := range s.servers {
		if err := s.healthCheck(ctx, candidate); err != nil {
			s.logger.Warn("server unhealthy, skipping",
				logging.Field{Key: "server", Value: candidate},
				logging.Field{Key: "error", Value: err})
			continue
		}
		ping, ok := s.measurePing(ctx, candidate, selectionPingSamples)
		if !ok {
			continue
		}
		if best == "" || ping < bestPing {
			best = candidate
			bestPing = ping
		}
	}

	if best == "" {
		return "", 0, errors.ErrProbeFailed("no healthy speed test server", nil)
	}
	return best, bestPing, nil
}

func (s *SpeedTester) healthCheck(ctx context.Context, server string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/health", nil)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (s *SpeedTester) measurePing(ctx context.Context, server string, samples int) (avgMs float64, ok bool) {
	var total time.Duration
	var good int

	for i := 0; i < samples; i++ {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/ping", nil)
		if err != nil {
			continue
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}
		total += time.Since(start)
		good++
	}

	if good == 0 {
		return 0, false
	}
	return float64(total) / float64(good) / float64(time.Millisecond), true
}

func (s *SpeedTester) downloadMeasured(ctx context.Context, server string) (mbps float64, err error) {
	durationSec := int(s.duration.Seconds())
	dlCtx, cancel := context.WithTimeout(ctx, s.duration+3*time.Second)
	defer cancel()

	reqURL := fmt.Sprintf("%s/download?duration=%d&chunk=%d", server, durationSec, uploadChunkBytes)
	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept-Encoding", "identity")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	var totalBytes int64
	buf := make([]byte, readBufBytes)
	for {
		n, readErr := resp.Body.Read(buf)
		totalBytes += int64(n)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, readErr
		}
	}

	elapsed := time.Since(start)
	if elapsed <= 0 || totalBytes == 0 {
		return 0, fmt.Errorf("download: no data transferred")
	}
	return float64(totalBytes*8) / elapsed.Seconds() / 1_000_000, nil
}

func (s *SpeedTester) uploadMeasured(ctx context.Context, server string) (mbps float64, err error) {
	upCtx, cancel := context.WithTimeout(ctx, s.duration+3*time.Second)
	defer cancel()

	payload := make([]byte, uploadChunkBytes)
	start := time.Now()
	var totalBytes int64
	iterations := 0

	for {
		if upCtx.Err() != nil {
			break
		}
		if iterations > 0 && time.Since(start) >= s.duration {
			break
		}

		req, err := http.NewRequestWithContext(upCtx, http.MethodPost, server+"/upload",
			bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("upload: status %d", resp.StatusCode)
		}
		totalBytes += int64(len(payload))
		iterations++
	}

	elapsed := time.Since(start)
	if elapsed <= 0 || totalBytes == 0 {
		return 0, fmt.Errorf("upload: no data transferred")
	}
	return float64(totalBytes*8) / elapsed.Seconds() / 1_000_000, nil
}
