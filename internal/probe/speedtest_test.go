package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	neterrors "github.com/syncstream/netpulse/pkg/errors"
)

// newTestSpeedServer serves the minimal speed test surface: health, ping,
// a fixed download payload, and an upload sink.
func newTestSpeedServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 256*1024))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSpeedTestRunProducesResult(t *testing.T) {
	srv := newTestSpeedServer(t, true)
	s := NewSpeedTester([]string{srv.URL}, 100*time.Millisecond)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.DownloadMbps <= 0 {
		t.Errorf("DownloadMbps = %v, want > 0", result.DownloadMbps)
	}
	if result.UploadMbps <= 0 {
		t.Errorf("UploadMbps = %v, want > 0", result.UploadMbps)
	}
	if result.ServerName != srv.URL {
		t.Errorf("ServerName = %q, want %q", result.ServerName, srv.URL)
	}
	if result.ID == "" {
		t.Error("result has no ID")
	}

	last := s.Last()
	if last == nil || last.ID != result.ID {
		t.Error("Last() does not return the run result")
	}
}

func TestSpeedTestUnavailableWithoutServers(t *testing.T) {
	s := NewSpeedTester(nil, time.Second)
	if s.Available() {
		t.Fatal("Available() = true with no servers")
	}

	_, err := s.Run(context.Background())
	var pe *neterrors.ProbeError
	if !asProbeError(err, &pe) || pe.Code != neterrors.ErrCodeUnavailable {
		t.Fatalf("Run error = %v, want UNAVAILABLE", err)
	}
}

func TestSpeedTestSkipsUnhealthyServers(t *testing.T) {
	bad := newTestSpeedServer(t, false)
	good := newTestSpeedServer(t, true)
	s := NewSpeedTester([]string{bad.URL, good.URL}, 100*time.Millisecond)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ServerName != good.URL {
		t.Errorf("selected %q, want healthy server %q", result.ServerName, good.URL)
	}
}

func TestSpeedTestAllServersDown(t *testing.T) {
	bad := newTestSpeedServer(t, false)
	s := NewSpeedTester([]string{bad.URL}, 100*time.Millisecond)

	_, err := s.Run(context.Background())
	var pe *neterrors.ProbeError
	if !asProbeError(err, &pe) || pe.Code != neterrors.ErrCodeProbeFailed {
		t.Fatalf("Run error = %v, want PROBE_FAILED", err)
	}
}

func TestSpeedTestFailureKeepsLastResult(t *testing.T) {
	srv := newTestSpeedServer(t, true)
	s := NewSpeedTester([]string{srv.URL}, 100*time.Millisecond)

	first, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	srv.Close()
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("Run against closed server succeeded")
	}

	last := s.Last()
	if last == nil || last.ID != first.ID {
		t.Error("failed run replaced the stored result")
	}
}

func TestSpeedTestSerialized(t *testing.T) {
	srv := newTestSpeedServer(t, true)
	s := NewSpeedTester([]string{srv.URL}, 100*time.Millisecond)

	s.inFlight.Store(true)
	_, err := s.Run(context.Background())
	var pe *neterrors.ProbeError
	if !asProbeError(err, &pe) || pe.Code != neterrors.ErrCodeBusy {
		t.Fatalf("Run error = %v, want BUSY", err)
	}
	s.inFlight.Store(false)
}

func asProbeError(err error, target **neterrors.ProbeError) bool {
	if err == nil {
		return false
	}
	pe, ok := err.(*neterrors.ProbeError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
