package results

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/syncstream/netpulse/pkg/types"
)

func newTestStore(t *testing.T, maxResults int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "netpulse.db"), maxResults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t, 100)

	in := types.SpeedTestResult{
		ID:           "run-1",
		DownloadMbps: 94.2,
		UploadMbps:   38.7,
		PingMs:       12.5,
		ServerName:   "http://speed.local",
		Timestamp:    time.Now().UTC(),
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored result")
	}
	if got.DownloadMbps != in.DownloadMbps || got.ServerName != in.ServerName {
		t.Errorf("Get = %+v, want %+v", got, in)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t, 100)
	got, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestSaveDuplicateIDIsNoop(t *testing.T) {
	s := newTestStore(t, 100)
	r := types.SpeedTestResult{ID: "dup", DownloadMbps: 10, Timestamp: time.Now().UTC()}
	if err := s.Save(r); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	r.DownloadMbps = 99
	if err := s.Save(r); err != nil {
		t.Fatalf("duplicate Save: %v", err)
	}
	got, err := s.Get("dup")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.DownloadMbps != 10 {
		t.Errorf("duplicate save overwrote the original: %v", got.DownloadMbps)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, 100)
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		err := s.Save(types.SpeedTestResult{
			ID:        id,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	got, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d results, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("List order = %s,%s, want c,b", got[0].ID, got[1].ID)
	}
}

func TestCleanupTrimsToMax(t *testing.T) {
	s := newTestStore(t, 2)
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		err := s.Save(types.SpeedTestResult{
			ID:        id,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	s.cleanup()

	got, err := s.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("after cleanup %d results remain, want 2", len(got))
	}
	for _, r := range got {
		if r.ID == "old" {
			t.Error("cleanup kept the oldest result")
		}
	}
}
