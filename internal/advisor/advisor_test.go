package advisor

import (
	"testing"

	"github.com/syncstream/netpulse/pkg/types"
)

func TestRecommendQualityTiers(t *testing.T) {
	tests := []struct {
		name     string
		download float64
		loss     float64
		tier     string
		bitrate  string
	}{
		{"4k", 80, 0, "4K", "25-45 Mbps"},
		{"4k lower bound", 50, 0, "4K", "25-45 Mbps"},
		{"1440p", 30, 0, "1440p", "16 Mbps"},
		{"1080p60", 15, 0, "1080p60", "12 Mbps"},
		{"1080p", 10, 0, "1080p", "8 Mbps"},
		{"720p", 7, 0, "720p", "5 Mbps"},
		{"480p", 3, 0, "480p", "2.5 Mbps"},
		{"floor", 1.5, 0, "360p", "1 Mbps"},
		{"zero", 0, 0, "360p", "1 Mbps"},
		{"just below 4k", 49.9, 0, "1440p", "16 Mbps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecommendQuality(tt.download, tt.loss)
			if got.Tier != tt.tier || got.BitrateHint != tt.bitrate {
				t.Errorf("RecommendQuality(%v, %v) = %v/%v, want %v/%v",
					tt.download, tt.loss, got.Tier, got.BitrateHint, tt.tier, tt.bitrate)
			}
		})
	}
}

func TestRecommendQualityLossOverridesSpeed(t *testing.T) {
	got := RecommendQuality(100, 6)
	if got.Tier != "480p" {
		t.Errorf("Tier = %q, want 480p despite 100 Mbps", got.Tier)
	}
	if got.Reason != "high packet loss detected" {
		t.Errorf("Reason = %q", got.Reason)
	}

	// Exactly 5%% loss is still tolerated.
	if got := RecommendQuality(100, 5); got.Tier != "4K" {
		t.Errorf("Tier at 5%% loss = %q, want 4K", got.Tier)
	}
}

func TestPredictBufferingHealthy(t *testing.T) {
	// 30 Mbps down, 8 Mbps target: required 12, confidence 30/12*50 = 125 -> 100.
	got := PredictBuffering(30, 8)
	if got.Status != types.BufferHealthy {
		t.Fatalf("Status = %v, want healthy", got.Status)
	}
	if got.BufferSeconds != 0 {
		t.Errorf("BufferSeconds = %v, want 0", got.BufferSeconds)
	}
	if got.ConfidencePct != 100 {
		t.Errorf("ConfidencePct = %v, want 100 (capped)", got.ConfidencePct)
	}
}

func TestPredictBufferingHealthyPartialConfidence(t *testing.T) {
	// 13 Mbps down, 8 Mbps target: required 12, confidence 13/12*50 = 54.2.
	got := PredictBuffering(13, 8)
	if got.Status != types.BufferHealthy {
		t.Fatalf("Status = %v, want healthy", got.Status)
	}
	if got.ConfidencePct != 54.2 {
		t.Errorf("ConfidencePct = %v, want 54.2", got.ConfidencePct)
	}
}

func TestPredictBufferingLikely(t *testing.T) {
	// 10 Mbps down, 8 Mbps target: required 12, deficit 2, buffer 20s,
	// confidence clamps to 0.
	got := PredictBuffering(10, 8)
	if got.Status != types.BufferLikely {
		t.Fatalf("Status = %v, want buffering_likely", got.Status)
	}
	if got.BufferSeconds != 20 {
		t.Errorf("BufferSeconds = %v, want 20", got.BufferSeconds)
	}
	if got.ConfidencePct != 0 {
		t.Errorf("ConfidencePct = %v, want 0", got.ConfidencePct)
	}
}

func TestPredictBufferingNearMiss(t *testing.T) {
	// 11.5 Mbps down, 8 Mbps target: required 12, buffer 5s, confidence 50.
	got := PredictBuffering(11.5, 8)
	if got.Status != types.BufferLikely {
		t.Fatalf("Status = %v, want buffering_likely", got.Status)
	}
	if got.BufferSeconds != 5 {
		t.Errorf("BufferSeconds = %v, want 5", got.BufferSeconds)
	}
	if got.ConfidencePct != 50 {
		t.Errorf("ConfidencePct = %v, want 50", got.ConfidencePct)
	}
}

func TestPredictBufferingBoundary(t *testing.T) {
	// Exactly at the requirement counts as healthy.
	got := PredictBuffering(12, 8)
	if got.Status != types.BufferHealthy {
		t.Errorf("Status at exact requirement = %v, want healthy", got.Status)
	}
	if got.ConfidencePct != 50 {
		t.Errorf("ConfidencePct = %v, want 50", got.ConfidencePct)
	}
}
