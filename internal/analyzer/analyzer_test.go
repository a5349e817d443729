package analyzer

import (
	"testing"
	"time"

	"github.com/syncstream/netpulse/pkg/types"
)

func addSamples(a *Analyzer, downloads ...float64) {
	for _, d := range downloads {
		a.AddSample(Sample{DownloadMbps: d, Timestamp: time.Unix(0, 0)})
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestStabilityScoreNeutralUntilTenSamples(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(50, 9)...)
	if got := a.StabilityScore(); got != 50 {
		t.Errorf("StabilityScore with 9 samples = %v, want 50", got)
	}
}

func TestStabilityScorePerfectlySteady(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(42.5, 30)...)
	if got := a.StabilityScore(); got != 100 {
		t.Errorf("StabilityScore for zero variance = %v, want 100", got)
	}
}

func TestStabilityScorePenalizesVariance(t *testing.T) {
	a := New(nil, time.Second, 60)
	// Alternating 40/60: mean 50, every deviation 10, variance 100.
	// 100 - 100*2 clamps to 0.
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			addSamples(a, 40)
		} else {
			addSamples(a, 60)
		}
	}
	if got := a.StabilityScore(); got != 0 {
		t.Errorf("StabilityScore for variance 100 = %v, want 0", got)
	}
}

func TestStabilityScoreModerateJitter(t *testing.T) {
	a := New(nil, time.Second, 60)
	// Alternating 49/51: variance 1, score 98.0.
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			addSamples(a, 49)
		} else {
			addSamples(a, 51)
		}
	}
	if got := a.StabilityScore(); got != 98 {
		t.Errorf("StabilityScore for variance 1 = %v, want 98", got)
	}
}

func TestStabilityScoreUsesOnlyLastThirty(t *testing.T) {
	a := New(nil, time.Second, 60)
	// Wildly unstable prefix followed by 30 steady samples: the prefix must
	// not count.
	addSamples(a, 0, 100, 0, 100, 0, 100)
	addSamples(a, repeat(20, 30)...)
	if got := a.StabilityScore(); got != 100 {
		t.Errorf("StabilityScore ignoring old samples = %v, want 100", got)
	}
}

func TestTrendStableUntilTwentySamples(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(10, 19)...)
	if got := a.Trend(); got != types.TrendStable {
		t.Errorf("Trend with 19 samples = %v, want stable", got)
	}
}

func TestTrendImproving(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(10, 10)...)
	addSamples(a, repeat(12, 10)...) // 12 > 10*1.1
	if got := a.Trend(); got != types.TrendImproving {
		t.Errorf("Trend = %v, want improving", got)
	}
}

func TestTrendDegrading(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(10, 10)...)
	addSamples(a, repeat(8, 10)...) // 8 < 10*0.9
	if got := a.Trend(); got != types.TrendDegrading {
		t.Errorf("Trend = %v, want degrading", got)
	}
}

func TestTrendStableWithinBand(t *testing.T) {
	a := New(nil, time.Second, 60)
	addSamples(a, repeat(10, 10)...)
	addSamples(a, repeat(10.5, 10)...) // within x1.1
	if got := a.Trend(); got != types.TrendStable {
		t.Errorf("Trend = %v, want stable", got)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	a := New(nil, time.Second, 5)
	addSamples(a, 1, 2, 3, 4, 5, 6, 7)
	if got := a.SampleCount(); got != 5 {
		t.Fatalf("SampleCount = %d, want 5", got)
	}
	// Window must now be {3..7}; only the survivors feed the math.
	want := mean([]float64{3, 4, 5, 6, 7})
	if got := mean(a.recentDownload(5)); got != want {
		t.Errorf("window mean = %v, want %v", got, want)
	}
}
