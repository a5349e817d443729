// Package advisor maps measured link conditions to streaming guidance.
// Everything here is pure; the functions carry no state and no IO.
package advisor

import (
	"math"

	"github.com/syncstream/netpulse/pkg/types"
)

// qualityTier is one row of the recommendation table, checked top-down
// against the measured download rate. Lower bounds are inclusive.
type qualityTier struct {
	minMbps float64
	tier    string
	bitrate string
}

var qualityTiers = []qualityTier{
	{50, "4K", "25-45 Mbps"},
	{25, "1440p", "16 Mbps"},
	{15, "1080p60", "12 Mbps"},
	{10, "1080p", "8 Mbps"},
	{5, "720p", "5 Mbps"},
	{3, "480p", "2.5 Mbps"},
}

// lossCeilingPct is the packet-loss level past which throughput stops
// mattering; retransmissions will stall anything above SD.
const lossCeilingPct = 5

// RecommendQuality returns the highest streaming tier the measured link
// supports. Packet loss above the ceiling overrides throughput entirely.
func RecommendQuality(downloadMbps, packetLossPct float64) types.QualityRecommendation {
	if packetLossPct > lossCeilingPct {
		return types.QualityRecommendation{
			Tier:        "480p",
			BitrateHint: "2.5 Mbps",
			Reason:      "high packet loss detected",
		}
	}
	for _, q := range qualityTiers {
		if downloadMbps >= q.minMbps {
			return types.QualityRecommendation{Tier: q.tier, BitrateHint: q.bitrate}
		}
	}
	return types.QualityRecommendation{Tier: "360p", BitrateHint: "1 Mbps"}
}

// headroomFactor is how much download capacity a stream needs relative to
// its bitrate before playback is considered safe.
const headroomFactor = 1.5

// PredictBuffering estimates whether a stream at the target bitrate will
// stall on the measured link, and with what confidence.
func PredictBuffering(downloadMbps, targetBitrateMbps float64) types.BufferPrediction {
	required := targetBitrateMbps * headroomFactor

	if downloadMbps >= required {
		confidence := downloadMbps / required * 50
		if confidence > 100 {
			confidence = 100
		}
		return types.BufferPrediction{
			Status:        types.BufferHealthy,
			BufferSeconds: 0,
			ConfidencePct: math.Round(confidence*10) / 10,
		}
	}

	buffer := math.Round((required-downloadMbps)*10*10) / 10
	confidence := 100 - buffer*10
	if confidence < 0 {
		confidence = 0
	}
	return types.BufferPrediction{
		Status:        types.BufferLikely,
		BufferSeconds: buffer,
		ConfidencePct: confidence,
	}
}
