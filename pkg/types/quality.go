package types

// Trend classifies the direction of recent throughput history.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// QualityRecommendation names the highest streaming tier the current network
// conditions support. Reason is set when something other than raw speed
// forced the choice.
type QualityRecommendation struct {
	Tier        string `json:"quality"`
	BitrateHint string `json:"bitrate,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// BufferStatus is the outcome class of a buffering prediction.
type BufferStatus string

const (
	BufferHealthy BufferStatus = "healthy"
	BufferLikely  BufferStatus = "buffering_likely"
)

// BufferPrediction estimates buffering behaviour for a target bitrate. The
// buffer seconds figure is a linear heuristic, not a physical model.
type BufferPrediction struct {
	Status        BufferStatus `json:"status"`
	BufferSeconds float64      `json:"buffer_time"`
	ConfidencePct float64      `json:"confidence"`
}
