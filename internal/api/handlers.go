package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/syncstream/netpulse/internal/advisor"
	"github.com/syncstream/netpulse/internal/config"
	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/internal/platform"
	"github.com/syncstream/netpulse/pkg/errors"
	"github.com/syncstream/netpulse/pkg/types"
)

const maxRequestBody = 4 * 1024

// SnapshotSource yields the current telemetry snapshot.
type SnapshotSource interface {
	Snapshot() *types.Snapshot
	Running() bool
}

// QualitySource yields derived quality signals.
type QualitySource interface {
	StabilityScore() float64
	Trend() types.Trend
	SampleCount() int
}

// SpeedTestRunner runs serialized speed tests.
type SpeedTestRunner interface {
	Run(ctx context.Context) (*types.SpeedTestResult, error)
	Last() *types.SpeedTestResult
	Available() bool
}

// LatencyRunner probes a set of hosts.
type LatencyRunner interface {
	TestLatency(ctx context.Context, hosts []string) (map[string]types.LatencyResult, error)
}

// HistoryStore persists speed test results.
type HistoryStore interface {
	Save(r types.SpeedTestResult) error
	List(limit int) ([]types.SpeedTestResult, error)
}

// SystemDetailSource serves the on-demand system views.
type SystemDetailSource interface {
	ReadDetail(ctx context.Context) platform.ResourceDetail
	Profile(ctx context.Context) platform.PerformanceProfile
}

type Handler struct {
	cfg       *config.Config
	caps      types.Capabilities
	source    SnapshotSource
	quality   QualitySource
	speedtest SpeedTestRunner
	latency   LatencyRunner
	store     HistoryStore
	system    SystemDetailSource

	// Platform probes, overridable in tests.
	interfacesFn func(ctx context.Context) (map[string]types.InterfaceInfo, error)
	routesFn     func(ctx context.Context) (string, error)
	bandwidthFn  func(ctx context.Context, max int) ([]types.ProcessUsage, error)
}

func NewHandler(cfg *config.Config, caps types.Capabilities, source SnapshotSource,
	quality QualitySource, speedtest SpeedTestRunner, latency LatencyRunner,
	store HistoryStore, system SystemDetailSource) *Handler {
	return &Handler{
		cfg:          cfg,
		caps:         caps,
		source:       source,
		quality:      quality,
		speedtest:    speedtest,
		latency:      latency,
		store:        store,
		system:       system,
		interfacesFn: platform.Interfaces,
		routesFn:     platform.RouteTable,
		bandwidthFn:  platform.BandwidthByProcess,
	}
}

// statsResponse is the combined live view: the latest snapshot plus every
// derived quality signal.
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

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	resp := statsResponse{
		Network:       snap.Network,
		System:        snap.System,
		Connections:   snap.Connections,
		PacketLossPct: snap.PacketLossPct,
		Quality:       advisor.RecommendQuality(snap.Network.DownloadMbps, snap.PacketLossPct),
		Stability:     h.quality.StabilityScore(),
		Trend:         h.quality.Trend(),
		Timestamp:     snap.Timestamp,
	}
	if resp.Connections == nil {
		resp.Connections = []types.ConnectionRecord{}
	}
	respondJSON(w, resp, http.StatusOK)
}

func (h *Handler) RunSpeedTest(w http.ResponseWriter, r *http.Request) {
	if !h.caps.SpeedTest {
		respondError(w, errors.ErrUnavailable("no speed test servers configured"),
			http.StatusServiceUnavailable)
		return
	}

	result, err := h.speedtest.Run(r.Context())
	if err != nil {
		respondError(w, err, statusForProbeError(err))
		return
	}

	if h.store != nil {
		if err := h.store.Save(*result); err != nil {
			logging.Warn("speed test result not persisted",
				logging.Field{Key: "id", Value: result.ID},
				logging.Field{Key: "error", Value: err})
		}
	}
	respondJSON(w, result, http.StatusOK)
}

func (h *Handler) GetSpeedTest(w http.ResponseWriter, r *http.Request) {
	last := h.speedtest.Last()
	if last == nil {
		respondJSON(w, map[string]string{"error": "no speed test has been run"}, http.StatusNotFound)
		return
	}
	respondJSON(w, last, http.StatusOK)
}

func (h *Handler) GetSpeedTestHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondJSON(w, map[string]string{"error": "limit must be a positive integer"}, http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.store.List(limit)
	if err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"results": results, "count": len(results)}, http.StatusOK)
}

type latencyRequest struct {
	Hosts []string `json:"hosts"`
}

func (h *Handler) TestLatency(w http.ResponseWriter, r *http.Request) {
	hosts := h.cfg.LatencyHosts
	if r.ContentLength != 0 {
		if !isJSONContentType(r) {
			respondJSON(w, map[string]string{"error": "Content-Type must be application/json"},
				http.StatusUnsupportedMediaType)
			return
		}
		var req latencyRequest
		if err := decodeJSONBody(w, r, &req, maxRequestBody); err != nil {
			respondJSONBodyError(w, err)
			return
		}
		if len(req.Hosts) > 0 {
			hosts = req.Hosts
		}
	}

	results, err := h.latency.TestLatency(r.Context(), hosts)
	if err != nil {
		respondError(w, err, statusForProbeError(err))
		return
	}
	respondJSON(w, results, http.StatusOK)
}

func (h *Handler) GetInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces, err := h.interfacesFn(r.Context())
	if err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, ifaces, http.StatusOK)
}

func (h *Handler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routesFn(r.Context())
	if err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, routes); err != nil {
		logging.Warn("routes: write response", logging.Field{Key: "error", Value: err})
	}
}

func (h *Handler) GetBandwidth(w http.ResponseWriter, r *http.Request) {
	usage, err := h.bandwidthFn(r.Context(), 10)
	if err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"processes": usage}, http.StatusOK)
}

type bufferPredictionRequest struct {
	BitrateMbps float64 `json:"bitrate"`
}

func (h *Handler) PredictBuffering(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		respondJSON(w, map[string]string{"error": "Content-Type must be application/json"},
			http.StatusUnsupportedMediaType)
		return
	}
	var req bufferPredictionRequest
	if err := decodeJSONBody(w, r, &req, maxRequestBody); err != nil {
		respondJSONBodyError(w, err)
		return
	}
	if req.BitrateMbps <= 0 {
		respondError(w, errors.ErrInvalidInput("bitrate must be > 0"), http.StatusBadRequest)
		return
	}

	snap := h.source.Snapshot()
	prediction := advisor.PredictBuffering(snap.Network.DownloadMbps, req.BitrateMbps)
	respondJSON(w, prediction, http.StatusOK)
}

func (h *Handler) GetSystemResources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.system.ReadDetail(r.Context()), http.StatusOK)
}

func (h *Handler) GetSystemProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.system.Profile(r.Context()), http.StatusOK)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":       "ok",
		"collecting":   h.source.Running(),
		"samples":      h.quality.SampleCount(),
		"capabilities": h.caps,
	}, http.StatusOK)
}

// statusForProbeError maps the probe error taxonomy onto HTTP status codes.
func statusForProbeError(err error) int {
	var pe *errors.ProbeError
	if !stdErrors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Code {
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeBusy:
		return http.StatusConflict
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		io.Copy(io.Discard, r.Body)
		return err
	}
	if err := decoder.Decode(&struct{}{}); !stdErrors.Is(err, io.EOF) {
		io.Copy(io.Discard, r.Body)
		return stdErrors.New("request body must contain a single JSON object")
	}
	return nil
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

func respondJSONBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if stdErrors.As(err, &maxErr) {
		respondJSON(w, map[string]string{"error": "request body too large"}, http.StatusRequestEntityTooLarge)
		return
	}
	respondJSON(w, map[string]string{"error": "invalid request body"}, http.StatusBadRequest)
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("JSON response encode failed",
			logging.Field{Key: "error", Value: err})
	}
}

func respondError(w http.ResponseWriter, err error, statusCode int) {
	var msg string
	var probeErr *errors.ProbeError
	if stdErrors.As(err, &probeErr) {
		msg = probeErr.Message
	} else {
		msg = err.Error()
	}
	respondJSON(w, map[string]string{
		"error": msg,
	}, statusCode)
}
