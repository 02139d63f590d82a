package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/marker"
)

// MarkerProcessor runs a raw datagram through decoding and the pipeline and
// keeps the most recent decoded markers.
type MarkerProcessor interface {
	Process(ctx context.Context, data []byte, source string, at time.Time) (domain.Marker, bool, error)
	Recent(limit int) []marker.RecentMarker
	Stats() marker.StatsSnapshot
}

// MarkerHandler serves the recent-marker view and injects synthetic markers.
type MarkerHandler struct {
	processor MarkerProcessor
	logger    *slog.Logger
}

// NewMarkerHandler creates a MarkerHandler.
func NewMarkerHandler(processor MarkerProcessor, logger *slog.Logger) *MarkerHandler {
	return &MarkerHandler{processor: processor, logger: logger}
}

// ListMarkers returns the most recent decoded markers, newest first, with the
// listener counters. The limit query parameter defaults to 50.
// GET /api/markers
func (h *MarkerHandler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	limit := marker.DefaultRecentSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	markers := h.processor.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"markers": markers,
		"count":   len(markers),
		"stats":   h.processor.Stats(),
	})
}

type testMarkerRequest struct {
	CommandType *uint8         `json:"command_type"`
	PTS         uint64         `json:"pts"`
	Metadata    map[string]any `json:"metadata"`
}

type testMarkerResponse struct {
	Marker    domain.Marker `json:"marker"`
	Triggered bool          `json:"triggered"`
}

// InjectTestMarker encodes the request as a datagram and processes it as if
// it had arrived on the listener socket.
// POST /api/markers/test
func (h *MarkerHandler) InjectTestMarker(w http.ResponseWriter, r *http.Request) {
	var req testMarkerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := domain.CommandSpliceInsert
	if req.CommandType != nil {
		cmd = domain.CommandType(*req.CommandType)
	}

	data, err := marker.Encode(cmd, req.PTS, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, triggered, err := h.processor.Process(r.Context(), data, "api:"+r.RemoteAddr, time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to process marker")
		return
	}
	if m.ReceivedAt.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, "marker rejected by decoder")
		return
	}
	writeJSON(w, http.StatusAccepted, testMarkerResponse{Marker: m, Triggered: triggered})
}
