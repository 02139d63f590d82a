package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/scteauction/internal/marker"
)

// ListenerStats reports marker listener counters.
type ListenerStats interface {
	Stats() marker.StatsSnapshot
}

// LiveCounter reports the number of pending and active auctions.
type LiveCounter interface {
	LiveCount() int
}

// StatusHandler serves the service status for dashboards.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	listener  ListenerStats
	auctions  LiveCounter
}

// NewStatusHandler creates a StatusHandler. listener is nil when the
// service runs without a marker listener.
func NewStatusHandler(mode string, startedAt time.Time, listener ListenerStats, auctions LiveCounter) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, listener: listener, auctions: auctions}
}

// Snapshot returns the mode, uptime, live auction count and listener
// statistics. It is also what WebSocket clients receive on connect.
func (h *StatusHandler) Snapshot() map[string]any {
	body := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"live_auctions":  h.auctions.LiveCount(),
	}
	if h.listener != nil {
		body["listener"] = h.listener.Stats()
	}
	return body
}

// GetStatus responds with Snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}
