package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scteauction/internal/marker"
)

// ListenerControl starts and stops the marker listener at runtime.
type ListenerControl interface {
	Start() error
	Stop() error
	Running() bool
	Stats() marker.StatsSnapshot
}

// ListenerHandler exposes runtime control of the marker listener.
type ListenerHandler struct {
	control ListenerControl
	logger  *slog.Logger
}

// NewListenerHandler creates a ListenerHandler.
func NewListenerHandler(control ListenerControl, logger *slog.Logger) *ListenerHandler {
	return &ListenerHandler{control: control, logger: logger}
}

// StartListener binds the UDP socket and starts receiving markers.
// POST /api/listener/start
func (h *ListenerHandler) StartListener(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Start(); err != nil {
		h.writeControlError(w, r, err, "failed to start listener")
		return
	}
	h.logger.InfoContext(r.Context(), "marker listener started over api")
	h.writeState(w)
}

// StopListener stops receiving markers. In-flight markers are drained first.
// POST /api/listener/stop
func (h *ListenerHandler) StopListener(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Stop(); err != nil {
		h.writeControlError(w, r, err, "failed to stop listener")
		return
	}
	h.logger.InfoContext(r.Context(), "marker listener stopped over api")
	h.writeState(w)
}

func (h *ListenerHandler) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running": h.control.Running(),
		"stats":   h.control.Stats(),
	})
}

func (h *ListenerHandler) writeControlError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, marker.ErrListenerRunning) || errors.Is(err, marker.ErrListenerStopped) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+fallback, slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, fallback+": "+err.Error())
}
