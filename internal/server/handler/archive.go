package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// ArchiveHandler browses archived auctions in object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler scoped to prefix.
func NewArchiveHandler(reader domain.BlobReader, prefix string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// ListArchive lists archived objects below the archive prefix.
// GET /api/archive?prefix=2024/06
func (h *ArchiveHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	sub := strings.Trim(r.URL.Query().Get("prefix"), "/")
	if strings.Contains(sub, "..") {
		writeError(w, http.StatusBadRequest, "invalid prefix")
		return
	}
	prefix := h.prefix + "/"
	if sub != "" {
		prefix += sub
	}
	items, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list archive")
		return
	}
	if items == nil {
		items = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": items})
}

// GetArchived streams one archived object.
// GET /api/archive/{key...}
func (h *ArchiveHandler) GetArchived(w http.ResponseWriter, r *http.Request) {
	key := strings.Trim(pathParam(r, "key"), "/")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	if !strings.HasPrefix(key, h.prefix+"/") {
		key = h.prefix + "/" + key
	}
	body, err := h.reader.Get(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to read archive object")
		return
	}
	defer body.Close()

	ct := "application/json"
	if strings.HasSuffix(key, ".jsonl") {
		ct = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
