package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// ResultReader lists settled auction results.
type ResultReader interface {
	Results(limit, offset int) []domain.AuctionResult
	Result(id string) (domain.AuctionResult, error)
}

// PaymentUpdater records the collection outcome of a result.
type PaymentUpdater interface {
	UpdatePayment(ctx context.Context, resultID string, status domain.PaymentStatus, txID string) (domain.AuctionResult, error)
}

// ResultStream reads the durable stream of completed auction records.
type ResultStream interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// ResultHandler serves auction result endpoints.
type ResultHandler struct {
	results  ResultReader
	payments PaymentUpdater
	stream   ResultStream
	logger   *slog.Logger
}

// NewResultHandler creates a ResultHandler. stream may be nil, which
// disables the catch-up endpoint.
func NewResultHandler(results ResultReader, payments PaymentUpdater, stream ResultStream, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{results: results, payments: payments, stream: stream, logger: logger}
}

type streamedRecord struct {
	StreamID string          `json:"stream_id"`
	Record   json.RawMessage `json:"record"`
}

// StreamResults returns completed auction records appended to the result
// stream after the since cursor, oldest first. Consumers poll with the
// returned cursor to catch up after a disconnect.
// GET /api/results/stream?since=0&limit=100
func (h *ResultHandler) StreamResults(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "result stream unavailable")
		return
	}
	since := r.URL.Query().Get("since")
	if since == "" {
		since = "0"
	}
	if !validStreamID(since) {
		writeError(w, http.StatusBadRequest, "since must be a stream id")
		return
	}
	limit := parseListOpts(r).Limit

	msgs, err := h.stream.StreamRead(r.Context(), domain.StreamAuctionResults, since, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to read result stream")
		return
	}
	records := make([]streamedRecord, 0, len(msgs))
	next := since
	for _, m := range msgs {
		records = append(records, streamedRecord{StreamID: m.ID, Record: json.RawMessage(m.Payload)})
		next = m.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"next":    next,
		"count":   len(records),
	})
}

// validStreamID accepts Redis entry ids ("1718000000000-0") and the
// in-process bus's plain sequence numbers.
func validStreamID(id string) bool {
	ms, seq, found := strings.Cut(id, "-")
	if !digits(ms) {
		return false
	}
	return !found || digits(seq)
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ListResults returns results newest first.
// GET /api/results?limit=50&offset=0
func (h *ResultHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	list := h.results.Results(opts.Limit, opts.Offset)
	if list == nil {
		list = []domain.AuctionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": list})
}

// GetResult returns one result.
// GET /api/results/{id}
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Result(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type paymentRequest struct {
	Status        domain.PaymentStatus `json:"status"`
	TransactionID string               `json:"transaction_id"`
}

// UpdatePayment marks a result's payment completed or failed.
// POST /api/results/{id}/payment
func (h *ResultHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != domain.PaymentStatusCompleted && req.Status != domain.PaymentStatusFailed {
		writeError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}
	if req.Status == domain.PaymentStatusCompleted && req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "transaction_id is required for completed payments")
		return
	}

	res, err := h.payments.UpdatePayment(r.Context(), pathParam(r, "id"), req.Status, req.TransactionID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to update payment")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
