package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scteauction/internal/auction"
	"github.com/alanyoungcy/scteauction/internal/domain"
)

// AuctionReader is the read side of the auction state.
type AuctionReader interface {
	Auctions(f auction.Filter) []domain.Auction
	Auction(id string) (domain.Auction, error)
	Bids(auctionID string) []domain.Bid
}

// AuctionControl performs the administrative operations on an auction.
type AuctionControl interface {
	Execute(ctx context.Context, id string) (auction.Outcome, error)
	Cancel(ctx context.Context, id, reason string) (domain.Auction, error)
}

// AuctionHandler serves auction endpoints.
type AuctionHandler struct {
	reader  AuctionReader
	control AuctionControl
	logger  *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(reader AuctionReader, control AuctionControl, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{reader: reader, control: control, logger: logger}
}

var auctionStatuses = map[domain.AuctionStatus]bool{
	domain.AuctionStatusPending:   true,
	domain.AuctionStatusActive:    true,
	domain.AuctionStatusCompleted: true,
	domain.AuctionStatusCancelled: true,
}

// ListAuctions returns auctions newest first.
// GET /api/auctions?status=active&game_id=...&limit=50&offset=0
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.AuctionStatus(q.Get("status"))
	if status != "" && !auctionStatuses[status] {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	opts := parseListOpts(r)
	list := h.reader.Auctions(auction.Filter{
		Status: status,
		GameID: q.Get("game_id"),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	writeJSON(w, http.StatusOK, map[string]any{"auctions": list})
}

// GetAuction returns one auction.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.reader.Auction(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get auction")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListBids returns an auction's bids in placement order.
// GET /api/auctions/{id}/bids
func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if _, err := h.reader.Auction(id); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list bids")
		return
	}
	bids := h.reader.Bids(id)
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

// ExecuteAuction activates a pending auction and resolves it.
// POST /api/auctions/{id}/execute
func (h *AuctionHandler) ExecuteAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	out, err := h.control.Execute(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to execute auction")
		return
	}
	h.logger.InfoContext(r.Context(), "auction executed via api",
		slog.String("auction_id", id),
		slog.Int("bids", out.Bids),
	)
	writeJSON(w, http.StatusOK, out)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelAuction cancels a pending or active auction. The body is optional.
// POST /api/auctions/{id}/cancel
func (h *AuctionHandler) CancelAuction(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "admin"
	}
	a, err := h.control.Cancel(r.Context(), pathParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to cancel auction")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := jsonDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
